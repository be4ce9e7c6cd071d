package netops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/netopsio/netopsgql/client"
	"github.com/netopsio/netopsgql/subscription"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNoSubscriber = errors.New("no subscription transport configured")
)

var (
	CustomersDocument                    = mustDocument("Customers")
	CustomerDocument                     = mustDocument("Customer")
	NetworkOverviewDocument              = mustDocument("NetworkOverview")
	FiberDashboardDocument               = mustDocument("FiberDashboard")
	WirelessDashboardDocument            = mustDocument("WirelessDashboard")
	WorkflowDocument                     = mustDocument("Workflow")
	NetworkAlertsDocument                = mustDocument("NetworkAlerts")
	ProvisionSubscriberDocument          = mustDocument("ProvisionSubscriber")
	CancelWorkflowDocument               = mustDocument("CancelWorkflow")
	RetryWorkflowDocument                = mustDocument("RetryWorkflow")
	AcknowledgeAlertDocument             = mustDocument("AcknowledgeAlert")
	PingDocument                         = mustDocument("Ping")
	DeviceUpdatedDocument                = mustDocument("DeviceUpdated")
	NetworkAlertUpdatedDocument          = mustDocument("NetworkAlertUpdated")
	CustomerNetworkStatusUpdatedDocument = mustDocument("CustomerNetworkStatusUpdated")
	WorkflowUpdatedDocument              = mustDocument("WorkflowUpdated")
)

// Subscriber starts subscription operations. *subscription.Conn implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, operationName, query string, variables map[string]any) (*subscription.Subscription, error)
}

var _ Subscriber = (*subscription.Conn)(nil)

// Client runs the typed network-operations queries, mutations and subscriptions.
type Client struct {
	http       *client.Client
	subscriber Subscriber
	logger     *logrus.Logger
}

type Option func(*Client)

// WithSubscriber enables subscriptions and lets WaitForWorkflow follow
// workflow updates instead of polling.
func WithSubscriber(s Subscriber) Option {
	return func(c *Client) {
		c.subscriber = s
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(http *client.Client, options ...Option) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := &Client{http: http, logger: logger}
	for _, option := range options {
		option(c)
	}

	return c
}

func (c *Client) post(ctx context.Context, doc Document, vars map[string]any, out any, interceptors []client.RequestInterceptor) error {
	return c.http.Post(ctx, doc.Name, doc.Query, vars, out, interceptors...)
}

// partial returns v alongside err when the transport decodes data in the
// presence of GraphQL errors.
func partial[T any](c *Client, v *T, err error) (*T, error) {
	var errResp *client.ErrorResponse
	if c.http.ParseDataWhenErrors() && errors.As(err, &errResp) && errResp.GqlErrors != nil {
		return v, err
	}
	return nil, err
}

func setOptional[T any](vars map[string]any, name string, v *T) {
	if v != nil {
		vars[name] = *v
	}
}

func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	return nil
}

func validEnum[T enum](field string, v *T) error {
	if v != nil && !(*v).IsValid() {
		return fmt.Errorf("%w: %s %q is not valid", ErrInvalidInput, field, string(*v))
	}
	return nil
}

func validFirst(first *int) error {
	if first != nil && *first <= 0 {
		return fmt.Errorf("%w: first must be positive, got %d", ErrInvalidInput, *first)
	}
	return nil
}

func (c *Client) Customers(ctx context.Context, filter *CustomerFilter, first *int, after *string, interceptors ...client.RequestInterceptor) (*CustomerConnection, error) {
	if filter != nil {
		if err := errors.Join(validEnum("filter.status", filter.Status), validEnum("filter.serviceType", filter.ServiceType)); err != nil {
			return nil, err
		}
	}
	if err := validFirst(first); err != nil {
		return nil, err
	}

	vars := map[string]any{}
	setOptional(vars, "filter", filter)
	setOptional(vars, "first", first)
	setOptional(vars, "after", after)

	var res struct {
		Customers CustomerConnection `json:"customers"`
	}
	if err := c.post(ctx, CustomersDocument, vars, &res, interceptors); err != nil {
		return partial(c, &res.Customers, err)
	}

	return &res.Customers, nil
}

// Customer returns nil without error when no customer has the given id.
func (c *Client) Customer(ctx context.Context, id string, interceptors ...client.RequestInterceptor) (*Customer, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}

	var res struct {
		Customer *Customer `json:"customer"`
	}
	if err := c.post(ctx, CustomerDocument, map[string]any{"id": id}, &res, interceptors); err != nil {
		if res.Customer == nil {
			return nil, err
		}
		return partial(c, res.Customer, err)
	}

	return res.Customer, nil
}

func (c *Client) NetworkOverview(ctx context.Context, interceptors ...client.RequestInterceptor) (*NetworkOverview, error) {
	var res struct {
		NetworkOverview NetworkOverview `json:"networkOverview"`
	}
	if err := c.post(ctx, NetworkOverviewDocument, nil, &res, interceptors); err != nil {
		return partial(c, &res.NetworkOverview, err)
	}

	return &res.NetworkOverview, nil
}

func (c *Client) FiberDashboard(ctx context.Context, interceptors ...client.RequestInterceptor) (*FiberDashboard, error) {
	var res struct {
		FiberDashboard FiberDashboard `json:"fiberDashboard"`
	}
	if err := c.post(ctx, FiberDashboardDocument, nil, &res, interceptors); err != nil {
		return partial(c, &res.FiberDashboard, err)
	}

	return &res.FiberDashboard, nil
}

func (c *Client) WirelessDashboard(ctx context.Context, interceptors ...client.RequestInterceptor) (*WirelessDashboard, error) {
	var res struct {
		WirelessDashboard WirelessDashboard `json:"wirelessDashboard"`
	}
	if err := c.post(ctx, WirelessDashboardDocument, nil, &res, interceptors); err != nil {
		return partial(c, &res.WirelessDashboard, err)
	}

	return &res.WirelessDashboard, nil
}

// Workflow returns nil without error when no workflow has the given id.
func (c *Client) Workflow(ctx context.Context, id string, interceptors ...client.RequestInterceptor) (*Workflow, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}

	var res struct {
		Workflow *Workflow `json:"workflow"`
	}
	if err := c.post(ctx, WorkflowDocument, map[string]any{"id": id}, &res, interceptors); err != nil {
		if res.Workflow == nil {
			return nil, err
		}
		return partial(c, res.Workflow, err)
	}

	return res.Workflow, nil
}

func (c *Client) NetworkAlerts(ctx context.Context, status *AlertStatus, severity *AlertSeverity, first *int, interceptors ...client.RequestInterceptor) ([]*NetworkAlert, error) {
	if err := errors.Join(validEnum("status", status), validEnum("severity", severity), validFirst(first)); err != nil {
		return nil, err
	}

	vars := map[string]any{}
	setOptional(vars, "status", status)
	setOptional(vars, "severity", severity)
	setOptional(vars, "first", first)

	var res struct {
		NetworkAlerts []*NetworkAlert `json:"networkAlerts"`
	}
	if err := c.post(ctx, NetworkAlertsDocument, vars, &res, interceptors); err != nil {
		if alerts, perr := partial(c, &res.NetworkAlerts, err); alerts != nil {
			return *alerts, perr
		}
		return nil, err
	}

	return res.NetworkAlerts, nil
}

// ProvisionSubscriber starts a provisioning workflow. The input is validated
// locally first.
func (c *Client) ProvisionSubscriber(ctx context.Context, input ProvisionSubscriberInput, interceptors ...client.RequestInterceptor) (*ProvisionSubscriberPayload, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var res struct {
		ProvisionSubscriber ProvisionSubscriberPayload `json:"provisionSubscriber"`
	}
	if err := c.post(ctx, ProvisionSubscriberDocument, map[string]any{"input": input}, &res, interceptors); err != nil {
		return partial(c, &res.ProvisionSubscriber, err)
	}

	c.logger.WithFields(logrus.Fields{
		"workflow_id": res.ProvisionSubscriber.Workflow.ID,
		"status":      res.ProvisionSubscriber.Workflow.Status,
	}).Info("provisioning workflow started")

	return &res.ProvisionSubscriber, nil
}

func (c *Client) CancelWorkflow(ctx context.Context, id string, interceptors ...client.RequestInterceptor) (*Workflow, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}

	var res struct {
		CancelWorkflow Workflow `json:"cancelWorkflow"`
	}
	if err := c.post(ctx, CancelWorkflowDocument, map[string]any{"id": id}, &res, interceptors); err != nil {
		return partial(c, &res.CancelWorkflow, err)
	}

	return &res.CancelWorkflow, nil
}

func (c *Client) RetryWorkflow(ctx context.Context, id string, interceptors ...client.RequestInterceptor) (*Workflow, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}

	var res struct {
		RetryWorkflow Workflow `json:"retryWorkflow"`
	}
	if err := c.post(ctx, RetryWorkflowDocument, map[string]any{"id": id}, &res, interceptors); err != nil {
		return partial(c, &res.RetryWorkflow, err)
	}

	return &res.RetryWorkflow, nil
}

func (c *Client) AcknowledgeAlert(ctx context.Context, id string, interceptors ...client.RequestInterceptor) (*NetworkAlert, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}

	var res struct {
		AcknowledgeAlert NetworkAlert `json:"acknowledgeAlert"`
	}
	if err := c.post(ctx, AcknowledgeAlertDocument, map[string]any{"id": id}, &res, interceptors); err != nil {
		return partial(c, &res.AcknowledgeAlert, err)
	}

	return &res.AcknowledgeAlert, nil
}

func (c *Client) Ping(ctx context.Context, interceptors ...client.RequestInterceptor) (string, error) {
	var res struct {
		Ping string `json:"ping"`
	}
	if err := c.post(ctx, PingDocument, nil, &res, interceptors); err != nil {
		return "", err
	}

	return res.Ping, nil
}
