package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/sirupsen/logrus"
)

// Client is the http client wrapper
type Client struct {
	client              *http.Client
	endpoint            string
	interceptors        []RequestInterceptor
	logger              *logrus.Logger
	executor            failsafe.Executor[*httpResult]
	parseDataWhenErrors bool
}

// NewClient creates a new http client wrapper
func NewClient(endpoint string, options ...Option) *Client {
	client := &Client{
		client:   http.DefaultClient,
		endpoint: endpoint,
		logger:   discardLogger(),
	}
	for _, option := range options {
		option(client)
	}

	return client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithInterceptors appends interceptors that run for every request, in order.
func WithInterceptors(interceptors ...RequestInterceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetry retries transport failures and retryable status codes.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) {
		c.executor = newExecutor(cfg)
	}
}

// WithMetrics records request counts and latencies for every operation.
func WithMetrics(metrics *Metrics) Option {
	return func(c *Client) {
		if metrics != nil {
			c.interceptors = append(c.interceptors, metrics.Interceptor())
		}
	}
}

// WithParseDataWhenErrors decodes the data member even when the response carries errors.
func WithParseDataWhenErrors(parse bool) Option {
	return func(c *Client) {
		c.parseDataWhenErrors = parse
	}
}

// Endpoint returns the GraphQL endpoint the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// ParseDataWhenErrors reports whether partial data is decoded alongside GraphQL errors.
func (c *Client) ParseDataWhenErrors() bool {
	return c.parseDataWhenErrors
}

// Post sends a http POST request to the graphql endpoint with the given query then unpacks
// the response into the given object.
func (c *Client) Post(ctx context.Context, operationName, query string, variables map[string]any, out any, interceptors ...RequestInterceptor) error {
	req, err := newRequest(ctx, c.endpoint, operationName, query, variables)
	if err != nil {
		return fmt.Errorf("failed to create post request: %w", err)
	}

	info := &GQLRequestInfo{
		OperationName: operationName,
		Query:         query,
		Variables:     variables,
	}

	chain := make([]RequestInterceptor, 0, len(c.interceptors)+len(interceptors))
	chain = append(chain, c.interceptors...)
	chain = append(chain, interceptors...)

	return ChainInterceptor(chain...)(ctx, req, info, out, c.do)
}

/////////////////////////////////////////////////////////////////////
// Request

// Request represents an outgoing GraphQL request
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

func newRequest(ctx context.Context, endpoint, operationName, query string, variables map[string]any) (*http.Request, error) {
	graphqlRequest := &Request{
		Query:         query,
		Variables:     variables,
		OperationName: operationName,
	}
	requestBody, err := json.Marshal(graphqlRequest)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("create request struct failed: %w", err)
	}

	req.Header = http.Header{
		"Content-Type": []string{"application/json; charset=utf-8"},
		"Accept":       []string{"application/graphql-response+json;charset=utf-8", "application/json; charset=utf-8"},
	}

	return req, nil
}

/////////////////////////////////////////////////////////////////////
// Transport

// httpResult is a fully read response, so a retried attempt never leaks a body.
type httpResult struct {
	statusCode int
	body       []byte
}

func (c *Client) do(ctx context.Context, req *http.Request, info *GQLRequestInfo, out any) error {
	start := time.Now()
	logger := c.logger.WithFields(logrus.Fields{
		"operation":  info.OperationName,
		"request_id": req.Header.Get(RequestIDHeader),
	})

	res, err := c.execute(ctx, req, logger)
	if err != nil {
		logger.WithError(err).Warn("graphql request failed")
		return err
	}

	logger.WithFields(logrus.Fields{
		"status":   res.statusCode,
		"duration": time.Since(start),
	}).Debug("graphql request completed")

	return c.parseResponse(res, out)
}

func (c *Client) execute(ctx context.Context, req *http.Request, logger *logrus.Entry) (*httpResult, error) {
	if c.executor == nil {
		return c.roundTrip(req)
	}

	var last *httpResult
	attempt := 0
	res, err := c.executor.WithContext(ctx).Get(func() (*httpResult, error) {
		attempt++
		r, err := c.roundTrip(req)
		last = r
		if attempt > 1 {
			logger.WithField("attempt", attempt).Info("retrying graphql request")
		}
		return r, err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("request canceled: %w", ctxErr)
		}
		// retries exhausted on a status code: keep the final response for error reporting
		if last == nil {
			return nil, err
		}
		res = last
	}

	return res, nil
}

func (c *Client) roundTrip(req *http.Request) (*httpResult, error) {
	attempt := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		attempt.Body = body
	}

	resp, err := c.client.Do(attempt)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return &httpResult{statusCode: resp.StatusCode, body: body}, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode gzip: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

/////////////////////////////////////////////////////////////////////
// Response

func (c *Client) parseResponse(res *httpResult, out any) error {
	errResponse := &ErrorResponse{}
	isStatusCodeOK := 200 <= res.statusCode && res.statusCode <= 299
	if !isStatusCodeOK {
		errResponse.NetworkError = &HTTPError{
			Code:    res.statusCode,
			Message: fmt.Sprintf("Response body %s", string(res.body)),
		}
	}

	// some servers return a graphql error with a non OK http code, try anyway to parse the body
	if err := c.unmarshalResponse(res.body, out); err != nil {
		var gqlErrs *GqlErrorList
		if errors.As(err, &gqlErrs) {
			errResponse.GqlErrors = &gqlErrs.Errors
		} else if isStatusCodeOK {
			return fmt.Errorf("http status is OK but %w", err)
		}
	}

	if errResponse.HasErrors() {
		return errResponse
	}

	return nil
}

// response is a GraphQL layer response from a handler.
type response struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

func (c *Client) unmarshalResponse(respBody []byte, out any) error {
	resp := response{}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("failed to decode response %q: %w", respBody, err)
	}

	if len(resp.Errors) > 0 && string(resp.Errors) != "null" {
		gqlErrs := &GqlErrorList{}
		if err := json.Unmarshal(respBody, gqlErrs); err != nil {
			return fmt.Errorf("failed to decode response error %q: %w", respBody, err)
		}
		// an empty errors array is a success
		if len(gqlErrs.Errors) > 0 {
			if c.parseDataWhenErrors && hasData(resp.Data) {
				if err := json.Unmarshal(resp.Data, out); err != nil {
					return fmt.Errorf("failed to decode response data %q: %w", resp.Data, err)
				}
			}
			return gqlErrs
		}
	}

	if !hasData(resp.Data) {
		return fmt.Errorf("response %q does not contain data", respBody)
	}

	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data %q: %w", resp.Data, err)
	}

	return nil
}

func hasData(data json.RawMessage) bool {
	return len(data) > 0 && string(data) != "null"
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
