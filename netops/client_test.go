package netops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netopsio/netopsgql/client"
)

type recordedRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

// graphQLServer answers every POST with whatever respond returns for the
// operation, encoded as the response body.
type graphQLServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newGraphQLServer(t *testing.T, respond func(req recordedRequest) any) *graphQLServer {
	t.Helper()

	srv := &graphQLServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		srv.mu.Lock()
		srv.requests = append(srv.requests, req)
		srv.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(respond(req))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func (srv *graphQLServer) Requests() []recordedRequest {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return append([]recordedRequest(nil), srv.requests...)
}

func data(v map[string]any) map[string]any {
	return map[string]any{"data": v}
}

func deviceJSON(id, status string) map[string]any {
	return map[string]any{
		"id":                id,
		"name":              "ont-" + id,
		"type":              "ONT",
		"status":            status,
		"serialNumber":      "SN-" + id,
		"ipAddress":         "10.0.0.7",
		"firmwareVersion":   nil,
		"customerId":        "cus-1",
		"signalStrengthDbm": -19.5,
		"lastSeenAt":        "2026-03-01T10:00:00Z",
		"metrics":           map[string]any{"rxPowerDbm": -19.5},
	}
}

func customerJSON(id string) map[string]any {
	return map[string]any{
		"id":            id,
		"accountNumber": "ACC-0001",
		"name":          "Ada Lovelace",
		"email":         "ada@example.net",
		"phone":         nil,
		"status":        "ACTIVE",
		"serviceType":   "FIBER",
		"address": map[string]any{
			"street": "12 Analytical Way", "city": "London", "postalCode": "N1 9GU",
			"latitude": 51.53, "longitude": -0.1,
		},
		"subscriptions": []any{map[string]any{
			"id": "sub-1", "planName": "Fiber 1G", "status": "ACTIVE",
			"downloadMbps": 1000, "uploadMbps": 500, "monthlyPrice": 59.9, "startedAt": "2026-01-01T00:00:00Z",
		}},
		"devices":   []any{deviceJSON("dev-1", "ONLINE")},
		"createdAt": "2025-12-24T08:30:00.123Z",
	}
}

func workflowJSON(id, status string) map[string]any {
	return map[string]any{
		"id":         id,
		"type":       "PROVISION_SUBSCRIBER",
		"status":     status,
		"customerId": "cus-1",
		"attempt":    1,
		"steps": []any{
			map[string]any{"name": "reserve-port", "position": 1, "status": "COMPLETED", "attempts": 1, "error": nil, "startedAt": nil, "completedAt": nil},
		},
		"error":       nil,
		"createdAt":   "2026-03-01T10:00:00Z",
		"updatedAt":   "2026-03-01T10:00:00Z",
		"completedAt": nil,
	}
}

func newTestClient(t *testing.T, srv *graphQLServer, options ...Option) *Client {
	t.Helper()
	return NewClient(client.NewClient(srv.URL), options...)
}

func TestClient_Customers(t *testing.T) {
	t.Parallel()

	srv := newGraphQLServer(t, func(req recordedRequest) any {
		return data(map[string]any{"customers": map[string]any{
			"nodes":      []any{customerJSON("cus-1")},
			"totalCount": 41,
			"pageInfo":   map[string]any{"hasNextPage": true, "endCursor": "Y3VyMQ=="},
		}})
	})
	c := newTestClient(t, srv)

	status := CustomerStatusActive
	conn, err := c.Customers(context.Background(), &CustomerFilter{Status: &status}, ptr(1), nil)
	require.NoError(t, err)

	require.Equal(t, 41, conn.TotalCount)
	require.True(t, conn.GetPageInfo().HasNextPage)
	require.Equal(t, "Y3VyMQ==", *conn.PageInfo.EndCursor)
	require.Len(t, conn.Nodes, 1)

	customer := conn.Nodes[0]
	require.Equal(t, ServiceTypeFiber, customer.GetServiceType())
	require.Equal(t, "London", customer.GetAddress().City)
	require.Equal(t, 1000, customer.Subscriptions[0].DownloadMbps)
	require.Equal(t, DeviceStatusOnline, customer.GetDevices()[0].Status)
	rx, ok := customer.Devices[0].Metrics.Float("rxPowerDbm")
	require.True(t, ok)
	require.InDelta(t, -19.5, rx, 0.001)
	require.Equal(t, 123*time.Millisecond, time.Duration(customer.CreatedAt.Nanosecond()))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "Customers", reqs[0].OperationName)
	require.Equal(t, CustomersDocument.Query, reqs[0].Query)
	require.Equal(t, map[string]any{
		"filter": map[string]any{"status": "ACTIVE"},
		"first":  float64(1),
	}, reqs[0].Variables)
}

func TestClient_CustomerNotFound(t *testing.T) {
	t.Parallel()

	srv := newGraphQLServer(t, func(req recordedRequest) any {
		return data(map[string]any{"customer": nil})
	})
	c := newTestClient(t, srv)

	customer, err := c.Customer(context.Background(), "cus-404")
	require.NoError(t, err)
	require.Nil(t, customer)
}

func TestClient_RejectsBeforeSending(t *testing.T) {
	t.Parallel()

	srv := newGraphQLServer(t, func(req recordedRequest) any {
		return data(map[string]any{})
	})
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.CancelWorkflow(ctx, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.RetryWorkflow(ctx, "  ")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.NetworkAlerts(ctx, ptr(AlertStatus("OPEN")), nil, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.Customers(ctx, nil, ptr(0), nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	in := validProvisionInput()
	in.Email = "not-an-email"
	_, err = c.ProvisionSubscriber(ctx, in)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.WaitForWorkflow(ctx, "", WaitOptions{})
	require.ErrorIs(t, err, ErrInvalidInput)

	require.Empty(t, srv.Requests())
}

func TestClient_ProvisionSubscriber(t *testing.T) {
	t.Parallel()

	srv := newGraphQLServer(t, func(req recordedRequest) any {
		return data(map[string]any{"provisionSubscriber": map[string]any{
			"workflow": workflowJSON("wf-1", "PENDING"),
			"customer": nil,
		}})
	})
	c := newTestClient(t, srv)

	in := validProvisionInput()
	in.DeviceSerialNumber = ptr("SN-42")
	payload, err := c.ProvisionSubscriber(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "wf-1", payload.GetWorkflow().ID)
	require.Equal(t, WorkflowStatusPending, payload.Workflow.Status)
	require.Nil(t, payload.GetCustomer())

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, map[string]any{"input": map[string]any{
		"name":  "Ada Lovelace",
		"email": "ada@example.net",
		"address": map[string]any{
			"street": "12 Analytical Way", "city": "London", "postalCode": "N1 9GU",
		},
		"planId":             "plan-fiber-1g",
		"serviceType":        "FIBER",
		"deviceSerialNumber": "SN-42",
	}}, reqs[0].Variables)
}

func TestClient_MutationsAndDashboards(t *testing.T) {
	t.Parallel()

	srv := newGraphQLServer(t, func(req recordedRequest) any {
		switch req.OperationName {
		case "CancelWorkflow":
			return data(map[string]any{"cancelWorkflow": workflowJSON(req.Variables["id"].(string), "CANCELLED")})
		case "RetryWorkflow":
			wf := workflowJSON(req.Variables["id"].(string), "RUNNING")
			wf["attempt"] = 2
			return data(map[string]any{"retryWorkflow": wf})
		case "AcknowledgeAlert":
			return data(map[string]any{"acknowledgeAlert": map[string]any{
				"id": req.Variables["id"], "severity": "MAJOR", "status": "ACKNOWLEDGED", "title": "LOS", "message": "loss of signal",
				"deviceId": "dev-1", "raisedAt": "2026-03-01T09:00:00Z", "acknowledgedAt": "2026-03-01T09:05:00Z", "resolvedAt": nil,
			}})
		case "FiberDashboard":
			return data(map[string]any{"fiberDashboard": map[string]any{
				"oltCount": 2, "ontCount": 310, "ontsOnline": 301, "averageOpticalPowerDbm": -21.2,
				"ponPorts":     []any{map[string]any{"oltId": "olt-1", "portId": "1/1/3", "ontCount": 64, "utilizationPercent": 71.5}},
				"activeAlarms": 3, "updatedAt": "2026-03-01T10:00:00Z",
			}})
		case "WirelessDashboard":
			return data(map[string]any{"wirelessDashboard": map[string]any{
				"accessPointCount": 12, "cpeCount": 200, "cpesOnline": 188, "averageSignalDbm": -63.0, "averageSnrDb": nil,
				"sectors":   []any{map[string]any{"sectorId": "s-1", "accessPointId": "ap-1", "connectedClients": 17, "channelUtilizationPercent": 40}},
				"updatedAt": "2026-03-01T10:00:00Z",
			}})
		case "NetworkOverview":
			return data(map[string]any{"networkOverview": map[string]any{
				"totalCustomers": 500, "activeCustomers": 480, "totalDevices": 900, "onlineDevices": 870,
				"offlineDevices": 20, "degradedDevices": 10, "activeAlerts": 4, "criticalAlerts": 1,
				"averageUptimePercent": 99.95, "updatedAt": "2026-03-01T10:00:00Z",
			}})
		case "Ping":
			return data(map[string]any{"ping": "pong"})
		}
		return map[string]any{"errors": []any{map[string]any{"message": "unexpected " + req.OperationName}}}
	})
	c := newTestClient(t, srv)
	ctx := context.Background()

	cancelled, err := c.CancelWorkflow(ctx, "wf-7")
	require.NoError(t, err)
	require.Equal(t, "wf-7", cancelled.ID)
	require.True(t, cancelled.Status.IsTerminal())

	retried, err := c.RetryWorkflow(ctx, "wf-8")
	require.NoError(t, err)
	require.Equal(t, 2, retried.GetAttempt())

	alert, err := c.AcknowledgeAlert(ctx, "al-1")
	require.NoError(t, err)
	require.Equal(t, AlertStatusAcknowledged, alert.GetStatus())
	require.NotNil(t, alert.AcknowledgedAt)

	fiber, err := c.FiberDashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, "1/1/3", fiber.PonPorts[0].PortID)

	wireless, err := c.WirelessDashboard(ctx)
	require.NoError(t, err)
	require.Nil(t, wireless.AverageSnrDb)
	require.Equal(t, 17, wireless.Sectors[0].ConnectedClients)

	overview, err := c.NetworkOverview(ctx)
	require.NoError(t, err)
	require.Equal(t, 870, overview.OnlineDevices)

	pong, err := c.Ping(ctx)
	require.NoError(t, err)
	require.Equal(t, "pong", pong)
}

func TestClient_GraphQLErrors(t *testing.T) {
	t.Parallel()

	respond := func(req recordedRequest) any {
		return map[string]any{
			"data":   map[string]any{"networkAlerts": []any{map[string]any{"id": "al-1", "severity": "INFO", "status": "ACTIVE", "title": "t", "message": "m", "raisedAt": "2026-03-01T09:00:00Z"}}},
			"errors": []any{map[string]any{"message": "alerts partially unavailable", "extensions": map[string]any{"code": "PARTIAL"}}},
		}
	}

	t.Run("discards data", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, newGraphQLServer(t, respond))

		alerts, err := c.NetworkAlerts(context.Background(), nil, ptr(AlertSeverityInfo), ptr(10))
		require.Nil(t, alerts)

		var errResp *client.ErrorResponse
		require.True(t, errors.As(err, &errResp))
		require.True(t, errResp.HasCode("PARTIAL"))
	})

	t.Run("keeps partial data", func(t *testing.T) {
		t.Parallel()
		srv := newGraphQLServer(t, respond)
		c := NewClient(client.NewClient(srv.URL, client.WithParseDataWhenErrors(true)))

		alerts, err := c.NetworkAlerts(context.Background(), nil, nil, nil)
		require.Error(t, err)
		require.Len(t, alerts, 1)
		require.Equal(t, "al-1", alerts[0].GetID())
	})
}
