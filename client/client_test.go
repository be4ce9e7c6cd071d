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
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const (
	gqlSingleErr        = `{"errors":[{"path":["customers","nodes"],"extensions":{"code":"undefinedField","typeName":"CustomerConnection","fieldName":"nodez"},"locations":[{"line":6,"column":4}],"message":"Field 'nodez' doesn't exist on type 'CustomerConnection'"}]}`
	gqlDataAndErr       = `{"data":{"something":"some data"},"errors":[{"path":["customers"],"message":"partial failure"}]}`
	invalidJSON         = "invalid"
	validData           = `{"data":{"something":"some data"}}`
	withEmptyErrors     = `{"data":{"something":"some data"},"errors":[]}`
	withBadDataFormat   = `{"data":"notAnObject"}`
	withBadErrorsFormat = `{"errors":"bad"}`
	withoutData         = `{}`
)

type fakeRes struct {
	Something string `json:"something"`
}

type ctxKey string

func TestUnmarshalResponse(t *testing.T) {
	t.Parallel()

	t.Run("single error", func(t *testing.T) {
		t.Parallel()
		var path ast.Path
		require.NoError(t, json.Unmarshal([]byte(`["customers","nodes"]`), &path))

		c := &Client{}
		err := c.unmarshalResponse([]byte(gqlSingleErr), &fakeRes{})
		expectedErr := &GqlErrorList{
			Errors: gqlerror.List{{
				Message:   "Field 'nodez' doesn't exist on type 'CustomerConnection'",
				Path:      path,
				Locations: []gqlerror.Location{{Line: 6, Column: 4}},
				Extensions: map[string]any{
					"code":      "undefinedField",
					"typeName":  "CustomerConnection",
					"fieldName": "nodez",
				},
			}},
		}
		require.Equal(t, expectedErr, err)
	})

	t.Run("data and error leaves data untouched by default", func(t *testing.T) {
		t.Parallel()
		r := &fakeRes{}
		c := &Client{}
		err := c.unmarshalResponse([]byte(gqlDataAndErr), r)
		require.IsType(t, &GqlErrorList{}, err)
		require.Equal(t, &fakeRes{}, r)
	})

	t.Run("data and error still parsed", func(t *testing.T) {
		t.Parallel()
		r := &fakeRes{}
		c := &Client{parseDataWhenErrors: true}
		err := c.unmarshalResponse([]byte(gqlDataAndErr), r)
		require.IsType(t, &GqlErrorList{}, err)
		require.Equal(t, &fakeRes{Something: "some data"}, r)
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		c := &Client{}
		err := c.unmarshalResponse([]byte(invalidJSON), &fakeRes{})
		require.EqualError(t, err, `failed to decode response "invalid": invalid character 'i' looking for beginning of value`)
	})

	t.Run("valid data", func(t *testing.T) {
		t.Parallel()
		r := &fakeRes{}
		c := &Client{}
		require.NoError(t, c.unmarshalResponse([]byte(validData), r))
		require.Equal(t, &fakeRes{Something: "some data"}, r)
	})

	t.Run("empty errors array is not a failure", func(t *testing.T) {
		t.Parallel()
		r := &fakeRes{}
		c := &Client{}
		require.NoError(t, c.unmarshalResponse([]byte(withEmptyErrors), r))
		require.Equal(t, &fakeRes{Something: "some data"}, r)
		require.NoError(t, c.parseResponse(&httpResult{statusCode: 200, body: []byte(withEmptyErrors)}, &fakeRes{}))
	})

	t.Run("bad data format", func(t *testing.T) {
		t.Parallel()
		c := &Client{}
		err := c.unmarshalResponse([]byte(withBadDataFormat), &fakeRes{})
		require.EqualError(t, err, `failed to decode response data "\"notAnObject\"": json: cannot unmarshal string into Go value of type client.fakeRes`)
	})

	t.Run("bad errors format", func(t *testing.T) {
		t.Parallel()
		c := &Client{}
		err := c.unmarshalResponse([]byte(withBadErrorsFormat), &fakeRes{})
		var gqlErrs *GqlErrorList
		require.Error(t, err)
		require.False(t, errors.As(err, &gqlErrs))
	})

	t.Run("no data", func(t *testing.T) {
		t.Parallel()
		c := &Client{}
		err := c.unmarshalResponse([]byte(withoutData), &fakeRes{})
		require.EqualError(t, err, `response "{}" does not contain data`)
	})
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	t.Run("single error", func(t *testing.T) {
		t.Parallel()
		c := &Client{}
		err := c.parseResponse(&httpResult{statusCode: 200, body: []byte(gqlSingleErr)}, &fakeRes{})

		require.IsType(t, &ErrorResponse{}, err)
		require.IsType(t, &gqlerror.List{}, err.(*ErrorResponse).GqlErrors)
		require.Nil(t, err.(*ErrorResponse).NetworkError)
		require.True(t, err.(*ErrorResponse).HasCode("undefinedField"))
	})

	t.Run("bad error format", func(t *testing.T) {
		t.Parallel()
		c := &Client{}
		err := c.parseResponse(&httpResult{statusCode: 200, body: []byte(withBadErrorsFormat)}, &fakeRes{})

		var errResp *ErrorResponse
		require.Error(t, err)
		require.False(t, errors.As(err, &errResp))
	})

	t.Run("network error with valid gql error response", func(t *testing.T) {
		t.Parallel()
		c := &Client{}
		err := c.parseResponse(&httpResult{statusCode: 400, body: []byte(gqlSingleErr)}, &fakeRes{})

		require.IsType(t, &ErrorResponse{}, err)
		require.IsType(t, &HTTPError{}, err.(*ErrorResponse).NetworkError)
		require.IsType(t, &gqlerror.List{}, err.(*ErrorResponse).GqlErrors)
	})

	t.Run("network error with not valid gql error response", func(t *testing.T) {
		t.Parallel()
		c := &Client{}
		err := c.parseResponse(&httpResult{statusCode: 502, body: []byte("Bad Gateway")}, &fakeRes{})

		require.Equal(t, &ErrorResponse{
			NetworkError: &HTTPError{Code: 502, Message: "Response body Bad Gateway"},
		}, err)
	})

	t.Run("no error", func(t *testing.T) {
		t.Parallel()
		c := &Client{}
		require.NoError(t, c.parseResponse(&httpResult{statusCode: 200, body: []byte(validData)}, &fakeRes{}))
	})
}

func TestErrorResponse_Error(t *testing.T) {
	t.Parallel()

	er := &ErrorResponse{NetworkError: &HTTPError{Code: 503, Message: "Response body down"}}
	require.JSONEq(t, `{"networkErrors":{"code":503,"message":"Response body down"},"graphqlErrors":null}`, er.Error())
	require.True(t, er.HasErrors())
	require.False(t, er.HasCode("anything"))
	require.Equal(t, 503, er.StatusCode())
	require.Equal(t, "http 503: Response body down", er.NetworkError.Error())
	require.False(t, (&ErrorResponse{}).HasErrors())
	require.Zero(t, (&ErrorResponse{}).StatusCode())
}

func TestChainInterceptor(t *testing.T) {
	t.Parallel()

	someValue := 1
	parentContext := context.WithValue(context.Background(), ctxKey("parent"), someValue)
	info := &GQLRequestInfo{OperationName: "Ping", Query: "mutation Ping { ping }"}
	outputError := fmt.Errorf("some error")
	requireContextValue := func(t *testing.T, ctx context.Context, key string, msg ...any) {
		t.Helper()
		require.Equal(t, someValue, ctx.Value(ctxKey(key)), msg...)
	}

	req, err := http.NewRequestWithContext(parentContext, http.MethodPost, "https://netops.example/graphql", bytes.NewBufferString("{}"))
	require.NoError(t, err)

	var order []string
	first := func(ctx context.Context, req *http.Request, gqlInfo *GQLRequestInfo, out any, next RequestInterceptorFunc) error {
		requireContextValue(t, ctx, "parent", "first must know the parent context value")
		order = append(order, "first")
		return next(context.WithValue(ctx, ctxKey("first"), someValue), req, gqlInfo, out)
	}

	second := func(ctx context.Context, req *http.Request, gqlInfo *GQLRequestInfo, out any, next RequestInterceptorFunc) error {
		requireContextValue(t, ctx, "first", "second must know the first context value")
		order = append(order, "second")
		return next(context.WithValue(ctx, ctxKey("second"), someValue), req, gqlInfo, out)
	}

	invoker := func(ctx context.Context, req *http.Request, gqlInfo *GQLRequestInfo, out any) error {
		requireContextValue(t, ctx, "second", "invoker must know the second context value")
		order = append(order, "invoker")
		return outputError
	}

	err = ChainInterceptor(first, second)(parentContext, req, info, nil, invoker)
	require.Equal(t, outputError, err, "chain must return invoker's error")
	if diff := cmp.Diff([]string{"first", "second", "invoker"}, order); diff != "" {
		t.Errorf("interceptor order mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Post(t *testing.T) {
	t.Parallel()

	var got struct {
		request Request
		header  http.Header
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.header = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got.request))

		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = io.WriteString(gz, `{"data":{"something":"pong"}}`)
		_ = gz.Close()
	}))
	defer srv.Close()

	c := NewClient(srv.URL,
		WithHTTPClient(srv.Client()),
		WithInterceptors(RequestIDInterceptor(), BearerTokenInterceptor("s3cret")),
	)

	var out fakeRes
	err := c.Post(context.Background(), "Ping", "mutation Ping { ping }", map[string]any{"x": 1.0}, &out)
	require.NoError(t, err)
	require.Equal(t, "pong", out.Something)

	require.Equal(t, Request{
		Query:         "mutation Ping { ping }",
		Variables:     map[string]any{"x": 1.0},
		OperationName: "Ping",
	}, got.request)
	require.Equal(t, "Bearer s3cret", got.header.Get("Authorization"))
	require.Len(t, got.header.Get(RequestIDHeader), 36)
	require.Equal(t, "application/json; charset=utf-8", got.header.Get("Content-Type"))
}

func TestClient_PostKeepsCallerRequestID(t *testing.T) {
	t.Parallel()

	var requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get(RequestIDHeader)
		_, _ = io.WriteString(w, validData)
	}))
	defer srv.Close()

	setID := func(ctx context.Context, req *http.Request, info *GQLRequestInfo, out any, next RequestInterceptorFunc) error {
		req.Header.Set(RequestIDHeader, "fixed-id")
		return next(ctx, req, info, out)
	}

	c := NewClient(srv.URL, WithInterceptors(RequestIDInterceptor()))
	require.NoError(t, c.Post(context.Background(), "Ping", "mutation Ping { ping }", nil, &fakeRes{}, setID))
	require.Equal(t, "fixed-id", requestID, "per-call interceptors run after client interceptors")

	c = NewClient(srv.URL, WithInterceptors(setID, RequestIDInterceptor()))
	require.NoError(t, c.Post(context.Background(), "Ping", "mutation Ping { ping }", nil, &fakeRes{}))
	require.Equal(t, "fixed-id", requestID)
}

func TestClient_PostRetry(t *testing.T) {
	t.Parallel()

	retry := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("recovers after retryable statuses", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		var bodies []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			bodies = append(bodies, string(b))
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, validData)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, WithRetry(retry))
		var out fakeRes
		require.NoError(t, c.Post(context.Background(), "Ping", "mutation Ping { ping }", nil, &out))
		require.Equal(t, int32(3), calls.Load())
		require.Equal(t, "some data", out.Something)
		require.Len(t, bodies, 3)
		require.Equal(t, bodies[0], bodies[2], "request body must be replayed on every attempt")
	})

	t.Run("exhausted retries report the final status", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream down")
		}))
		defer srv.Close()

		c := NewClient(srv.URL, WithRetry(retry))
		err := c.Post(context.Background(), "Ping", "mutation Ping { ping }", nil, &fakeRes{})
		require.Equal(t, &ErrorResponse{
			NetworkError: &HTTPError{Code: http.StatusBadGateway, Message: "Response body upstream down"},
		}, err)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("non retryable status is sent once", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, gqlSingleErr)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, WithRetry(retry))
		err := c.Post(context.Background(), "Ping", "mutation Ping { ping }", nil, &fakeRes{})
		require.IsType(t, &ErrorResponse{}, err)
		require.Equal(t, int32(1), calls.Load())
	})
}

func TestClient_PostRetryStopsOnCancel(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			cancel()
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(RetryConfig{MaxRetries: 50, BaseDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond}))
	err := c.Post(ctx, "Ping", "mutation Ping { ping }", nil, &fakeRes{})
	require.ErrorIs(t, err, context.Canceled)
	require.LessOrEqual(t, calls.Load(), int32(3))
}

func TestDefaultShouldRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		err    error
		want   bool
	}{
		{name: "transport error", err: fmt.Errorf("dial tcp: connection refused"), want: true},
		{name: "canceled", err: fmt.Errorf("request failed: %w", context.Canceled), want: false},
		{name: "too many requests", status: http.StatusTooManyRequests, want: true},
		{name: "service unavailable", status: http.StatusServiceUnavailable, want: true},
		{name: "internal error", status: http.StatusInternalServerError, want: false},
		{name: "ok", status: http.StatusOK, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, DefaultShouldRetry(tt.status, tt.err))
		})
	}
}

func TestMetricsInterceptor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.OperationName == "Broken" {
			_, _ = io.WriteString(w, gqlSingleErr)
			return
		}
		_, _ = io.WriteString(w, validData)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := NewClient(srv.URL, WithMetrics(metrics))

	require.NoError(t, c.Post(context.Background(), "Ping", "mutation Ping { ping }", nil, &fakeRes{}))
	require.NoError(t, c.Post(context.Background(), "Ping", "mutation Ping { ping }", nil, &fakeRes{}))
	require.Error(t, c.Post(context.Background(), "Broken", "query Broken { x }", nil, &fakeRes{}))

	require.InDelta(t, 2, testutil.ToFloat64(metrics.requests.WithLabelValues("Ping", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(metrics.requests.WithLabelValues("Broken", "graphql_error")), 0)
	require.Equal(t, 2, testutil.CollectAndCount(metrics.duration))
}
