package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// GQLRequestInfo describes the GraphQL operation being sent.
type GQLRequestInfo struct {
	OperationName string
	Query         string
	Variables     map[string]any
}

type RequestInterceptor func(ctx context.Context, req *http.Request, info *GQLRequestInfo, out any, next RequestInterceptorFunc) error

type RequestInterceptorFunc func(ctx context.Context, req *http.Request, info *GQLRequestInfo, out any) error

// ChainInterceptor composes interceptors so the first one given runs outermost.
func ChainInterceptor(interceptors ...RequestInterceptor) RequestInterceptor {
	n := len(interceptors)

	return func(ctx context.Context, req *http.Request, info *GQLRequestInfo, out any, next RequestInterceptorFunc) error {
		chainer := func(currentInter RequestInterceptor, currentFunc RequestInterceptorFunc) RequestInterceptorFunc {
			return func(currentCtx context.Context, currentReq *http.Request, currentInfo *GQLRequestInfo, currentOut any) error {
				return currentInter(currentCtx, currentReq, currentInfo, currentOut, currentFunc)
			}
		}

		chainedHandler := next
		for i := n - 1; i >= 0; i-- {
			chainedHandler = chainer(interceptors[i], chainedHandler)
		}

		return chainedHandler(ctx, req, info, out)
	}
}

// RequestIDInterceptor sets X-Request-ID to a fresh uuid unless the caller already set one.
func RequestIDInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *http.Request, info *GQLRequestInfo, out any, next RequestInterceptorFunc) error {
		if req.Header.Get(RequestIDHeader) == "" {
			req.Header.Set(RequestIDHeader, uuid.NewString())
		}

		return next(ctx, req, info, out)
	}
}

func BearerTokenInterceptor(token string) RequestInterceptor {
	return func(ctx context.Context, req *http.Request, info *GQLRequestInfo, out any, next RequestInterceptorFunc) error {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		return next(ctx, req, info, out)
	}
}
