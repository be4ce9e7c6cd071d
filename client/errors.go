package client

import (
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// GqlErrorList is the errors member of a GraphQL response.
type GqlErrorList struct {
	Errors gqlerror.List `json:"errors"`
}

func (e *GqlErrorList) Error() string {
	return e.Errors.Error()
}

// HTTPError describes a non-2xx response.
type HTTPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

// ErrorResponse is returned by Post for non-2xx statuses and GraphQL errors.
// Both members may be set: some gateways answer 4xx with a GraphQL body.
type ErrorResponse struct {
	NetworkError *HTTPError     `json:"networkErrors"`
	GqlErrors    *gqlerror.List `json:"graphqlErrors"`
}

func (er *ErrorResponse) HasErrors() bool {
	return er.NetworkError != nil || er.GqlErrors != nil
}

func (er *ErrorResponse) Error() string {
	content, err := json.Marshal(er)
	if err != nil {
		return err.Error()
	}

	return string(content)
}

// StatusCode is the HTTP status of a failed response, or 0.
func (er *ErrorResponse) StatusCode() int {
	if er.NetworkError == nil {
		return 0
	}
	return er.NetworkError.Code
}

// HasCode reports whether any graphql error carries the given extensions.code.
func (er *ErrorResponse) HasCode(code string) bool {
	if er.GqlErrors == nil {
		return false
	}
	for _, e := range *er.GqlErrors {
		if c, ok := e.Extensions["code"].(string); ok && c == code {
			return true
		}
	}
	return false
}
