package subscription

import (
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Subprotocol is the websocket subprotocol negotiated with the server.
const Subprotocol = "graphql-transport-ws"

// Message types of the graphql-transport-ws protocol.
const (
	MsgConnectionInit = "connection_init"
	MsgConnectionAck  = "connection_ack"
	MsgPing           = "ping"
	MsgPong           = "pong"
	MsgSubscribe      = "subscribe"
	MsgNext           = "next"
	MsgError          = "error"
	MsgComplete       = "complete"
)

// Close codes the server uses to reject a connection.
const (
	CloseInternalError   = 4500
	CloseBadRequest      = 4400
	CloseUnauthorized    = 4401
	CloseForbidden       = 4403
	CloseInitTimeout     = 4408
	CloseSubscriberTaken = 4409
	CloseTooManyInits    = 4429
)

// CloseError reports a connection the server closed with one of the
// protocol close codes. It matches ErrConnectionClosed with errors.Is.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("%s: server closed with %d %s", ErrConnectionClosed, e.Code, e.Reason)
}

func (e *CloseError) Unwrap() error {
	return ErrConnectionClosed
}

func isProtocolCloseCode(code int) bool {
	switch code {
	case CloseInternalError, CloseBadRequest, CloseUnauthorized, CloseForbidden,
		CloseInitTimeout, CloseSubscriberTaken, CloseTooManyInits:
		return true
	default:
		return false
	}
}

// Envelope is a single protocol frame.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload is the payload of a subscribe frame.
type SubscribePayload struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Message is one execution result delivered on a subscription.
type Message struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors gqlerror.List   `json:"errors,omitempty"`
}

// Error ends a subscription that the server rejected with an error frame.
type Error struct {
	Errors gqlerror.List
}

func (e *Error) Error() string {
	return e.Errors.Error()
}
