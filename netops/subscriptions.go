package netops

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/netopsio/netopsgql/subscription"
)

// Stream delivers decoded subscription events. The channel returned by Next
// closes when the server completes the subscription, on Close, when ctx is
// done, or when an event fails to decode or carries errors.
type Stream[T any] struct {
	sub   *subscription.Subscription
	field string
	ch    chan T

	closing   chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func newStream[T any](sub *subscription.Subscription, field string) *Stream[T] {
	s := &Stream[T]{
		sub:     sub,
		field:   field,
		ch:      make(chan T),
		closing: make(chan struct{}),
	}
	go s.run()

	return s
}

func (s *Stream[T]) Next() <-chan T {
	return s.ch
}

// Err reports why the stream ended. It is nil while events are flowing and
// after a server complete.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.sub.Err()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Stream[T]) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
	s.sub.Unsubscribe()
}

func (s *Stream[T]) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.sub.Unsubscribe()
}

func (s *Stream[T]) run() {
	defer close(s.ch)

	for msg := range s.sub.Next() {
		if len(msg.Errors) > 0 {
			s.fail(&subscription.Error{Errors: msg.Errors})
			return
		}

		v, err := s.decode(msg.Data)
		if err != nil {
			s.fail(err)
			return
		}

		select {
		case s.ch <- v:
		case <-s.closing:
			return
		}
	}
}

func (s *Stream[T]) decode(data json.RawMessage) (T, error) {
	var zero T

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return zero, fmt.Errorf("decode %s event: %w", s.field, err)
	}
	raw, ok := envelope[s.field]
	if !ok {
		return zero, fmt.Errorf("decode %s event: field missing from %s", s.field, string(data))
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("decode %s event: %w", s.field, err)
	}

	return v, nil
}

func subscribe[T any](ctx context.Context, c *Client, doc Document, field string, vars map[string]any) (*Stream[T], error) {
	if c.subscriber == nil {
		return nil, ErrNoSubscriber
	}

	sub, err := c.subscriber.Subscribe(ctx, doc.Name, doc.Query, vars)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", doc.Name, err)
	}

	return newStream[T](sub, field), nil
}

// DeviceUpdated streams device changes, for one device when deviceID is set.
func (c *Client) DeviceUpdated(ctx context.Context, deviceID *string) (*Stream[*Device], error) {
	vars := map[string]any{}
	setOptional(vars, "deviceId", deviceID)

	return subscribe[*Device](ctx, c, DeviceUpdatedDocument, "deviceUpdated", vars)
}

func (c *Client) NetworkAlertUpdated(ctx context.Context, minSeverity *AlertSeverity) (*Stream[*NetworkAlert], error) {
	if err := validEnum("minSeverity", minSeverity); err != nil {
		return nil, err
	}

	vars := map[string]any{}
	setOptional(vars, "minSeverity", minSeverity)

	return subscribe[*NetworkAlert](ctx, c, NetworkAlertUpdatedDocument, "networkAlertUpdated", vars)
}

func (c *Client) CustomerNetworkStatusUpdated(ctx context.Context, customerID string) (*Stream[*CustomerNetworkStatus], error) {
	if err := requireID("customerId", customerID); err != nil {
		return nil, err
	}

	return subscribe[*CustomerNetworkStatus](ctx, c, CustomerNetworkStatusUpdatedDocument, "customerNetworkStatusUpdated", map[string]any{"customerId": customerID})
}

func (c *Client) WorkflowUpdated(ctx context.Context, workflowID string) (*Stream[*Workflow], error) {
	if err := requireID("workflowId", workflowID); err != nil {
		return nil, err
	}

	return subscribe[*Workflow](ctx, c, WorkflowUpdatedDocument, "workflowUpdated", map[string]any{"workflowId": workflowID})
}
