package subscription

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Subscription is one running operation on a Conn.
type Subscription struct {
	conn          *Conn
	id            string
	operationName string

	ch       chan Message
	stop     chan struct{}
	stopOnce sync.Once

	// sendMu guards ch against close while a delivery is in flight.
	sendMu   sync.Mutex
	finished bool

	errMu sync.Mutex
	err   error
}

func newSubscription(conn *Conn, id, operationName string, buffer int) *Subscription {
	return &Subscription{
		conn:          conn,
		id:            id,
		operationName: operationName,
		ch:            make(chan Message, buffer),
		stop:          make(chan struct{}),
	}
}

// ID is the protocol id of the subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Next delivers execution results until the subscription ends.
func (s *Subscription) Next() <-chan Message {
	return s.ch
}

// Err reports why the subscription ended: nil after a server complete or
// Unsubscribe, *Error after an error frame, ErrConnectionClosed otherwise.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Unsubscribe stops the operation on the server. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s.conn.remove(s.id) && !s.conn.isClosed() {
		if err := s.conn.write(Envelope{ID: s.id, Type: MsgComplete}); err != nil {
			s.conn.logger.WithError(err).WithFields(logrus.Fields{
				"operation": s.operationName,
				"id":        s.id,
			}).Warn("failed to send complete")
		}
	}
	s.finish(nil)
}

// deliver blocks until the consumer takes msg or the subscription stops.
func (s *Subscription) deliver(msg Message) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.finished {
		return
	}

	select {
	case s.ch <- msg:
	case <-s.stop:
	}
}

func (s *Subscription) finish(err error) {
	s.stopOnce.Do(func() { close(s.stop) })

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.finished {
		return
	}
	s.finished = true

	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()

	close(s.ch)
}
