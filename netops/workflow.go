package netops

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultPollInterval = 2 * time.Second

type WaitOptions struct {
	// PollInterval applies when no subscription is available. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// OnUpdate is called for every observed change of status or update time.
	OnUpdate func(*Workflow)
}

// WaitForWorkflow blocks until the workflow reaches a terminal status and
// returns it. It follows workflowUpdated when a Subscriber is configured and
// polls otherwise, or once the subscription fails.
func (c *Client) WaitForWorkflow(ctx context.Context, id string, opts WaitOptions) (*Workflow, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	logger := c.logger.WithField("workflow_id", id)
	w := &workflowWatch{onUpdate: opts.OnUpdate}

	// subscribe before the first read so no transition falls in between
	var stream *Stream[*Workflow]
	if c.subscriber != nil {
		s, err := c.WorkflowUpdated(ctx, id)
		if err != nil {
			logger.WithError(err).Warn("workflow subscription unavailable, polling")
		} else {
			stream = s
			defer stream.Close()
		}
	}

	wf, err := c.fetchWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.observe(wf) {
		return wf, nil
	}

	if stream != nil {
		done, err := w.follow(ctx, stream)
		if done != nil || err != nil {
			return done, err
		}
		logger.WithError(stream.Err()).Warn("workflow subscription ended, polling")
	}

	return c.pollWorkflow(ctx, id, opts.PollInterval, w, logger)
}

func (c *Client) fetchWorkflow(ctx context.Context, id string) (*Workflow, error) {
	wf, err := c.Workflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return wf, nil
}

func (c *Client) pollWorkflow(ctx context.Context, id string, interval time.Duration, w *workflowWatch, logger *logrus.Entry) (*Workflow, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		wf, err := c.fetchWorkflow(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		logger.WithField("status", wf.Status).Debug("polled workflow")

		if w.observe(wf) {
			return wf, nil
		}
	}
}

type workflowWatch struct {
	onUpdate func(*Workflow)

	seen       bool
	lastStatus WorkflowStatus
	lastUpdate time.Time
}

// observe reports whether wf is terminal, notifying onUpdate on changes.
func (w *workflowWatch) observe(wf *Workflow) bool {
	if !w.seen || wf.Status != w.lastStatus || !wf.UpdatedAt.Equal(w.lastUpdate) {
		w.seen = true
		w.lastStatus = wf.Status
		w.lastUpdate = wf.UpdatedAt.Time
		if w.onUpdate != nil {
			w.onUpdate(wf)
		}
	}
	return wf.Status.IsTerminal()
}

// follow returns the terminal workflow, or nil and no error when the stream
// ended first.
func (w *workflowWatch) follow(ctx context.Context, stream *Stream[*Workflow]) (*Workflow, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case wf, ok := <-stream.Next():
			if !ok {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, nil
			}
			if wf != nil && w.observe(wf) {
				return wf, nil
			}
		}
	}
}
