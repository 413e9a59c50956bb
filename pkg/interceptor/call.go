//
//  Copyright © Manetu Inc. All rights reserved.
//

package interceptor

import (
	"context"
	"sync"
	"time"

	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/manetu/auditinterceptor/pkg/record"
	"github.com/manetu/auditinterceptor/pkg/selector"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type callState int

const (
	stateOpen callState = iota
	stateHalfClosed
	stateClosed
)

func (s callState) String() string {
	switch s {
	case stateOpen:
		return "OPEN"
	case stateHalfClosed:
		return "HALF_CLOSED"
	default:
		return "CLOSED"
	}
}

// call correlates the inbound and outbound messages of one audited RPC and
// decides when records are emitted.
//
//   - inbound: unlogged inbound messages from earlier turns are emitted oldest
//     first without a response, then the new message is queued
//   - outbound: the most recent unlogged inbound message, if any, is paired
//     with the response and emitted
//   - close with a non-OK status: the oldest unlogged inbound message, if any,
//     is emitted together with the status
//   - close with OK: nothing further is emitted
type call struct {
	ic       *Interceptor
	method   string
	selector *selector.Selector
	builder  *record.Builder
	pending  pendingQueue

	mu        sync.Mutex
	state     callState
	closeOnce sync.Once
}

func (c *call) currentState() callState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *call) closed() bool {
	return c.currentState() == stateClosed
}

func (c *call) halfClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateOpen {
		c.state = stateHalfClosed
	}
}

func (c *call) onInbound(ctx context.Context, msg interface{}) error {
	if c.closed() {
		return nil
	}

	var failed bool
	for _, prior := range c.pending.drain() {
		if err := c.emit(ctx, record.TriggerRequest, prior, nil, nil); err != nil {
			failed = true
		}
	}
	c.pending.pushLast(msg)

	if failed {
		return c.reject()
	}
	return nil
}

func (c *call) onOutbound(ctx context.Context, msg interface{}) error {
	if c.closed() {
		return nil
	}

	req, _ := c.pending.pollLast()
	if err := c.emit(ctx, record.TriggerResponse, req, msg, nil); err != nil {
		return c.reject()
	}

	return nil
}

// close moves the call to its terminal state.  Only the first invocation has
// any effect.  Emission failures here are logged and never replace st.
func (c *call) close(ctx context.Context, st *status.Status) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = stateClosed
		c.mu.Unlock()

		if st.Code() != codes.OK {
			req, _ := c.pending.pollFirst()
			_ = c.emit(ctx, record.TriggerClose, req, nil, st)
		}

		if leftover := c.pending.drain(); len(leftover) > 0 {
			logger.Debugf(agent, "close", "%s: dropping %d unlogged inbound message(s)", c.method, len(leftover))
		}
	})
}

// emit finalizes and logs one record.  Cancellation of the caller does not
// reach the pipeline, so a cancelled call is still audited.
func (c *call) emit(ctx context.Context, trigger record.Trigger, req, resp interface{}, st *status.Status) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	rec, err := record.Finalize(c.builder.Snapshot(), c.selector.Directive, trigger, req, resp)
	if err != nil {
		err = common.NewProcessingError("record", err)
	} else {
		if st != nil {
			rec.SetStatus(st.Code(), st.Message())
		}
		err = c.ic.pipeline.Log(ctx, rec)
	}

	c.ic.metrics.recordEmitted(c.method, trigger, time.Since(start), err)
	if err != nil {
		logger.Errorf(agent, "emit", "%s: failed to log %s record: %+v", c.method, trigger, err)
		return err
	}

	return nil
}

// reject applies the fail mode after an emission failure
func (c *call) reject() error {
	if c.ic.failMode == FailOpen {
		return nil
	}
	return status.Error(codes.Internal, "audit logging failed")
}
