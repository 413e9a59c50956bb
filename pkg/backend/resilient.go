//
//  Copyright © Manetu Inc. All rights reserved.
//

package backend

import (
	"context"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/manetu/auditinterceptor/pkg/pipeline"
	"github.com/manetu/auditinterceptor/pkg/record"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Resilient wraps a backend with retries, a circuit breaker and optional
// rate limiting.  Each delivery is attempted up to the configured number of
// times with exponential backoff; repeated failed deliveries open the breaker,
// which then fails deliveries fast until its timeout elapses.
type Resilient struct {
	next     pipeline.Stage
	attempts uint
	failures uint32
	timeout  time.Duration
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker
}

// ResilientOption configures a [Resilient] backend
type ResilientOption func(*Resilient)

// WithAttempts sets the number of delivery attempts per record (default 3)
func WithAttempts(n uint) ResilientOption {
	return func(r *Resilient) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithBreakerFailures sets the consecutive failed deliveries that open the breaker (default 5)
func WithBreakerFailures(n uint32) ResilientOption {
	return func(r *Resilient) {
		if n > 0 {
			r.failures = n
		}
	}
}

// WithBreakerTimeout sets how long the breaker stays open (default 30s)
func WithBreakerTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		r.timeout = d
	}
}

// WithRateLimit caps deliveries to perSecond with the given burst.  Deliveries
// over the limit wait, subject to the call's context.
func WithRateLimit(perSecond float64, burst int) ResilientOption {
	return func(r *Resilient) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewResilient wraps next
func NewResilient(next pipeline.Stage, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		next:     next,
		attempts: 3,
		failures: 5,
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        r.Name(),
		MaxRequests: 1,
		Timeout:     r.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= r.failures
		},
	})

	return r
}

// NewResilientFactory wraps the backends created by next
func NewResilientFactory(next Factory, opts ...ResilientOption) Factory {
	return FactoryFunc(func() (pipeline.Stage, error) {
		s, err := next.NewBackend()
		if err != nil {
			return nil, err
		}
		return NewResilient(s, opts...), nil
	})
}

// Name implements pipeline.Named
func (r *Resilient) Name() string {
	return "resilient(" + pipeline.StageName(r.next) + ")"
}

type delivery struct {
	rec  *record.AuditRecord
	stop error
}

// Process implements pipeline.Stage.  A precondition failure from the wrapped
// backend is passed through without retrying and does not count as a failure.
func (r *Resilient) Process(ctx context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limit")
		}
	}

	result, err := r.cb.Execute(func() (interface{}, error) {
		d := &delivery{}
		retrier := retry.New(
			retry.Context(ctx),
			retry.Attempts(r.attempts),
			retry.DelayType(retry.BackOffDelay),
		)
		err := retrier.Do(func() error {
			out, err := r.next.Process(ctx, rec)
			if common.IsPreconditionFailed(err) {
				d.stop = err
				return nil
			}
			d.rec = out
			return err
		})
		return d, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "delivery via %s failed", pipeline.StageName(r.next))
	}

	d := result.(*delivery)
	if d.stop != nil {
		return nil, d.stop
	}
	return d.rec, nil
}

// State reports the circuit breaker state
func (r *Resilient) State() gobreaker.State {
	return r.cb.State()
}

// Close closes the wrapped backend
func (r *Resilient) Close() {
	if c, ok := r.next.(pipeline.Closer); ok {
		c.Close()
	}
}
