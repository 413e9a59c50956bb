//
//  Copyright © Manetu Inc. All rights reserved.
//

package backend

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/manetu/auditinterceptor/pkg/pipeline"
	"github.com/manetu/auditinterceptor/pkg/record"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flaky fails its first n deliveries
type flaky struct {
	failFirst int32
	calls     atomic.Int32
	closed    bool
}

func (f *flaky) Name() string { return "flaky" }

func (f *flaky) Process(_ context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	if f.calls.Add(1) <= f.failFirst {
		return nil, errors.New("collector unavailable")
	}
	return rec, nil
}

func (f *flaky) Close() { f.closed = true }

func TestResilientRetries(t *testing.T) {
	next := &flaky{failFirst: 2}
	r := NewResilient(next, WithAttempts(3))
	assert.Equal(t, "resilient(flaky)", r.Name())

	rec := newRecord(t)
	out, err := r.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Same(t, rec, out)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestResilientExhausted(t *testing.T) {
	next := &flaky{failFirst: 100}
	r := NewResilient(next, WithAttempts(2))

	_, err := r.Process(context.Background(), newRecord(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery via flaky failed")
	assert.Contains(t, err.Error(), "collector unavailable")
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestResilientBreakerOpens(t *testing.T) {
	next := &flaky{failFirst: 100}
	r := NewResilient(next, WithAttempts(1), WithBreakerFailures(2))

	for i := 0; i < 2; i++ {
		_, err := r.Process(context.Background(), newRecord(t))
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, r.State())

	// open breaker fails fast without reaching the backend
	_, err := r.Process(context.Background(), newRecord(t))
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestResilientPreconditionNotRetried(t *testing.T) {
	var calls int
	skip := pipeline.StageFunc(func(context.Context, *record.AuditRecord) (*record.AuditRecord, error) {
		calls++
		return nil, common.PreconditionFailed("not for this backend")
	})
	r := NewResilient(skip, WithAttempts(3), WithBreakerFailures(1))

	_, err := r.Process(context.Background(), newRecord(t))
	assert.True(t, common.IsPreconditionFailed(err))
	assert.Equal(t, 1, calls)
	assert.Equal(t, gobreaker.StateClosed, r.State())
}

func TestResilientRateLimit(t *testing.T) {
	r := NewResilient(&flaky{}, WithRateLimit(1, 1))

	_, err := r.Process(context.Background(), newRecord(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Process(ctx, newRecord(t))
	assert.ErrorContains(t, err, "rate limit")
}

func TestResilientFactoryAndClose(t *testing.T) {
	next := &flaky{}
	s, err := NewResilientFactory(FactoryFunc(func() (pipeline.Stage, error) { return next, nil })).NewBackend()
	require.NoError(t, err)

	s.(pipeline.Closer).Close()
	assert.True(t, next.closed)

	_, err = NewResilientFactory(FactoryFunc(func() (pipeline.Stage, error) {
		return nil, errors.New("no collector")
	})).NewBackend()
	assert.Error(t, err)
}
