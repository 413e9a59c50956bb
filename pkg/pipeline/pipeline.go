//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package pipeline runs audit records through ordered groups of stages.
//
// A [Pipeline] executes its validators, then its mutators, then its backends,
// each stage consuming the output of the one before:
//
//	p, err := pipeline.New(
//	    pipeline.WithValidators(processor.NewRequiredFields()),
//	    pipeline.WithMutators(processor.NewLabels(labels)),
//	    pipeline.WithBackends(backend.NewStdout()),
//	)
//
// A stage that returns [common.PreconditionFailed] ends processing of the
// current record quietly.  Every other failure is returned as a processing
// error naming the failing stage.
package pipeline

import (
	"context"

	"github.com/manetu/auditinterceptor/internal/logging"
	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/manetu/auditinterceptor/pkg/record"
	"github.com/pkg/errors"
)

var logger = logging.GetLogger("auditinterceptor.pipeline")

const agent = "pipeline"

// Pipeline is an immutable, ordered set of stages.  It is safe for concurrent use.
type Pipeline struct {
	validators []Stage
	mutators   []Stage
	backends   []Stage
}

// Option adds stages to a pipeline under construction
type Option func(*Pipeline)

// WithValidators appends validator stages
func WithValidators(stages ...Stage) Option {
	return func(p *Pipeline) {
		p.validators = append(p.validators, stages...)
	}
}

// WithMutators appends mutator stages
func WithMutators(stages ...Stage) Option {
	return func(p *Pipeline) {
		p.mutators = append(p.mutators, stages...)
	}
}

// WithBackends appends backend stages
func WithBackends(stages ...Stage) Option {
	return func(p *Pipeline) {
		p.backends = append(p.backends, stages...)
	}
}

// New assembles a pipeline.  At least one backend is required.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}

	if len(p.backends) == 0 {
		return nil, common.NewConfigError("pipeline requires at least one backend")
	}

	return p, nil
}

func (p *Pipeline) stages() []Stage {
	all := make([]Stage, 0, len(p.validators)+len(p.mutators)+len(p.backends))
	all = append(all, p.validators...)
	all = append(all, p.mutators...)
	return append(all, p.backends...)
}

// Stages returns the names of all stages in execution order
func (p *Pipeline) Stages() []string {
	var names []string
	for _, s := range p.stages() {
		names = append(names, StageName(s))
	}
	return names
}

// Log runs rec through every stage.  It returns nil when all stages succeed
// or when a stage short-circuits with [common.PreconditionFailed].
func (p *Pipeline) Log(ctx context.Context, rec *record.AuditRecord) error {
	current := rec
	for _, s := range p.stages() {
		name := StageName(s)

		next, err := s.Process(ctx, current)
		if err != nil {
			if common.IsPreconditionFailed(err) {
				logger.Debugf(agent, "log", "%s stopped record %s: %v", name, rec.Operation.ID, err)
				return nil
			}
			return common.NewProcessingError(name, err)
		}
		if next == nil {
			return common.NewProcessingError(name, errors.New("stage returned no record"))
		}

		current = next
	}

	return nil
}

// Close releases the resources held by stages that implement [Closer]
func (p *Pipeline) Close() {
	for _, s := range p.stages() {
		if c, ok := s.(Closer); ok {
			c.Close()
		}
	}
}
