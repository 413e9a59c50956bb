//
//  Copyright © Manetu Inc. All rights reserved.
//

package pipeline

import (
	"context"
	"fmt"

	"github.com/manetu/auditinterceptor/pkg/record"
)

// Stage is one step of the pipeline: a validator, a mutator or a backend.
//
// Process receives the record produced by the previous stage and returns the
// record handed to the next one; it may modify and return its input.  To stop
// processing of the record without a fault, return [common.PreconditionFailed].
// Any other error aborts the run.
//
// Implementations must be safe for concurrent use, since every in-flight call
// shares one pipeline.
type Stage interface {
	Process(ctx context.Context, rec *record.AuditRecord) (*record.AuditRecord, error)
}

// Named is implemented by stages that report a name for logs and errors
type Named interface {
	Name() string
}

// Closer is implemented by stages that hold resources.  The pipeline calls
// Close once when it is closed.
type Closer interface {
	Close()
}

// StageFunc adapts a function to the Stage interface
type StageFunc func(ctx context.Context, rec *record.AuditRecord) (*record.AuditRecord, error)

// Process calls f
func (f StageFunc) Process(ctx context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	return f(ctx, rec)
}

type namedStage struct {
	Stage
	name string
}

func (n *namedStage) Name() string { return n.name }

// WithName attaches a name to s
func WithName(name string, s Stage) Stage {
	return &namedStage{Stage: s, name: name}
}

// StageName returns the reported name of s, or its type when it has none
func StageName(s Stage) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
