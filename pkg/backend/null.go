//
//  Copyright © Manetu Inc. All rights reserved.
//

package backend

import (
	"context"

	"github.com/manetu/auditinterceptor/pkg/pipeline"
	"github.com/manetu/auditinterceptor/pkg/record"
)

// Null drops every record on the floor.  It is useful when audit delivery is
// disabled by configuration, such as for testing.
type Null struct{}

// NewNullFactory creates a [Factory] for [Null]
func NewNullFactory() Factory {
	return FactoryFunc(func() (pipeline.Stage, error) {
		return &Null{}, nil
	})
}

// Name implements pipeline.Named
func (s *Null) Name() string { return "null" }

// Process passes the record through untouched
func (s *Null) Process(_ context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	return rec, nil
}
