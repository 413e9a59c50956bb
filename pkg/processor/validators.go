//
//  Copyright © Manetu Inc. All rights reserved.
//

package processor

import (
	"context"
	"strings"

	"github.com/manetu/auditinterceptor/pkg/record"
	"github.com/manetu/auditinterceptor/pkg/selector"
	"github.com/pkg/errors"
)

// RequiredFields rejects records missing their identifying fields, and close
// records without a status.
type RequiredFields struct{}

// NewRequiredFields returns a RequiredFields validator
func NewRequiredFields() *RequiredFields { return &RequiredFields{} }

// Name implements pipeline.Named
func (v *RequiredFields) Name() string { return "required-fields" }

// Process implements pipeline.Stage
func (v *RequiredFields) Process(_ context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	var missing []string
	if rec.MethodName == "" {
		missing = append(missing, "methodName")
	}
	if rec.ServiceName == "" {
		missing = append(missing, "serviceName")
	}
	if rec.ResourceName == "" {
		missing = append(missing, "resourceName")
	}
	if rec.Operation.ID == "" {
		missing = append(missing, "operation.id")
	}
	if rec.Timestamp.IsZero() {
		missing = append(missing, "timestamp")
	}
	if rec.Trigger == record.TriggerClose && rec.Status == nil {
		missing = append(missing, "status")
	}

	if len(missing) > 0 {
		return nil, errors.Errorf("record %s is missing %s", rec.Operation.ID, strings.Join(missing, ", "))
	}
	return rec, nil
}

// Payload checks that the message which triggered a record is attached when
// the record's directive asks for it.
type Payload struct{}

// NewPayload returns a Payload validator
func NewPayload() *Payload { return &Payload{} }

// Name implements pipeline.Named
func (v *Payload) Name() string { return "payload" }

// Process implements pipeline.Stage
func (v *Payload) Process(_ context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	directive, err := selector.ParseDirective(rec.Directive)
	if err != nil {
		return nil, err
	}

	switch rec.Trigger {
	case record.TriggerRequest:
		if directive.IncludesRequest() && rec.Request == nil {
			return nil, errors.Errorf("record %s: %s requires a request payload", rec.Operation.ID, directive)
		}
	case record.TriggerResponse:
		if directive.IncludesResponse() && rec.Response == nil {
			return nil, errors.Errorf("record %s: %s requires a response payload", rec.Operation.ID, directive)
		}
	}
	return rec, nil
}
