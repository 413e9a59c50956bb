//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package record defines the audit record emitted for intercepted calls and
// the helpers used to assemble it.
//
// A skeleton record is created when a call starts.  Handler code mutates it
// through the [Builder] attached to the call context, and the interceptor
// finalizes a copy at every emission point with [Finalize].
package record

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// UnspecifiedResource is the resource name of a record until handler code sets one
const UnspecifiedResource = "UNSPECIFIED_RESOURCE"

// Reserved metadata keys
const (
	JustificationKey       = "justification"
	OriginatingResourceKey = "originatingResource"
)

// Trigger names the lifecycle point that produced a record
type Trigger string

// Triggers
const (
	// TriggerRequest marks an inbound message logged before any response was paired with it
	TriggerRequest Trigger = "request"
	// TriggerResponse marks an outbound message, paired with the latest unlogged request if any
	TriggerResponse Trigger = "response"
	// TriggerClose marks a call that closed with a non-OK status
	TriggerClose Trigger = "close"
)

// Operation correlates every record emitted for one call
type Operation struct {
	ID       string
	Producer string
}

// AuditRecord is the structured audit entry for one call or logging trigger point.
type AuditRecord struct {
	MethodName   string
	ServiceName  string
	ResourceName string
	// Principal is empty when the caller was not identified
	Principal string
	LogType   string
	Directive string
	Trigger   Trigger

	Request  *structpb.Value
	Response *structpb.Value
	// Status is nil until the call closes
	Status *spb.Status

	// Timestamp is the time the call started
	Timestamp time.Time
	Labels    map[string]string
	Metadata  map[string]interface{}
	Operation Operation

	// Justification is the raw token presented by the caller.  It is consumed
	// by the justification processor and never serialized.
	Justification string
}

// New returns a skeleton record for a call to method
func New(method, service string, now time.Time) *AuditRecord {
	return &AuditRecord{
		MethodName:   method,
		ServiceName:  service,
		ResourceName: UnspecifiedResource,
		Timestamp:    now,
		Labels:       map[string]string{},
		Metadata:     map[string]interface{}{},
		Operation: Operation{
			ID:       uuid.NewString(),
			Producer: method,
		},
	}
}

// Clone returns a deep copy of the record
func (r *AuditRecord) Clone() *AuditRecord {
	c := *r
	c.Labels = deepcopy.Copy(r.Labels).(map[string]string)
	c.Metadata = deepcopy.Copy(r.Metadata).(map[string]interface{})
	if c.Labels == nil {
		c.Labels = map[string]string{}
	}
	if c.Metadata == nil {
		c.Metadata = map[string]interface{}{}
	}
	if r.Request != nil {
		c.Request = proto.Clone(r.Request).(*structpb.Value)
	}
	if r.Response != nil {
		c.Response = proto.Clone(r.Response).(*structpb.Value)
	}
	if r.Status != nil {
		c.Status = proto.Clone(r.Status).(*spb.Status)
	}
	return &c
}

// SetStatus records the final status of the call
func (r *AuditRecord) SetStatus(code codes.Code, message string) {
	r.Status = &spb.Status{Code: int32(code), Message: message}
}

// AsMap returns the record as a generic tree suitable for JSON encoding and
// policy evaluation.  Absent optional fields are omitted.
func (r *AuditRecord) AsMap() map[string]interface{} {
	m := map[string]interface{}{
		"methodName":   r.MethodName,
		"serviceName":  r.ServiceName,
		"resourceName": r.ResourceName,
		"logType":      r.LogType,
		"directive":    r.Directive,
		"trigger":      string(r.Trigger),
		"timestamp":    r.Timestamp.UTC().Format(time.RFC3339Nano),
		"operation": map[string]interface{}{
			"id":       r.Operation.ID,
			"producer": r.Operation.Producer,
		},
	}

	if r.Principal != "" {
		m["principal"] = r.Principal
	}
	if r.Request != nil {
		m["request"] = r.Request.AsInterface()
	}
	if r.Response != nil {
		m["response"] = r.Response.AsInterface()
	}
	if r.Status != nil {
		m["status"] = map[string]interface{}{
			"code":    codes.Code(r.Status.Code).String(), // #nosec G115 -- grpc codes are small
			"message": r.Status.Message,
		}
	}
	if len(r.Labels) > 0 {
		labels := make(map[string]interface{}, len(r.Labels))
		for k, v := range r.Labels {
			labels[k] = v
		}
		m["labels"] = labels
	}
	if len(r.Metadata) > 0 {
		m["metadata"] = deepcopy.Copy(r.Metadata)
	}

	return m
}

// MarshalJSON encodes the record via [AuditRecord.AsMap]
func (r *AuditRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.AsMap())
}
