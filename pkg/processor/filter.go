//
//  Copyright © Manetu Inc. All rights reserved.
//

package processor

import (
	"context"

	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/manetu/auditinterceptor/pkg/opa"
	"github.com/manetu/auditinterceptor/pkg/record"
)

// FilterQuery is the rule a filter policy must define
const FilterQuery = "data.audit.filter.allow"

// Filter evaluates a Rego policy against every record and stops processing of
// records it does not allow.  The policy sees the record as input:
//
//	package audit.filter
//
//	default allow := true
//
//	allow = false if input.principal == "healthchecker"
type Filter struct {
	policy *opa.Ast
}

// NewFilter compiles module.  Network builtins are unavailable to the policy.
func NewFilter(module string) (*Filter, error) {
	compiler := opa.NewCompiler(opa.WithUnsafeBuiltins(opa.Builtins{"http.send": {}, "net.lookup_ip_addr": {}}))
	policy, err := compiler.Compile("audit-filter", opa.Modules{"filter.rego": module})
	if err != nil {
		return nil, common.NewConfigError("invalid filter policy: %v", err)
	}
	return &Filter{policy: policy}, nil
}

// Name implements pipeline.Named
func (f *Filter) Name() string { return "filter" }

// Process implements pipeline.Stage
func (f *Filter) Process(ctx context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	allowed, err := f.policy.EvaluateBool(ctx, FilterQuery, rec.AsMap())
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, common.PreconditionFailed("record excluded by filter policy")
	}
	return rec, nil
}
