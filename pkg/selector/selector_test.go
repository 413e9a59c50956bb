//
//  Copyright © Manetu Inc. All rights reserved.
//

package selector

import (
	"testing"

	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		name     string
		expected Directive
	}{
		{"AUDIT", Audit},
		{"audit_request_only", AuditRequestOnly},
		{" AUDIT_REQUEST_AND_RESPONSE ", AuditRequestAndResponse},
	}
	for _, tt := range tests {
		d, err := ParseDirective(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, d)
	}

	_, err := ParseDirective("AUDIT_EVERYTHING")
	assert.True(t, common.IsConfig(err))
}

func TestDirectiveBodies(t *testing.T) {
	assert.False(t, Audit.IncludesRequest())
	assert.False(t, Audit.IncludesResponse())
	assert.True(t, AuditRequestOnly.IncludesRequest())
	assert.False(t, AuditRequestOnly.IncludesResponse())
	assert.True(t, AuditRequestAndResponse.IncludesRequest())
	assert.True(t, AuditRequestAndResponse.IncludesResponse())
	assert.Equal(t, "UNKNOWN", Directive(42).String())
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		pattern string
		valid   bool
	}{
		{"*", true},
		{"pkg.Service.*", true},
		{"pkg.Service.Method", true},
		{"", false},
		{"pkg.*.Method", false},
		{"**", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			_, err := New(tt.pattern, Audit, "DATA_ACCESS")
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, common.IsConfig(err))
			}
		})
	}

	_, err := New("pkg", Directive(-1), "")
	assert.True(t, common.IsConfig(err))
}

func TestMatches(t *testing.T) {
	all := Selector{Pattern: "*"}
	assert.True(t, all.Matches("anything.At.All"))
	assert.True(t, all.Matches(""))

	prefix := Selector{Pattern: "pkg.Service.*"}
	assert.True(t, prefix.Matches("pkg.Service.Get"))
	assert.False(t, prefix.Matches("pkg.Other.Get"))

	// non-wildcard patterns are prefix tests too
	exact := Selector{Pattern: "com.example"}
	assert.True(t, exact.Matches("com.example"))
	assert.True(t, exact.Matches("com.example.Anything"))
	assert.False(t, exact.Matches("com.other"))
}

func TestMethodIdentifier(t *testing.T) {
	assert.Equal(t, "pkg.Service.Method", MethodIdentifier("/pkg.Service/Method"))
	assert.Equal(t, "grpc.health.v1.Health.Check", MethodIdentifier("/grpc.health.v1.Health/Check"))
	assert.Equal(t, "pkg.Service", ServiceName("/pkg.Service/Method"))
	assert.Equal(t, "grpc.health.v1.Health", ServiceName("/grpc.health.v1.Health/Check"))
}
