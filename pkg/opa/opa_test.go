//
//  Copyright © Manetu Inc. All rights reserved.
//

package opa

import (
	"bytes"
	"context"
	"testing"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filterModule = `
package audit.filter

default allow := true

allow = false if input.principal == "healthchecker"
`

func TestCompileSuccess(t *testing.T) {
	a, err := NewCompiler().Compile("filter", Modules{"filter.rego": filterModule})
	require.NoError(t, err)
	assert.Equal(t, "filter", a.name)
	assert.NotNil(t, a.compiler)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		module string
	}{
		{"syntax", "package audit.filter\nallow if { this is invalid syntax }\n"},
		{"undefined function", "package audit.filter\nallow if { data.undefined_function() }\n"},
		{"v0 syntax", "package audit.filter\nallow = true { input.user == \"admin\" }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewCompiler().Compile("filter", Modules{"filter.rego": tt.module})
			assert.Error(t, err)
			assert.Nil(t, a)
		})
	}
}

func TestRegoV0(t *testing.T) {
	c := NewCompiler(WithRegoVersion(ast.RegoV0))
	assert.Equal(t, ast.RegoV0, c.options.regoVersion)

	_, err := c.Compile("filter", Modules{"filter.rego": "package audit.filter\nallow = true { input.user == \"admin\" }\n"})
	assert.NoError(t, err)
}

func TestUnsafeBuiltins(t *testing.T) {
	module := Modules{"filter.rego": `
package audit.filter
allow if {
	response := http.send({"method": "get", "url": "http://example.com"})
	response.status_code == 200
}
`}

	_, err := NewCompiler(WithUnsafeBuiltins(Builtins{"http.send": {}})).Compile("filter", module)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined function http.send")

	// removal does not leak into other compilers
	_, err = NewCompiler().Compile("filter", module)
	assert.NoError(t, err)
}

func TestBuiltinsTypeCheckWithRestrictedCapabilities(t *testing.T) {
	module := Modules{"filter.rego": `
package audit.filter

default allow := true

allow := false if {
	input.principal == "healthchecker"
	startswith(input.method, "grpc.health.")
	count(input.labels) > 0
}
`}

	a, err := NewCompiler(WithUnsafeBuiltins(Builtins{"http.send": {}})).Compile("filter", module)
	require.NoError(t, err)

	allowed, err := a.EvaluateBool(context.Background(), "data.audit.filter.allow", map[string]interface{}{
		"principal": "healthchecker",
		"method":    "grpc.health.v1.Health.Check",
		"labels":    map[string]interface{}{"env": "test"},
	})
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEvaluateBool(t *testing.T) {
	a, err := NewCompiler().Compile("filter", Modules{"filter.rego": filterModule})
	require.NoError(t, err)

	allowed, err := a.EvaluateBool(context.Background(), "data.audit.filter.allow", map[string]interface{}{"principal": "alice"})
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = a.EvaluateBool(context.Background(), "data.audit.filter.allow", map[string]interface{}{"principal": "healthchecker"})
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEvaluateErrors(t *testing.T) {
	a, err := NewCompiler().Compile("filter", Modules{"filter.rego": `
package audit.filter
level := input.level
`})
	require.NoError(t, err)

	_, err = a.Evaluate(context.Background(), "data.audit.filter.allow", map[string]interface{}{})
	assert.ErrorContains(t, err, "no results")

	_, err = a.EvaluateBool(context.Background(), "data.audit.filter.level", map[string]interface{}{"level": "high"})
	assert.ErrorContains(t, err, "not a boolean")
}

func TestTracing(t *testing.T) {
	a, err := NewCompiler().Compile("filter", Modules{"filter.rego": filterModule})
	require.NoError(t, err)

	var buffer bytes.Buffer
	orig := logger.Out()
	logger.SetOut(&buffer)
	defer logger.SetOut(orig)

	_, err = a.Evaluate(context.Background(), "data.audit.filter.allow", map[string]interface{}{}, WithTrace(true))
	require.NoError(t, err)
	assert.Contains(t, buffer.String(), "Enter data.audit.filter.allow")
}
