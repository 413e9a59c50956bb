//
//  Copyright © Manetu Inc. All rights reserved.
//
// OPA abstraction for compiling and evaluating record filter policies

package opa

import (
	"context"
	"fmt"
	"strings"

	"github.com/manetu/auditinterceptor/internal/logging"
	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/pkg/errors"
)

var logger = logging.GetLogger("auditinterceptor.opa")

const agent = "opa"

// Builtins is a set of builtin function names
type Builtins map[string]struct{}

// Compiler converts textual Rego modules to reusable ASTs
type Compiler struct {
	options *CompilerOptions
}

// Ast is a compiled set of Rego modules
type Ast struct {
	name     string
	compiler *ast.Compiler
	trace    bool
}

// Modules is a map of module name to module source code
type Modules map[string]string

// CompilerOptions contains configuration options for the compiler.
type CompilerOptions struct {
	regoVersion  ast.RegoVersion
	capabilities *ast.Capabilities
	trace        bool
}

// CompilerOptionFunc is a function that modifies CompilerOptions.
type CompilerOptionFunc func(*CompilerOptions)

// WithRegoVersion sets the rego version for the compiler.
func WithRegoVersion(regoVersion ast.RegoVersion) CompilerOptionFunc {
	return func(o *CompilerOptions) {
		o.regoVersion = regoVersion
	}
}

// WithUnsafeBuiltins removes the named builtin functions from the compiler's capabilities
func WithUnsafeBuiltins(unsafe Builtins) CompilerOptionFunc {
	return func(o *CompilerOptions) {
		// see: https://github.com/open-policy-agent/opa/security/advisories/GHSA-f524-rf33-2jjr
		var kept []*ast.Builtin
		for _, b := range o.capabilities.Builtins {
			if _, ok := unsafe[b.Name]; !ok {
				kept = append(kept, b)
			}
		}
		o.capabilities.Builtins = kept
	}
}

// WithDefaultTracing enables evaluation traces unless overridden by [WithTrace].
// Defaults to the trace level of the opa logger.
func WithDefaultTracing(trace bool) CompilerOptionFunc {
	return func(o *CompilerOptions) {
		o.trace = trace
	}
}

// NewCompiler creates a Compiler.  Modules use Rego v1 syntax unless
// [WithRegoVersion] says otherwise.
func NewCompiler(options ...CompilerOptionFunc) *Compiler {
	opts := &CompilerOptions{
		regoVersion:  ast.RegoV1,
		capabilities: ast.CapabilitiesForThisVersion(),
		trace:        logger.IsTraceEnabled(),
	}
	for _, o := range options {
		o(opts)
	}

	return &Compiler{options: opts}
}

// Compile compiles the provided modules and returns an Ast suitable for reusable evaluation.
func (c *Compiler) Compile(name string, modules Modules) (*Ast, error) {
	parsed := make(map[string]*ast.Module, len(modules))

	for f, module := range modules {
		pm, err := ast.ParseModuleWithOpts(f, module, ast.ParserOptions{RegoVersion: c.options.regoVersion})
		if err != nil {
			return nil, err
		}
		parsed[f] = pm
	}

	compiler := ast.NewCompiler().WithCapabilities(c.options.capabilities)
	compiler.Compile(parsed)
	if compiler.Failed() {
		return nil, compiler.Errors
	}

	return &Ast{
		name:     name,
		compiler: compiler,
		trace:    c.options.trace,
	}, nil
}

// EvalOptions contains configuration options for policy evaluation.
type EvalOptions struct {
	trace bool
}

// EvalOptionFunc is a function that modifies EvalOptions.
type EvalOptionFunc func(*EvalOptions)

// WithTrace configures whether to enable trace output during policy evaluation.
func WithTrace(trace bool) EvalOptionFunc {
	return func(o *EvalOptions) {
		o.trace = trace
	}
}

// Evaluate runs queryStr against input and returns the first result.  An
// undefined query is an error.
func (p *Ast) Evaluate(ctx context.Context, queryStr string, input interface{}, options ...EvalOptionFunc) (rego.Result, error) {
	opts := &EvalOptions{trace: p.trace}
	for _, o := range options {
		o(opts)
	}

	query := rego.New(
		rego.Query(queryStr),
		rego.Compiler(p.compiler),
		rego.Input(input),
		rego.Trace(opts.trace),
	)

	results, err := query.Eval(ctx)
	if err != nil {
		logger.Debugf(agent, "evaluate", "%s: query failed: %+v", p.name, err)
		return rego.Result{}, errors.Wrapf(err, "%s: evaluation failed", p.name)
	}
	if len(results) == 0 {
		return rego.Result{}, errors.Errorf("%s: no results for %s", p.name, queryStr)
	}

	if opts.trace {
		regoTrace := new(strings.Builder)
		rego.PrintTraceWithLocation(regoTrace, query)
		logger.Trace(agent, "evaluate", "rego trace:")
		_, _ = fmt.Fprintln(logger.Out(), regoTrace.String()) // force internal format
		logger.Trace(agent, "evaluate", "query results:")
		_ = common.PrettyPrint(logger.Out(), results)
	}

	return results[0], nil
}

// EvaluateBool runs a query expected to produce a boolean
func (p *Ast) EvaluateBool(ctx context.Context, queryStr string, input interface{}, options ...EvalOptionFunc) (bool, error) {
	result, err := p.Evaluate(ctx, queryStr, input, options...)
	if err != nil {
		return false, err
	}

	v, ok := result.Expressions[0].Value.(bool)
	if !ok {
		return false, errors.Errorf("%s: %s is not a boolean: %v", p.name, queryStr, result.Expressions[0].Value)
	}
	return v, nil
}
