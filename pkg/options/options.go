//
//  Copyright © Manetu Inc. All rights reserved.
//
// shared between pkg/auditor and internal/test, and thus must be in a separate package to avoid circular dependencies

// Package options defines the functional options accepted by auditor.New.
//
// Anything not set through an option is taken from configuration; see the
// config package for the corresponding keys.
package options

import (
	"time"

	"github.com/manetu/auditinterceptor/pkg/backend"
	"github.com/manetu/auditinterceptor/pkg/interceptor"
	"github.com/manetu/auditinterceptor/pkg/pipeline"
	"github.com/manetu/auditinterceptor/pkg/principal"
	"github.com/manetu/auditinterceptor/pkg/selector"
	"github.com/prometheus/client_golang/prometheus"
)

// Fail modes, see [interceptor.FailMode]
const (
	FailClosed = interceptor.FailClosed
	FailOpen   = interceptor.FailOpen
)

// AuditorOptions is the assembled configuration of an auditor
type AuditorOptions struct {
	Selectors        []selector.Selector
	Specifications   []principal.Specification
	BackendFactories []backend.Factory
	Validators       []pipeline.Stage
	Mutators         []pipeline.Stage
	FailMode         *interceptor.FailMode
	Registerer       prometheus.Registerer
	Clock            func() time.Time
}

// AuditorOptionsFunc is a function that modifies AuditorOptions.
type AuditorOptionsFunc func(*AuditorOptions)

// WithSelectors replaces the configured selectors
func WithSelectors(selectors ...selector.Selector) AuditorOptionsFunc {
	return func(o *AuditorOptions) {
		o.Selectors = selectors
	}
}

// WithPrincipalSpecifications replaces the configured principal
// specifications.  They are consulted in the order given.
func WithPrincipalSpecifications(specs ...principal.Specification) AuditorOptionsFunc {
	return func(o *AuditorOptions) {
		o.Specifications = specs
	}
}

// WithBackend replaces the configured backend.  Records are delivered to
// every factory's backend, in order.
func WithBackend(factories ...backend.Factory) AuditorOptionsFunc {
	return func(o *AuditorOptions) {
		o.BackendFactories = factories
	}
}

// WithValidators adds validators after the built-in ones
func WithValidators(stages ...pipeline.Stage) AuditorOptionsFunc {
	return func(o *AuditorOptions) {
		o.Validators = append(o.Validators, stages...)
	}
}

// WithMutators adds mutators after the built-in ones
func WithMutators(stages ...pipeline.Stage) AuditorOptionsFunc {
	return func(o *AuditorOptions) {
		o.Mutators = append(o.Mutators, stages...)
	}
}

// WithFailMode overrides the configured fail mode
func WithFailMode(m interceptor.FailMode) AuditorOptionsFunc {
	return func(o *AuditorOptions) {
		o.FailMode = &m
	}
}

// WithMetrics registers the interceptor metrics with reg
func WithMetrics(reg prometheus.Registerer) AuditorOptionsFunc {
	return func(o *AuditorOptions) {
		o.Registerer = reg
	}
}

// WithClock overrides the source of record timestamps, mostly for tests
func WithClock(now func() time.Time) AuditorOptionsFunc {
	return func(o *AuditorOptions) {
		o.Clock = now
	}
}
