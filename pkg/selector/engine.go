//
//  Copyright © Manetu Inc. All rights reserved.
//

package selector

import (
	"sync"
	"sync/atomic"

	"github.com/manetu/auditinterceptor/pkg/common"
)

type resolution struct {
	selector *Selector
}

// Engine resolves method identifiers against an ordered, immutable rule set.
// Results, including misses, are memoized per identifier and the Engine is
// safe for concurrent use.
type Engine struct {
	selectors   []Selector
	memo        sync.Map
	evaluations atomic.Uint64
}

// NewEngine validates the rules and returns an Engine over a private copy of
// them.  At least one rule is required.
func NewEngine(selectors []Selector) (*Engine, error) {
	if len(selectors) == 0 {
		return nil, common.NewConfigError("no selectors configured")
	}
	for _, s := range selectors {
		if err := s.validate(); err != nil {
			return nil, err
		}
	}

	return &Engine{selectors: append([]Selector(nil), selectors...)}, nil
}

// Selectors returns a copy of the configured rules in declared order
func (e *Engine) Selectors() []Selector {
	return append([]Selector(nil), e.selectors...)
}

// Resolve returns the most specific selector for the method, or false when
// no rule applies.  The longest matching pattern wins and ties go to the
// first declared rule.
func (e *Engine) Resolve(method string) (*Selector, bool) {
	if v, ok := e.memo.Load(method); ok {
		r := v.(resolution)
		return r.selector, r.selector != nil
	}

	r := resolution{selector: e.evaluate(method)}
	// concurrent evaluations of the same method compute the same result
	e.memo.Store(method, r)

	return r.selector, r.selector != nil
}

// Evaluations returns how many times the rule set has been scanned
func (e *Engine) Evaluations() uint64 {
	return e.evaluations.Load()
}

func (e *Engine) evaluate(method string) *Selector {
	e.evaluations.Add(1)

	var best *Selector
	for i := range e.selectors {
		s := &e.selectors[i]
		if !s.Matches(method) {
			continue
		}
		if len(s.Pattern) == len(method) {
			return s
		}
		if best == nil || len(s.Pattern) > len(best.Pattern) {
			best = s
		}
	}

	return best
}
