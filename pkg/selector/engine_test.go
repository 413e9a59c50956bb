//
//  Copyright © Manetu Inc. All rights reserved.
//

package selector

import (
	"fmt"
	"sync"
	"testing"

	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, selectors ...Selector) *Engine {
	e, err := NewEngine(selectors)
	require.NoError(t, err)
	return e
}

func TestResolveLongestWins(t *testing.T) {
	e := newTestEngine(t,
		Selector{Pattern: "*", Directive: Audit, LogType: "DEFAULT"},
		Selector{Pattern: "example.library.*", Directive: AuditRequestOnly, LogType: "LIBRARY"},
		Selector{Pattern: "example.library.Books.Create*", Directive: AuditRequestAndResponse, LogType: "ADMIN"},
	)

	tests := []struct {
		method  string
		logType string
	}{
		{"example.library.Books.CreateBook", "ADMIN"},
		{"example.library.Books.GetBook", "LIBRARY"},
		{"example.shop.Cart.Add", "DEFAULT"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			s, ok := e.Resolve(tt.method)
			require.True(t, ok)
			assert.Equal(t, tt.logType, s.LogType)
		})
	}
}

func TestResolveTieGoesToFirstDeclared(t *testing.T) {
	e := newTestEngine(t,
		Selector{Pattern: "pkg.A*", LogType: "first"},
		Selector{Pattern: "pkg.A*", LogType: "second"},
	)

	s, ok := e.Resolve("pkg.Alpha")
	require.True(t, ok)
	assert.Equal(t, "first", s.LogType)
}

func TestResolveExactShortCircuit(t *testing.T) {
	e := newTestEngine(t,
		Selector{Pattern: "pkg.Service.Get", LogType: "exact"},
		Selector{Pattern: "pkg.Service.Get", LogType: "duplicate"},
	)

	s, ok := e.Resolve("pkg.Service.Get")
	require.True(t, ok)
	assert.Equal(t, "exact", s.LogType)

	// permissive prefix semantics for non-wildcard patterns
	s, ok = e.Resolve("pkg.Service.GetAll")
	require.True(t, ok)
	assert.Equal(t, "exact", s.LogType)
}

func TestResolveMiss(t *testing.T) {
	e := newTestEngine(t, Selector{Pattern: "pkg.Service.*"})

	s, ok := e.Resolve("other.Service.Get")
	assert.False(t, ok)
	assert.Nil(t, s)
}

func TestResolveWildcardAlwaysMatches(t *testing.T) {
	e := newTestEngine(t, Selector{Pattern: "*", LogType: "all"})

	for _, m := range []string{"a", "pkg.Service.Method", "grpc.health.v1.Health.Check"} {
		s, ok := e.Resolve(m)
		require.True(t, ok, m)
		assert.Equal(t, "all", s.LogType)
	}
}

func TestResolveMemoized(t *testing.T) {
	e := newTestEngine(t, Selector{Pattern: "pkg.*"})

	_, _ = e.Resolve("pkg.Service.Get")
	_, _ = e.Resolve("pkg.Service.Get")
	assert.Equal(t, uint64(1), e.Evaluations())

	// misses are memoized too
	_, _ = e.Resolve("nope")
	_, _ = e.Resolve("nope")
	assert.Equal(t, uint64(2), e.Evaluations())
}

func TestResolveConcurrent(t *testing.T) {
	e := newTestEngine(t,
		Selector{Pattern: "*", LogType: "default"},
		Selector{Pattern: "pkg.Service.*", LogType: "service"},
	)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			s, ok := e.Resolve(fmt.Sprintf("pkg.Service.M%d", k%5))
			assert.True(t, ok)
			assert.Equal(t, "service", s.LogType)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, e.Evaluations(), uint64(50))
	assert.GreaterOrEqual(t, e.Evaluations(), uint64(5))
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(nil)
	assert.True(t, common.IsConfig(err))

	_, err = NewEngine([]Selector{{Pattern: "a*b"}})
	assert.True(t, common.IsConfig(err))
}

func TestSelectorsCopy(t *testing.T) {
	in := []Selector{{Pattern: "*", LogType: "a"}}
	e := newTestEngine(t, in...)
	in[0].LogType = "mutated"

	out := e.Selectors()
	assert.Equal(t, "a", out[0].LogType)
	out[0].LogType = "mutated"
	assert.Equal(t, "a", e.Selectors()[0].LogType)
}
