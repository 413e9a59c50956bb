//
//  Copyright © Manetu Inc. All rights reserved.
//

package record

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/manetu/auditinterceptor/pkg/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	r := New("pkg.Service.Get", "pkg.Service", start)
	assert.Equal(t, UnspecifiedResource, r.ResourceName)
	assert.Equal(t, "pkg.Service.Get", r.Operation.Producer)
	assert.NotEmpty(t, r.Operation.ID)
	assert.NotNil(t, r.Labels)
	assert.NotNil(t, r.Metadata)
	assert.Nil(t, r.Status)

	assert.NotEqual(t, r.Operation.ID, New("pkg.Service.Get", "pkg.Service", start).Operation.ID)
}

func TestCloneIsDeep(t *testing.T) {
	r := New("m", "s", start)
	r.Labels["env"] = "prod"
	r.Metadata[JustificationKey] = map[string]interface{}{"reason": "ticket"}
	r.SetStatus(codes.NotFound, "missing")

	c := r.Clone()
	c.Labels["env"] = "dev"
	c.Metadata[JustificationKey].(map[string]interface{})["reason"] = "changed"
	c.Status.Message = "changed"

	assert.Equal(t, "prod", r.Labels["env"])
	assert.Equal(t, "ticket", r.Metadata[JustificationKey].(map[string]interface{})["reason"])
	assert.Equal(t, "missing", r.Status.Message)
}

func TestFinalizeDirectives(t *testing.T) {
	skeleton := New("m", "s", start)
	req := wrapperspb.String("request")
	resp := wrapperspb.Int64(42)

	tests := []struct {
		directive selector.Directive
		hasReq    bool
		hasResp   bool
	}{
		{selector.Audit, false, false},
		{selector.AuditRequestOnly, true, false},
		{selector.AuditRequestAndResponse, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.directive.String(), func(t *testing.T) {
			r, err := Finalize(skeleton, tt.directive, TriggerResponse, req, resp)
			require.NoError(t, err)
			assert.Equal(t, tt.hasReq, r.Request != nil)
			assert.Equal(t, tt.hasResp, r.Response != nil)
			assert.Equal(t, tt.directive.String(), r.Directive)
			assert.Equal(t, TriggerResponse, r.Trigger)
		})
	}

	assert.Nil(t, skeleton.Request)
	assert.Empty(t, skeleton.Directive)
}

func TestFinalizeAbsentMessages(t *testing.T) {
	r, err := Finalize(New("m", "s", start), selector.AuditRequestAndResponse, TriggerRequest, wrapperspb.String("r1"), nil)
	require.NoError(t, err)
	assert.Equal(t, "r1", r.Request.GetStringValue())
	assert.Nil(t, r.Response)
}

func TestToValue(t *testing.T) {
	v, err := ToValue(wrapperspb.String("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", v.GetStringValue())

	s, err := structpb.NewStruct(map[string]interface{}{"title": "Dune", "pages": 412})
	require.NoError(t, err)
	v, err = ToValue(s)
	require.NoError(t, err)
	assert.Equal(t, "Dune", v.GetStructValue().Fields["title"].GetStringValue())

	v, err = ToValue(map[string]interface{}{"plain": true})
	require.NoError(t, err)
	assert.True(t, v.GetStructValue().Fields["plain"].GetBoolValue())

	v, err = ToValue(nil)
	assert.NoError(t, err)
	assert.Nil(t, v)

	_, err = ToValue(make(chan int))
	assert.Error(t, err)
}

func TestAsMapAndJSON(t *testing.T) {
	r, err := Finalize(New("pkg.Service.Get", "pkg.Service", start), selector.AuditRequestOnly, TriggerClose, wrapperspb.String("id-1"), nil)
	require.NoError(t, err)
	r.Principal = "alice"
	r.Labels["env"] = "prod"
	r.Justification = "secret-token"
	r.SetStatus(codes.PermissionDenied, "nope")

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "pkg.Service.Get", m["methodName"])
	assert.Equal(t, "alice", m["principal"])
	assert.Equal(t, "id-1", m["request"])
	assert.Equal(t, "close", m["trigger"])
	assert.Equal(t, "AUDIT_REQUEST_ONLY", m["directive"])
	assert.Equal(t, "2026-03-01T12:00:00Z", m["timestamp"])
	assert.Equal(t, map[string]interface{}{"code": "PermissionDenied", "message": "nope"}, m["status"])
	assert.Equal(t, map[string]interface{}{"env": "prod"}, m["labels"])
	assert.NotContains(t, string(data), "secret-token")
	assert.NotContains(t, m, "response")
	assert.NotContains(t, m, "metadata")
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(New("m", "s", start))
	ctx := NewContext(context.Background(), b)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got.SetResourceName("books/1")
			got.AddLabel("env", "staging")
			got.SetMetadata("tenant", "acme")
			_ = got.Snapshot()
		}()
	}
	wg.Wait()

	snap := b.Snapshot()
	assert.Equal(t, "books/1", snap.ResourceName)
	assert.Equal(t, "staging", snap.Labels["env"])
	assert.Equal(t, "acme", snap.Metadata["tenant"])

	// snapshots are detached from the builder
	snap.Labels["env"] = "other"
	assert.Equal(t, "staging", b.Snapshot().Labels["env"])
}
