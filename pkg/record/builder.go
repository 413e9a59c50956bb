//
//  Copyright © Manetu Inc. All rights reserved.
//

package record

import (
	"context"
	"sync"
)

// Builder is the handle through which handler code annotates the in-flight
// record of its call.  It is safe for concurrent use.
type Builder struct {
	mu  sync.Mutex
	rec *AuditRecord
}

// NewBuilder wraps a skeleton record.  The builder takes ownership of it.
func NewBuilder(skeleton *AuditRecord) *Builder {
	return &Builder{rec: skeleton}
}

// SetResourceName names the resource the call operates on
func (b *Builder) SetResourceName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rec.ResourceName = name
}

// AddLabel sets a label.  Labels set here take precedence over configured ones.
func (b *Builder) AddLabel(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rec.Labels[key] = value
}

// SetMetadata sets a top level metadata entry
func (b *Builder) SetMetadata(key string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rec.Metadata[key] = value
}

// Snapshot returns a copy of the record as it currently stands
func (b *Builder) Snapshot() *AuditRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rec.Clone()
}

type builderKey struct{}

// NewContext returns a child context carrying b
func NewContext(ctx context.Context, b *Builder) context.Context {
	return context.WithValue(ctx, builderKey{}, b)
}

// FromContext returns the builder of the audited call ctx belongs to.  It
// reports false for calls that are not audited.
func FromContext(ctx context.Context) (*Builder, bool) {
	b, ok := ctx.Value(builderKey{}).(*Builder)
	return b, ok
}
