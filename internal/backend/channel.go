//
//  Copyright © Manetu Inc. All rights reserved.
//

package backend

import (
	"context"

	"github.com/manetu/auditinterceptor/pkg/backend"
	"github.com/manetu/auditinterceptor/pkg/pipeline"
	"github.com/manetu/auditinterceptor/pkg/record"
)

// Channel implements a backend by writing a copy of each record to a channel.
type Channel struct {
	ch chan *record.AuditRecord
}

// NewChannelFactory creates a backend factory for delivering records to ch.
func NewChannelFactory(ch chan *record.AuditRecord) backend.Factory {
	return backend.FactoryFunc(func() (pipeline.Stage, error) {
		return &Channel{ch: ch}, nil
	})
}

// Name implements pipeline.Named
func (s *Channel) Name() string { return "channel" }

// Process emulates delivery to a remote collector by sending the record to
// the channel.  It blocks until the record is accepted or ctx is done.
func (s *Channel) Process(ctx context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	select {
	case s.ch <- rec.Clone():
		return rec, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close finalizes the backend by closing the underlying channel.
func (s *Channel) Close() {
	if s.ch != nil {
		close(s.ch)
	}
}
