//
//  Copyright © Manetu Inc. All rights reserved.
//

package processor

import (
	"context"

	"github.com/manetu/auditinterceptor/pkg/record"
)

// Labels adds a fixed set of labels to every record.  A label the record
// already carries is left untouched, so handler supplied values win.
type Labels struct {
	labels map[string]string
}

// NewLabels returns a Labels mutator over a copy of labels
func NewLabels(labels map[string]string) *Labels {
	l := &Labels{labels: make(map[string]string, len(labels))}
	for k, v := range labels {
		l.labels[k] = v
	}
	return l
}

// Name implements pipeline.Named
func (l *Labels) Name() string { return "labels" }

// Process implements pipeline.Stage
func (l *Labels) Process(_ context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	if rec.Labels == nil {
		rec.Labels = make(map[string]string, len(l.labels))
	}
	for k, v := range l.labels {
		if _, ok := rec.Labels[k]; !ok {
			rec.Labels[k] = v
		}
	}
	return rec, nil
}
