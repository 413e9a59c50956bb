//
//  Copyright © Manetu Inc. All rights reserved.
//

package backend

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/manetu/auditinterceptor/pkg/pipeline"
	"github.com/manetu/auditinterceptor/pkg/record"
	"github.com/pkg/errors"
)

// Options configures the behavior of writer output.
type Options struct {
	// PrettyPrint enables indented multi-line JSON output.
	// When false (default), output is compact single-line JSON.
	PrettyPrint bool
}

// IoWriter writes records as JSON to an [io.Writer], one record per line
// unless pretty printing is enabled.  It is safe for concurrent use; writes
// are atomic at the record level.
type IoWriter struct {
	mu      sync.Mutex
	writer  io.Writer
	options Options
}

// NewStdoutFactory creates a [Factory] that writes records to stdout.
//
// This is the default backend.  It suits development, and production
// environments where stdout is captured by a log aggregator.
func NewStdoutFactory(opts Options) Factory {
	return NewIoWriterFactory(os.Stdout, opts)
}

// NewIoWriterFactory creates a [Factory] that writes records to w
//
//	file, _ := os.Create("audit.log")
//	a, _ := auditor.New(options.WithBackend(backend.NewIoWriterFactory(file, backend.Options{})))
func NewIoWriterFactory(w io.Writer, opts Options) Factory {
	return FactoryFunc(func() (pipeline.Stage, error) {
		return NewIoWriter(w, opts), nil
	})
}

// NewIoWriter returns a writer backend
func NewIoWriter(w io.Writer, opts Options) *IoWriter {
	return &IoWriter{writer: w, options: opts}
}

// Name implements pipeline.Named
func (s *IoWriter) Name() string { return "iowriter" }

// Process implements pipeline.Stage.  Encoding and write failures are returned.
func (s *IoWriter) Process(_ context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	var (
		output []byte
		err    error
	)
	if s.options.PrettyPrint {
		output, err = json.MarshalIndent(rec.AsMap(), "", "  ")
	} else {
		output, err = json.Marshal(rec.AsMap())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode record")
	}
	output = append(output, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(output); err != nil {
		return nil, errors.Wrap(err, "failed to write record")
	}
	return rec, nil
}
