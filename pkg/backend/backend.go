//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package backend provides delivery stages for the audit pipeline.
//
// A backend is an ordinary [pipeline.Stage] placed in the backend group.  It
// delivers the record it receives and passes it on, unchanged, to the next
// backend.
//
// # Built-in Implementations
//
//   - [NewStdoutFactory]: writes JSON records to stdout (the default)
//   - [NewIoWriterFactory]: writes JSON records to any io.Writer
//   - [NewLoggerFactory]: writes records into the structured log
//   - [NewNullFactory]: discards all records
//
// Any backend can be wrapped with [NewResilient] for retries, a circuit
// breaker and rate limiting.
//
// # Custom Implementations
//
// To deliver records elsewhere (e.g., a remote logging service):
//
//  1. Implement the [Factory] interface to create stage instances
//  2. Implement [pipeline.Stage], and [pipeline.Closer] if the stage holds resources
//  3. Use [options.WithBackend] when creating the auditor
//
// Example:
//
//	type CollectorFactory struct { endpoint string }
//
//	func (f *CollectorFactory) NewBackend() (pipeline.Stage, error) {
//	    conn, err := grpc.NewClient(f.endpoint, opts...)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &CollectorBackend{conn: conn}, nil
//	}
package backend

import (
	"github.com/manetu/auditinterceptor/pkg/pipeline"
)

// Factory creates backend stages.
//
// Early initialization (validating configuration) should happen during
// factory construction.  Late initialization (opening connections) should
// happen in NewBackend, which is called once the configuration is loaded.
type Factory interface {
	NewBackend() (pipeline.Stage, error)
}

// FactoryFunc adapts a function to the Factory interface
type FactoryFunc func() (pipeline.Stage, error)

// NewBackend calls f
func (f FactoryFunc) NewBackend() (pipeline.Stage, error) { return f() }
