//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package common provides shared types and utilities used across the
// audit interceptor packages.
//
// # Error Handling
//
// The [AuditError] type classifies every failure raised by the audit
// subsystem into one of four kinds:
//
//   - [KindConfiguration]: missing or invalid selector/security configuration,
//     fatal at startup
//   - [KindAuthorization]: a credential was recognized but is malformed
//   - [KindPreconditionFailed]: a pipeline stage intentionally stopped
//     processing of a record; never surfaced to the RPC caller
//   - [KindProcessing]: any other pipeline stage failure
//
// Errors from the RPC itself are never wrapped in an [AuditError].
package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the machine-readable classification of an [AuditError].
type Kind int

// Error kinds, see the package documentation.
const (
	KindConfiguration Kind = iota + 1
	KindAuthorization
	KindPreconditionFailed
	KindProcessing
)

var kindNames = map[Kind]string{
	KindConfiguration:      "CONFIGURATION_ERROR",
	KindAuthorization:      "AUTHORIZATION_ERROR",
	KindPreconditionFailed: "PRECONDITION_FAILED",
	KindProcessing:         "PROCESSING_ERROR",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN_ERROR"
}

// AuditError represents a failure of the audit subsystem.
//
// Stage is set for pipeline failures and names the stage that raised the
// error.  The underlying cause, if any, is available via errors.Cause or
// errors.Unwrap.
type AuditError struct {
	// Kind is the machine-readable error classification.
	Kind Kind
	// Reason is a human-readable description of the error.
	Reason string
	// Stage names the pipeline stage that failed, when applicable.
	Stage string

	cause error
}

// Error implements the error interface, returning a formatted string
// containing the reason, the stage (if any), the kind and the cause.
func (e *AuditError) Error() string {
	msg := e.Reason
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	msg = fmt.Sprintf("%s(code-%s)", msg, e.Kind)
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *AuditError) Unwrap() error { return e.cause }

// Cause returns the underlying cause, for github.com/pkg/errors compatibility
func (e *AuditError) Cause() error { return e.cause }

// NewConfigError creates a configuration error.
func NewConfigError(format string, args ...interface{}) *AuditError {
	return &AuditError{Kind: KindConfiguration, Reason: fmt.Sprintf(format, args...)}
}

// NewAuthorizationError creates an authorization error for a credential that
// was recognized but could not be understood.
func NewAuthorizationError(reason string, cause error) *AuditError {
	return &AuditError{Kind: KindAuthorization, Reason: reason, cause: cause}
}

// PreconditionFailed creates the control-flow signal a pipeline stage raises
// to stop processing of the current record without a fault.
func PreconditionFailed(reason string) *AuditError {
	return &AuditError{Kind: KindPreconditionFailed, Reason: reason}
}

// NewProcessingError wraps a pipeline stage failure.
func NewProcessingError(stage string, cause error) *AuditError {
	return &AuditError{Kind: KindProcessing, Reason: "stage failed", Stage: stage, cause: cause}
}

// KindOf returns the kind of the first [AuditError] in err's chain, or 0.
func KindOf(err error) Kind {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// IsConfig reports whether err is a configuration error
func IsConfig(err error) bool { return KindOf(err) == KindConfiguration }

// IsAuthorization reports whether err is an authorization error
func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }

// IsPreconditionFailed reports whether err is the precondition-failed signal
func IsPreconditionFailed(err error) bool { return KindOf(err) == KindPreconditionFailed }

// IsProcessing reports whether err is a processing error
func IsProcessing(err error) bool { return KindOf(err) == KindProcessing }
