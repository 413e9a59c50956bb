//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package selector resolves a gRPC method to the logging rule that governs it.
//
// A [Selector] pairs a method pattern with a [Directive] and a log type.
// Patterns take one of three forms:
//
//   - "*" matches every method
//   - "pkg.Service.*" matches every method beginning with "pkg.Service."
//   - "pkg.Service.Method" matches any method beginning with the pattern
//
// The third form is a prefix test rather than equality, so "pkg.Service.Get"
// also governs "pkg.Service.GetAll" unless a longer pattern claims it.
package selector

import (
	"strings"

	"github.com/manetu/auditinterceptor/pkg/common"
)

// Wildcard is the pattern that matches every method
const Wildcard = "*"

// Directive controls which message bodies are attached to a record.
type Directive int

const (
	// Audit logs the call without request or response bodies
	Audit Directive = iota
	// AuditRequestOnly attaches the request body only
	AuditRequestOnly
	// AuditRequestAndResponse attaches both bodies
	AuditRequestAndResponse
)

var directiveNames = []string{
	Audit:                   "AUDIT",
	AuditRequestOnly:        "AUDIT_REQUEST_ONLY",
	AuditRequestAndResponse: "AUDIT_REQUEST_AND_RESPONSE",
}

func (d Directive) String() string {
	if d < 0 || int(d) >= len(directiveNames) {
		return "UNKNOWN"
	}
	return directiveNames[d]
}

// IncludesRequest reports whether request bodies are logged
func (d Directive) IncludesRequest() bool {
	return d == AuditRequestOnly || d == AuditRequestAndResponse
}

// IncludesResponse reports whether response bodies are logged
func (d Directive) IncludesResponse() bool {
	return d == AuditRequestAndResponse
}

// ParseDirective converts a configured directive name.  Matching is
// case-insensitive.
func ParseDirective(name string) (Directive, error) {
	for i, n := range directiveNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Directive(i), nil
		}
	}
	return Audit, common.NewConfigError("unknown directive %q", name)
}

// Selector is an immutable logging rule
type Selector struct {
	Pattern   string
	Directive Directive
	LogType   string
}

// New validates and returns a Selector
func New(pattern string, directive Directive, logType string) (Selector, error) {
	s := Selector{Pattern: pattern, Directive: directive, LogType: logType}
	return s, s.validate()
}

func (s Selector) validate() error {
	if s.Pattern == "" {
		return common.NewConfigError("selector pattern must not be empty")
	}
	if i := strings.Index(s.Pattern, Wildcard); i >= 0 && i != len(s.Pattern)-1 {
		return common.NewConfigError("selector pattern %q: wildcard is only permitted as the final character", s.Pattern)
	}
	if s.Directive.String() == "UNKNOWN" {
		return common.NewConfigError("selector pattern %q: unknown directive %d", s.Pattern, s.Directive)
	}
	return nil
}

// Matches reports whether the selector applies to the dotted method identifier.
// Patterns without a trailing wildcard still match by prefix, so "a.B.Get"
// also matches "a.B.GetAll".
func (s Selector) Matches(method string) bool {
	if s.Pattern == Wildcard {
		return true
	}
	return strings.HasPrefix(method, strings.TrimSuffix(s.Pattern, Wildcard))
}

// MethodIdentifier converts a gRPC full method ("/pkg.Service/Method") to the
// dotted form selectors are written against ("pkg.Service.Method").
func MethodIdentifier(fullMethod string) string {
	return strings.ReplaceAll(strings.TrimPrefix(fullMethod, "/"), "/", ".")
}

// ServiceName returns the service portion of a gRPC full method
func ServiceName(fullMethod string) string {
	service, _, _ := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	return service
}
