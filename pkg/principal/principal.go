//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package principal resolves the authenticated caller of an RPC from its
// metadata.
//
// A [Resolver] consults an ordered list of [Specification] implementations.
// Each specification first decides whether it applies to the metadata at
// hand and then extracts the identity:
//
//	r := principal.NewResolver(
//	    principal.NewHeaderSpecification("x-forwarded-user"),
//	    principal.NewJWTSpecification(nil, "email", "sub"),
//	)
//	who, err := r.Resolve(md)
package principal

import (
	"github.com/manetu/auditinterceptor/internal/logging"
	"google.golang.org/grpc/metadata"
)

var logger = logging.GetLogger("auditinterceptor.principal")

const agent = "principal"

// Specification recognizes one kind of credential in call metadata.
//
// Principal may return an empty string when the credential carries no
// identity.  It returns an authorization error when the credential is
// recognized but structurally invalid.
type Specification interface {
	Name() string
	IsApplicable(md metadata.MD) bool
	Principal(md metadata.MD) (string, error)
}

// Resolver tries specifications in declared order
type Resolver struct {
	specs []Specification
}

// NewResolver returns a Resolver over specs
func NewResolver(specs ...Specification) *Resolver {
	return &Resolver{specs: specs}
}

// Resolve returns the first non-empty principal produced by an applicable
// specification.  Applicable specifications that yield nothing are skipped.
// An empty result without error means no specification identified the caller.
func (r *Resolver) Resolve(md metadata.MD) (string, error) {
	for _, spec := range r.specs {
		if !spec.IsApplicable(md) {
			continue
		}

		p, err := spec.Principal(md)
		if err != nil {
			return "", err
		}
		if p != "" {
			logger.Tracef(agent, "resolve", "principal %s resolved by %s", p, spec.Name())
			return p, nil
		}

		logger.Debugf(agent, "resolve", "%s applied but yielded no principal", spec.Name())
	}

	return "", nil
}
