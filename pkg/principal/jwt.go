//
//  Copyright © Manetu Inc. All rights reserved.
//

package principal

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/manetu/auditinterceptor/pkg/token"
	"google.golang.org/grpc/metadata"
)

// AuthorizationKey is the metadata key bearer tokens are presented under
const AuthorizationKey = "authorization"

// JWTSpecification identifies callers presenting "authorization: Bearer <jwt>".
// The identity is taken from the first claim in Claims holding a non-empty
// string.  With a nil verifier the signature is not checked, which suits
// deployments where an upstream proxy authenticates the caller.
type JWTSpecification struct {
	Claims   []string
	verifier *token.Verifier
}

// NewJWTSpecification returns a specification consulting claims in order
func NewJWTSpecification(verifier *token.Verifier, claims ...string) *JWTSpecification {
	return &JWTSpecification{Claims: claims, verifier: verifier}
}

// Name implements Specification
func (s *JWTSpecification) Name() string { return "jwt" }

func bearer(md metadata.MD) (string, bool) {
	for _, v := range md.Get(AuthorizationKey) {
		if tok, ok := token.Bearer(v); ok {
			return tok, true
		}
	}
	return "", false
}

// IsApplicable implements Specification
func (s *JWTSpecification) IsApplicable(md metadata.MD) bool {
	_, ok := bearer(md)
	return ok
}

// Principal implements Specification
func (s *JWTSpecification) Principal(md metadata.MD) (string, error) {
	raw, _ := bearer(md)

	var (
		claims jwt.MapClaims
		err    error
	)
	if s.verifier != nil {
		claims, err = s.verifier.Verify(raw)
	} else {
		claims, err = token.ParseUnverified(raw)
	}
	if err != nil {
		return "", common.NewAuthorizationError("malformed bearer token", err)
	}

	for _, name := range s.Claims {
		if v, ok := claims[name].(string); ok && strings.TrimSpace(v) != "" {
			return v, nil
		}
	}
	return "", nil
}
