//
//  Copyright © Manetu Inc. All rights reserved.
//

package principal

import (
	"strings"

	"google.golang.org/grpc/metadata"
)

// HeaderSpecification trusts an identity header injected by an authenticating proxy
type HeaderSpecification struct {
	Key string
}

// NewHeaderSpecification returns a specification reading key
func NewHeaderSpecification(key string) *HeaderSpecification {
	return &HeaderSpecification{Key: strings.ToLower(key)}
}

// Name implements Specification
func (s *HeaderSpecification) Name() string { return "header:" + s.Key }

// IsApplicable implements Specification
func (s *HeaderSpecification) IsApplicable(md metadata.MD) bool {
	return len(md.Get(s.Key)) > 0
}

// Principal implements Specification
func (s *HeaderSpecification) Principal(md metadata.MD) (string, error) {
	for _, v := range md.Get(s.Key) {
		if v = strings.TrimSpace(v); v != "" {
			return v, nil
		}
	}
	return "", nil
}
