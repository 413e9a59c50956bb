//
//  Copyright © Manetu Inc. All rights reserved.
//

package processor

import (
	"context"

	"github.com/manetu/auditinterceptor/pkg/record"
	"github.com/manetu/auditinterceptor/pkg/token"
	"github.com/pkg/errors"
)

// Verifier validates a justification token and returns its claims
type Verifier interface {
	Verify(raw string) (map[string]interface{}, error)
}

type jwtVerifier struct {
	v *token.Verifier
}

func (j *jwtVerifier) Verify(raw string) (map[string]interface{}, error) {
	claims, err := j.v.Verify(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// NewJWTVerifier verifies justification tokens as signed JWTs
func NewJWTVerifier(v *token.Verifier) Verifier {
	return &jwtVerifier{v: v}
}

// Justification verifies the token the caller presented with the call and
// attaches its claims under [record.JustificationKey].
type Justification struct {
	verifier Verifier
	required bool
}

// NewJustification returns a Justification mutator.  When required is set, a
// record without a token fails processing.
func NewJustification(verifier Verifier, required bool) *Justification {
	return &Justification{verifier: verifier, required: required}
}

// Name implements pipeline.Named
func (j *Justification) Name() string { return "justification" }

// Process implements pipeline.Stage
func (j *Justification) Process(_ context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	if rec.Justification == "" {
		if j.required {
			return nil, errors.Errorf("justification required for %s", rec.MethodName)
		}
		return rec, nil
	}

	if j.verifier == nil {
		return nil, errors.New("justification presented but no verifier is configured")
	}

	claims, err := j.verifier.Verify(rec.Justification)
	if err != nil {
		logger.Debugf(agent, "justification", "operation %s: %v", rec.Operation.ID, err)
		return nil, errors.Wrap(err, "justification rejected")
	}

	if rec.Metadata == nil {
		rec.Metadata = map[string]interface{}{}
	}
	rec.Metadata[record.JustificationKey] = claims
	return rec, nil
}
