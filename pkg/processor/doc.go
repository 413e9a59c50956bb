//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package processor provides the built-in validator and mutator stages of the
// audit pipeline.
//
// Validators reject structurally incomplete records:
//   - [RequiredFields]
//   - [Payload]
//
// Mutators enrich records:
//   - [Labels] merges configured labels without overriding handler supplied ones
//   - [Platform] attaches platform metadata under "originatingResource"
//   - [Justification] verifies the caller's justification token and attaches its claims
//
// [Filter] drops records a Rego policy does not allow.
package processor

import (
	"github.com/manetu/auditinterceptor/internal/logging"
)

var logger = logging.GetLogger("auditinterceptor.processor")

const agent = "processor"
