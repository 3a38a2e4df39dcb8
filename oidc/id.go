// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// idEntropy is the number of random bytes in an ID
const idEntropy = 24

// NewID generates a ID with an optional prefix.  The ID generated is suitable
// for a FlowState state or nonce.
func NewID(optionalPrefix string) (string, error) {
	const op = "oidc.NewID"
	b, err := uuid.GenerateRandomBytes(idEntropy)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, ErrIdGeneratorFailed)
	}
	id := base64.RawURLEncoding.EncodeToString(b)
	if optionalPrefix != "" {
		id = fmt.Sprintf("%s_%s", optionalPrefix, id)
	}
	return id, nil
}
