// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a token is absent or has expired.
var ErrNotFound = errors.New("token not found")

// DefaultTTL is how long a handshake token stays redeemable.
const DefaultTTL = 5 * time.Minute

// Store issues and redeems short-lived handshake tokens bound to a voter.
// Redeem does not consume the token; callers that want one-shot semantics
// call Revoke after a successful redeem.
type Store interface {
	Issue(ctx context.Context, voterID string) (string, error)
	Redeem(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

func newToken() string {
	return uuid.NewString()
}
