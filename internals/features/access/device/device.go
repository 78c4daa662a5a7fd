// Package device talks to turnstile / door controllers. Calls are commands only:
// nothing is ever read back to decide access.
package device

import (
	"context"
	"errors"
)

// ErrNoDevice is returned by Nop.
var ErrNoDevice = errors.New("no access device configured")

type Device interface {
	// Enroll creates a controller user and returns its id.
	Enroll(ctx context.Context, label, externalCode string) (int64, error)
	GrantAccess(ctx context.Context, deviceUserID, groupID int64) error
	DenyAccess(ctx context.Context, deviceUserID int64) error
}

// Nop is used when no controller is configured.
type Nop struct{}

func (Nop) Enroll(context.Context, string, string) (int64, error) { return 0, ErrNoDevice }

func (Nop) GrantAccess(context.Context, int64, int64) error { return ErrNoDevice }

func (Nop) DenyAccess(context.Context, int64) error { return ErrNoDevice }
