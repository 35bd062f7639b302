// Package auth acquires and caches the bearer credential used for all Graph
// API calls. Two mutually exclusive flows are supported: the interactive
// device-code flow and the confidential-client (app-only) flow.
package auth

import (
	"errors"
	"fmt"

	"onedrive-console/internal/config"
)

// ErrNotAuthenticated is returned when a token is requested in device flow
// before the user has completed the device-code login.
var ErrNotAuthenticated = errors.New("auth: not authenticated")

// AuthError reports a failed or denied credential exchange.
type AuthError struct {
	Flow config.Flow
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s flow: %v", e.Flow, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// State is the credential lifecycle state. Transitions only move forward
// within a process run — Uninitialized → Acquiring → (AwaitingVerification)
// → Cached — except on failure or explicit Reset, which return to
// Uninitialized.
type State int

const (
	StateUninitialized State = iota
	StateAcquiring
	StateAwaitingVerification
	StateCached
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAcquiring:
		return "acquiring"
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateCached:
		return "cached"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DevicePrompt holds the device-code fields shown to the user so they can
// authorize the console out-of-band.
type DevicePrompt struct {
	UserCode        string
	VerificationURI string
}

// Status is a snapshot of the provider's state for display and polling.
// Prompt is non-nil only in StateAwaitingVerification. Err holds the last
// acquisition failure, if any.
type Status struct {
	State  State
	Prompt *DevicePrompt
	Err    error
}
