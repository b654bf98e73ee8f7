package pvs

import (
	"errors"
	"fmt"
)

// AuthError means a session could not be established. Callers retry once at
// most, then abort the pass.
type AuthError struct {
	Status int
	Reason string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("pvs auth failed: %s (status %d)", e.Reason, e.Status)
	}
	return fmt.Sprintf("pvs auth failed: %s", e.Reason)
}

// FetchErrorKind separates the expected flavours of a failed fetch. Alerting
// treats unreachable as low severity; the device reboots nightly and drops
// off the LAN while doing so.
type FetchErrorKind string

func (k FetchErrorKind) String() string {
	return string(k)
}

const (
	FetchUnreachable   FetchErrorKind = "unreachable"
	FetchMalformedBody FetchErrorKind = "malformed_body"
	FetchDeviceFailure FetchErrorKind = "device_reported_failure"
)

// FetchError is a failed telemetry fetch with its classified kind.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pvs fetch %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("pvs fetch %s", e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrSessionExpired signals that the device rejected the session cookie.
// The caller re-logs-in once and retries the fetch.
var ErrSessionExpired = errors.New("pvs session expired")
