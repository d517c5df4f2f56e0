package replication

import (
	"context"
	"errors"
)

// errSessionExpired marks a call rejected because the service session is
// absent or no longer valid.
var errSessionExpired = errors.New("replication session expired")

// ReauthPolicy wraps session-scoped calls. When a call fails because the
// session expired, the policy re-establishes the session and retries the call
// exactly once; every other failure passes through untouched.
type ReauthPolicy struct {
	login func(ctx context.Context) error
}

// NewReauthPolicy creates a policy around the given login function.
func NewReauthPolicy(login func(ctx context.Context) error) *ReauthPolicy {
	return &ReauthPolicy{login: login}
}

// Do runs call, re-authenticating and retrying once on session expiry.
func (p *ReauthPolicy) Do(ctx context.Context, call func() error) error {
	err := call()
	if !errors.Is(err, errSessionExpired) {
		return err
	}
	if err := p.login(ctx); err != nil {
		return err
	}
	return call()
}
