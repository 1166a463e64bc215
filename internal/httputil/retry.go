// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP and retry helpers shared by search
// providers and model clients.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/research-rag/pkg/types"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
)

// StatusError is a non-2xx HTTP response. 429 and 5xx responses are
// transient and retried by Retry.
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Service, e.StatusCode)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// CheckStatus returns a *StatusError for any non-200 response.
func CheckStatus(service string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	return &StatusError{Service: service, StatusCode: resp.StatusCode}
}

// IsTemporary reports whether err wraps a transient failure: a temporary
// *StatusError or any error implementing Temporary() bool.
func IsTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

// Policy parameterizes Retry.
type Policy struct {
	// MaxAttempts is the total number of calls including the first.
	MaxAttempts int

	// BaseDelay is the wait before the first retry; it doubles each attempt.
	BaseDelay time.Duration
}

// PolicyFrom converts configuration into a Policy, filling defaults
// (3 attempts, 2s base delay).
func PolicyFrom(cfg types.RetryConfig) Policy {
	p := Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	return p
}

// Retry calls fn until it succeeds, fails with a non-temporary error, or
// MaxAttempts calls have been made. Waits double from BaseDelay. The last
// error is returned; a cancelled context during a wait returns ctx.Err().
func Retry(ctx context.Context, p Policy, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil || !IsTemporary(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		if werr := sleep(ctx, p.BaseDelay<<attempt); werr != nil {
			return werr
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
