// Package faults defines the failure taxonomy shared by every outbound
// integration: billing lookup, text/image generation, and social publishing.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks network timeouts and 5xx responses. Safe to retry once.
	ErrTransient = errors.New("transient failure")

	// ErrRateLimited marks upstream 429/quota responses. Surfaced to the user,
	// never auto-retried.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthExpired marks a rejected downstream credential. The holder must
	// drop back to a disconnected state.
	ErrAuthExpired = errors.New("authorization expired")

	// ErrSessionExpired marks a missing or TTL'd OAuth side-channel entry.
	// The user has to restart the handshake.
	ErrSessionExpired = errors.New("authorization session expired")

	// ErrEmptyContent marks a publish attempt with nothing to post.
	ErrEmptyContent = errors.New("empty content")

	// ErrValidationFailed marks bad caller input. Not retried.
	ErrValidationFailed = errors.New("validation failed")
)

// DeniedError is a business-rule rejection, not an error condition in the
// taxonomy sense: the gate worked as designed.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "denied: " + e.Reason
}

// Denied builds a DeniedError with the given reason.
func Denied(reason string) error {
	return &DeniedError{Reason: reason}
}

// IsDenied reports whether err is a business-rule rejection.
func IsDenied(err error) bool {
	var de *DeniedError
	return errors.As(err, &de)
}

// Transientf wraps a formatted message as a retryable transient failure.
func Transientf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrTransient}, args...)...)
}

// RateLimitedf wraps a formatted message as a rate-limit rejection.
func RateLimitedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrRateLimited}, args...)...)
}

// ClassifyStatus maps an upstream HTTP status to the taxonomy.
// 2xx maps to nil; unclassified 4xx stays a plain error at the call site.
func ClassifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 429:
		return ErrRateLimited
	case status == 401 || status == 403:
		return ErrAuthExpired
	case status >= 500:
		return ErrTransient
	default:
		return nil
	}
}

// IsRetryable reports whether a single retry is permitted for err.
// Only transient failures qualify; rate limits are left to the human.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsAuthRejection detects credential-rejected responses from error text when
// no status code survived, e.g. wrapped client errors.
func IsAuthRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthExpired) {
		return true
	}
	msg := strings.ToLower(err.Error())
	markers := []string{"401", "unauthorized", "invalid or expired token", "could not authenticate"}
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
