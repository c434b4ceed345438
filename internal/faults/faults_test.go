package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "ok", status: 200, want: nil},
		{name: "created", status: 201, want: nil},
		{name: "rate limited", status: 429, want: ErrRateLimited},
		{name: "unauthorized", status: 401, want: ErrAuthExpired},
		{name: "forbidden", status: 403, want: ErrAuthExpired},
		{name: "server error", status: 500, want: ErrTransient},
		{name: "bad gateway", status: 502, want: ErrTransient},
		{name: "plain bad request", status: 400, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyStatus(tt.status)
			if !errors.Is(got, tt.want) && !(got == nil && tt.want == nil) {
				t.Fatalf("ClassifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestWrappedErrorsKeepClass(t *testing.T) {
	err := Transientf("posting tweet %d", 2)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient class, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatal("transient error should be retryable")
	}

	rl := RateLimitedf("model %s exhausted", "gemini-2.0-flash")
	if !errors.Is(rl, ErrRateLimited) {
		t.Fatalf("expected rate-limited class, got %v", rl)
	}
	if IsRetryable(rl) {
		t.Fatal("rate limits must never be auto-retried")
	}
}

func TestDenied(t *testing.T) {
	err := Denied("limit_reached")
	if !IsDenied(err) {
		t.Fatal("expected denial to be recognized")
	}
	var de *DeniedError
	if !errors.As(err, &de) || de.Reason != "limit_reached" {
		t.Fatalf("expected reason limit_reached, got %+v", de)
	}
	if IsDenied(errors.New("limit_reached")) {
		t.Fatal("plain errors are not denials")
	}
}

func TestIsAuthRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "sentinel", err: fmt.Errorf("publish: %w", ErrAuthExpired), want: true},
		{name: "status text", err: errors.New("twitter: 401 Unauthorized"), want: true},
		{name: "invalid token", err: errors.New("invalid or expired token"), want: true},
		{name: "unrelated", err: errors.New("connection reset"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthRejection(tt.err); got != tt.want {
				t.Fatalf("IsAuthRejection(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
