package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		class     ErrorClass
		retryable bool
	}{
		{name: "transient", err: NewTransientError("network down", nil), class: ErrorClassTransient, retryable: true},
		{name: "throttled", err: NewThrottledError("slow down", nil), class: ErrorClassThrottled, retryable: true},
		{name: "conflict", err: NewConflictError("changed", nil), class: ErrorClassConflict, retryable: true},
		{name: "permanent", err: NewPermanentError("bad config", nil), class: ErrorClassPermanent},
		{name: "wrapped", err: fmt.Errorf("outer: %w", NewTransientError("inner", nil)), class: ErrorClassTransient, retryable: true},
		{name: "plain", err: errors.New("boom"), class: ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.class {
				t.Errorf("Classify() = %s, want %s", got, tt.class)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}

	if IsRetryable(nil) || IsPermanent(nil) {
		t.Error("nil error should not be classified")
	}
}

func TestEngineErrorMessage(t *testing.T) {
	err := NewPermanentError("provider failed", errors.New("disk full")).
		WithCode(ErrCodeProviderFailed).
		WithResource("file[/tmp/x]").
		WithAction("create")

	want := "[permanent] provider failed (resource=file[/tmp/x], action=create): disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAbortErrorMatchesSentinel(t *testing.T) {
	err := abortError(context.Canceled)
	if !errors.Is(err, ErrAborted) {
		t.Error("abort error should match ErrAborted")
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("abort error should wrap its cause")
	}
	if errors.Is(NewTransientError("other", nil), ErrAborted) {
		t.Error("uncoded transient error should not match ErrAborted")
	}
}

func TestWithContextTurnsCancellationIntoAbort(t *testing.T) {
	err := withContext(fmt.Errorf("read: %w", context.DeadlineExceeded), nil, "create")
	if !errors.Is(err, ErrAborted) {
		t.Errorf("expected abort, got %v", err)
	}
}
