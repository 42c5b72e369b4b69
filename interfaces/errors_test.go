package interfaces

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindClassification(t *testing.T) {
	tests := []struct {
		name      string
		kind      ErrorKind
		retryable bool
	}{
		{"configuration is fatal", KindConfiguration, false},
		{"connection is retriable", KindConnection, true},
		{"timeout is retriable", KindTimeout, true},
		{"validation is a caller error", KindValidation, false},
		{"authentication is fatal", KindAuthentication, false},
		{"not found is a caller error", KindNotFound, false},
		{"rate limit is retriable", KindRateLimit, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.kind.Retryable())
		})
	}
}

func TestErrorMatchingByKind(t *testing.T) {
	err := NewError(KindNotFound, "pinata", "pin not found")
	wrapped := fmt.Errorf("fetching proof: %w", err)

	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindConnection))
	assert.True(t, errors.Is(wrapped, &Error{Kind: KindNotFound}))
}

func TestClassifyDefaultsToConnection(t *testing.T) {
	err := Classify(errors.New("connection reset by peer"), "zerog")
	assert.Equal(t, KindConnection, err.Kind)
	assert.Equal(t, "zerog", err.Adapter)
}

func TestClassifyDeadlineBecomesTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := Classify(ctx.Err(), "eigenai")
	assert.Equal(t, KindTimeout, err.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClassifyPassesAdapterErrorsThrough(t *testing.T) {
	orig := NewError(KindAuthentication, "eigenai", "bad api key")
	classified := Classify(fmt.Errorf("submit: %w", orig), "other")
	assert.Same(t, orig, classified)
}

func TestRateLimitCarriesRetryAfter(t *testing.T) {
	err := NewError(KindRateLimit, "pinata", "throttled").WithRetryAfter(30 * time.Second)

	var ae *Error
	require.True(t, errors.As(fmt.Errorf("put: %w", err), &ae))
	assert.Equal(t, 30*time.Second, ae.RetryAfter)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindValidation, KindOf(NewError(KindValidation, "a", "m")))
	assert.Equal(t, KindConnection, KindOf(errors.New("eof")))
}
