package failures

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		kind      Kind
		retryable bool
		timeout   bool
	}{
		{"navigation", Navigation("https://www.example.com", context.DeadlineExceeded), KindNavigation, true, false},
		{"action", Action("click", "#su", errors.New("not enabled")), KindAction, true, false},
		{"input verification", InputVerification("#kw", "go", 2, nil), KindInputVerification, false, true},
		{"precondition", Precondition("click_result", "found %d results, need %d", 10, 99), KindPrecondition, false, false},
		{"dependency", Dependency("chrome", errors.New("not found")), KindDependency, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("case failed: %w", tt.err)
			assert.Equal(t, tt.kind, KindOf(wrapped))
			assert.Equal(t, tt.retryable, tt.err.Retryable())
			assert.Equal(t, tt.retryable, IsRetryable(wrapped))
			assert.Equal(t, tt.timeout, tt.err.Timeout())
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := InputVerification(`//textarea[@id="chat-textarea"]`, "playwright", 2, errors.New("read back \"playwrigh\""))
	msg := err.Error()
	assert.Contains(t, msg, "input_verification error in fill")
	assert.Contains(t, msg, `"playwright"`)
	assert.Contains(t, msg, "chat-textarea")
	assert.Contains(t, msg, "2 attempts")

	pre := Precondition("click_result", "found %d results, need index %d", 10, 99)
	assert.Contains(t, pre.Error(), "10")
	assert.Contains(t, pre.Error(), "99")
}

func TestErrorsIsSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Precondition("click_result", "too few"))
	assert.True(t, errors.Is(err, ErrPrecondition))
	assert.False(t, errors.Is(err, ErrAction))

	cause := context.DeadlineExceeded
	nav := Navigation("https://www.example.com", cause)
	assert.True(t, errors.Is(nav, cause), "the cause stays reachable through Unwrap")
}

func TestTag(t *testing.T) {
	assert.NoError(t, Tag("search", "#kw", nil))

	plain := errors.New("boom")
	tagged := Tag("search", "#kw", plain)
	require.Error(t, tagged)
	assert.Equal(t, KindAction, KindOf(tagged))
	assert.ErrorIs(t, tagged, plain)

	pre := Precondition("click_result", "too few")
	assert.Same(t, pre, Tag("search", "#kw", pre), "already tagged errors pass through unchanged")
}

func TestKindOfUntagged(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.False(t, IsRetryable(errors.New("plain")))
}
