package browsererr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPassesTypedErrorsThrough(t *testing.T) {
	orig := ElementNotFound("Could not find element: login", "login")
	wrapped := fmt.Errorf("click: %w", orig)

	got := Wrap("click", wrapped)
	assert.Same(t, wrapped, got)
	assert.Equal(t, KindElementNotFound, KindOf(got))
	assert.True(t, errors.Is(got, ErrElementNotFound))
	assert.False(t, errors.Is(got, ErrTimeout))
}

func TestWrapClassifiesUnknownFailures(t *testing.T) {
	root := errors.New("socket closed")

	got := Wrap("screenshot", root)
	require.Error(t, got)

	var be *Error
	require.True(t, errors.As(got, &be))
	assert.Equal(t, KindUnexpected, be.Kind)
	assert.Equal(t, "screenshot", be.Details["action"])
	assert.Contains(t, be.Details["traceback"], "goroutine")
	assert.Contains(t, be.Message, "Failed to execute screenshot")
	assert.True(t, errors.Is(got, root))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap("wait", nil))
}

func TestConstructorsCarryDetailsAndSuggestions(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		kind    Kind
		details map[string]any
	}{
		{"element", ElementNotFound("missing", "email"), KindElementNotFound, map[string]any{"element_identifier": "email"}},
		{"navigation", Navigation("bad url", "https://x.test", nil), KindNavigation, map[string]any{"url": "https://x.test"}},
		{"timeout", Timeout("slow", "wait_for_element", 3000), KindTimeout, map[string]any{"operation": "wait_for_element", "timeout_ms": int64(3000)}},
		{"auth", Authentication("no creds", "github.com"), KindAuthentication, map[string]any{"website": "github.com"}},
		{"command", InvalidCommand("nope", "dance"), KindInvalidCommand, map[string]any{"command": "dance"}},
		{"init", BrowserInitialization("boom", "chromium", nil), KindBrowserInitialization, map[string]any{"browser_type": "chromium"}},
		{"unknown", UnknownAction("fly"), KindUnknownAction, map[string]any{"action": "fly"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.details, tt.err.Details)
			assert.NotEmpty(t, tt.err.Suggestions)
			assert.Equal(t, Suggestions(tt.kind), tt.err.Suggestions)
		})
	}
}

func TestSuggestionsAreCopies(t *testing.T) {
	s := Suggestions(KindTimeout)
	s[0] = "changed"
	assert.NotEqual(t, "changed", Suggestions(KindTimeout)[0])
}

func TestToRecord(t *testing.T) {
	rec := ToRecord(fmt.Errorf("outer: %w", Timeout("Timed out waiting for element: results", "wait_for_element", 30000)))
	assert.Equal(t, "TimeoutError", rec.ErrorType)
	assert.Equal(t, "Timed out waiting for element: results", rec.Message)
	assert.Equal(t, int64(30000), rec.Details["timeout_ms"])
	assert.Len(t, rec.RecoverySuggestions, 3)

	plain := ToRecord(errors.New("kaput"))
	assert.Equal(t, "UnexpectedError", plain.ErrorType)
	assert.Equal(t, "kaput", plain.Message)
	assert.Equal(t, Suggestions(KindUnexpected), plain.RecoverySuggestions)
}
