package browser

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webpilot/internal/browsererr"
)

func TestTextMatchRegexp(t *testing.T) {
	tests := []struct {
		match  TextMatch
		source string
		flags  string
	}{
		{Exact("Sign In"), `^\s*Sign In\s*$`, ""},
		{Contains("log in"), `log in`, "i"},
		{Contains("a/b (c)"), `a/b \(c\)`, "i"},
	}
	for _, tt := range tests {
		source, flags := tt.match.Regexp()
		assert.Equal(t, tt.source, source, tt.match.String())
		assert.Equal(t, tt.flags, flags, tt.match.String())
	}
}

func TestTextMatchRegexpAgreesWithMatches(t *testing.T) {
	samples := []string{"Sign In", "  Sign In  ", "sign in", "Please Sign In now", "Sign"}
	for _, m := range []TextMatch{Exact("Sign In"), Contains("sign in")} {
		source, flags := m.Regexp()
		if flags != "" {
			source = "(?" + flags + ")" + source
		}
		re := regexp.MustCompile(source)
		for _, s := range samples {
			assert.Equal(t, m.Matches(s), re.MatchString(s), "%s on %q", m, s)
		}
	}
}

func TestBoxCenter(t *testing.T) {
	x, y := Box{X: 10, Y: 20, Width: 100, Height: 40}.Center()
	assert.Equal(t, 60.0, x)
	assert.Equal(t, 40.0, y)
}

func TestSessionBeforeInitialize(t *testing.T) {
	s := NewSession(DefaultOptions(), nil)

	assert.False(t, s.Initialized())
	assert.Nil(t, s.Page())
	assert.Equal(t, Status{Initialized: false, Headless: true}, s.Status(context.Background()))

	s.Close()
	s.Close()
	assert.False(t, s.Initialized())
}

func TestSessionInitializeFailureIsClassified(t *testing.T) {
	opts := DefaultOptions()
	opts.BinPath = "/nonexistent/webpilot-chromium"
	s := NewSession(opts, nil)

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, browsererr.KindBrowserInitialization, browsererr.KindOf(err))
	assert.False(t, s.Initialized())
	assert.Nil(t, s.Page())
}

func TestSessionInitializeHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSession(DefaultOptions(), nil).Initialize(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, browsererr.ErrBrowserInitialization))
}

func TestLookupError(t *testing.T) {
	err := lookupError(context.Background(), "#x", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrNotFound)

	other := errors.New("cdp closed")
	assert.Same(t, other, lookupError(context.Background(), "#x", other))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, lookupError(ctx, "#x", context.Canceled), context.Canceled)
}
