//go:build integration

package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginForm = `<!doctype html>
<html><body>
<form id="login">
	<input name="user" placeholder="Username">
	<div id="wrap"><button id="submit" type="button">Sign In</button></div>
</form>
<p id="other">Something else</p>
</body></html>`

func liveSession(t *testing.T) *Session {
	t.Helper()
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chromium or Chrome binary found")
	}
	opts := DefaultOptions()
	opts.BinPath = bin
	opts.NoSandbox = true

	s := NewSession(opts, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, s.Initialize(ctx))
	t.Cleanup(s.Close)
	return s
}

func serveHTML(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func elementID(t *testing.T, el Element) string {
	t.Helper()
	id, ok, err := el.Attribute(context.Background(), "id")
	require.NoError(t, err)
	require.True(t, ok)
	return id
}

func TestRodWaitForTextPicksInnermostMatch(t *testing.T) {
	s := liveSession(t)
	page := s.Page()
	ctx := context.Background()

	require.NoError(t, page.Navigate(ctx, serveHTML(t, loginForm)))
	require.NoError(t, page.WaitIdle(ctx, 5*time.Second))

	el, err := page.WaitForText(ctx, "*", Exact("Sign In"), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "submit", elementID(t, el))

	el, err = page.WaitForText(ctx, "*", Contains("something"), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "other", elementID(t, el))

	_, err = page.WaitForText(ctx, "*", Exact("Register"), 300*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRodQueryTextPicksInnermostMatch(t *testing.T) {
	s := liveSession(t)
	page := s.Page()
	ctx := context.Background()

	require.NoError(t, page.Navigate(ctx, serveHTML(t, loginForm)))
	require.NoError(t, page.WaitIdle(ctx, 5*time.Second))

	el, err := page.QueryText(ctx, "*", Contains("sign in"))
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "submit", elementID(t, el))

	el, err = page.QueryText(ctx, "div", Contains("sign in"))
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "wrap", elementID(t, el))

	el, err = page.QueryText(ctx, "*", Contains("verify you are human"))
	require.NoError(t, err)
	assert.Nil(t, el)
}
