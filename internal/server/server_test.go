package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webpilot/internal/actions"
	"github.com/v0xg/webpilot/internal/agent"
	"github.com/v0xg/webpilot/internal/browser"
	"github.com/v0xg/webpilot/internal/browsererr"
	"github.com/v0xg/webpilot/internal/captcha"
	"github.com/v0xg/webpilot/internal/executor"
	"github.com/v0xg/webpilot/internal/metrics"
)

type fakeAgent struct {
	result   *agent.Result
	err      error
	resetErr error
	status   browser.Status

	commands []string
	options  []map[string]any
	resets   int
}

func (f *fakeAgent) Interact(_ context.Context, command string, options map[string]any) (*agent.Result, error) {
	f.commands = append(f.commands, command)
	f.options = append(f.options, options)
	return f.result, f.err
}

func (f *fakeAgent) Reset(context.Context) error {
	f.resets++
	return f.resetErr
}

func (f *fakeAgent) Status(context.Context) browser.Status { return f.status }

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestInteractSuccess(t *testing.T) {
	fa := &fakeAgent{result: &agent.Result{
		Action: actions.Navigate,
		Data:   executor.Result{"url": "https://github.com", "title": "GitHub"},
	}}
	h := New(fa, Options{}, nil, nil).Routes()

	rec, out := do(t, h, http.MethodPost, "/interact", `{"command":"Go to github.com","options":{"timeout":10}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Successfully executed: Go to github.com", out["message"])
	assert.Equal(t, map[string]any{"url": "https://github.com", "title": "GitHub"}, out["data"])

	assert.Equal(t, []string{"Go to github.com"}, fa.commands)
	assert.Equal(t, map[string]any{"timeout": 10.0}, fa.options[0])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestInteractIncludesCaptchaOutcome(t *testing.T) {
	fa := &fakeAgent{result: &agent.Result{
		Data:    executor.Result{"clicked": "Next"},
		Captcha: &captcha.Outcome{State: captcha.StateResolved, Kind: captcha.KindRecaptcha, Method: captcha.MethodManual, Polls: 4},
	}}
	h := New(fa, Options{}, nil, nil).Routes()

	_, out := do(t, h, http.MethodPost, "/interact", `{"command":"click Next button"}`)
	data := out["data"].(map[string]any)
	assert.Equal(t, "Next", data["clicked"])
	assert.Equal(t, map[string]any{"state": "resolved", "kind": "recaptcha", "method": "manual", "polls": 4.0}, data["captcha"])
}

func TestInteractFailureStatusByKind(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{browsererr.InvalidCommand("Could not understand command: x", "x"), http.StatusBadRequest},
		{browsererr.UnknownAction("fly"), http.StatusBadRequest},
		{browsererr.ElementNotFound("Could not find element: a", "a"), http.StatusUnprocessableEntity},
		{browsererr.Navigation("Failed to navigate", "https://x.test", nil), http.StatusUnprocessableEntity},
		{browsererr.Timeout("Timed out", "wait_for_element", 100), http.StatusUnprocessableEntity},
		{browsererr.Authentication("Both needed", "x.test"), http.StatusUnprocessableEntity},
		{browsererr.BrowserInitialization("no chromium", "chromium", nil), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(browsererr.KindOf(tc.err)), func(t *testing.T) {
			h := New(&fakeAgent{err: tc.err}, Options{}, nil, nil).Routes()

			rec, out := do(t, h, http.MethodPost, "/interact", `{"command":"anything"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, false, out["success"])

			data := out["data"].(map[string]any)
			assert.Equal(t, string(browsererr.KindOf(tc.err)), data["error_type"])
			assert.NotEmpty(t, data["recovery_suggestions"])
			assert.Equal(t, out["message"], data["message"])
		})
	}
}

func TestInteractRejectsBadRequests(t *testing.T) {
	fa := &fakeAgent{}
	h := New(fa, Options{}, nil, nil).Routes()

	for _, body := range []string{`{`, `{"command":"  "}`, `{"command":"x","unknown":1}`} {
		rec, out := do(t, h, http.MethodPost, "/interact", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "InvalidCommandError", out["data"].(map[string]any)["error_type"], body)
	}
	assert.Empty(t, fa.commands)

	rec, _ := do(t, h, http.MethodGet, "/interact", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInteractRateLimit(t *testing.T) {
	fa := &fakeAgent{result: &agent.Result{}}
	h := New(fa, Options{RateLimit: 0.001, RateBurst: 2}, nil, nil).Routes()

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodPost, "/interact", `{"command":"take a screenshot"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec, out := do(t, h, http.MethodPost, "/interact", `{"command":"take a screenshot"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Len(t, fa.commands, 2)

	// other routes are not limited
	rec, _ = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatus(t *testing.T) {
	fa := &fakeAgent{}
	h := New(fa, Options{}, nil, nil).Routes()

	_, out := do(t, h, http.MethodGet, "/status", "")
	assert.Equal(t, "not_initialized", out["status"])

	fa.status = browser.Status{Initialized: true, Headless: true, URL: "https://github.com", Title: "GitHub"}
	_, out = do(t, h, http.MethodGet, "/status", "")
	assert.Equal(t, "ready", out["status"])
	info := out["browser_info"].(map[string]any)
	assert.Equal(t, "https://github.com", info["url"])
	assert.Equal(t, true, info["initialized"])
}

func TestReset(t *testing.T) {
	fa := &fakeAgent{}
	h := New(fa, Options{}, nil, nil).Routes()

	rec, out := do(t, h, http.MethodPost, "/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, 1, fa.resets)

	fa.resetErr = browsererr.BrowserInitialization("Failed to initialize browser: no binary", "chromium", nil)
	rec, out = do(t, h, http.MethodPost, "/reset", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", out["status"])
}

func TestHealth(t *testing.T) {
	rec, out := do(t, New(&fakeAgent{}, Options{}, nil, nil).Routes(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", out["status"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := New(&fakeAgent{}, Options{}, nil, nil).Routes()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewCollector("webpilot_test")
	h := New(&fakeAgent{}, Options{}, nil, m).Routes()

	do(t, h, http.MethodGet, "/health", "")
	do(t, h, http.MethodGet, "/health", "")

	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "webpilot_test_http_requests_total")

	assert.Contains(t, rec.Body.String(), `webpilot_test_http_requests_total{method="GET",path="/health",status="200"} 2`)

	rec, _ = do(t, New(&fakeAgent{}, Options{}, nil, nil).Routes(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
