package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/webpilot/internal/actions"
	"github.com/v0xg/webpilot/internal/artifact"
	"github.com/v0xg/webpilot/internal/browser"
	"github.com/v0xg/webpilot/internal/browsererr"
	"github.com/v0xg/webpilot/internal/metrics"
	"github.com/v0xg/webpilot/internal/resolver"
)

// SessionProvider is the part of browser.Session the executor needs.
type SessionProvider interface {
	Initialized() bool
	Initialize(ctx context.Context) error
	Page() browser.Page
}

// Options configures execution behavior
type Options struct {
	// TypeDelay is the pause between typed characters.
	TypeDelay time.Duration
	// NavigationTimeout bounds the load and network-idle wait after navigating.
	NavigationTimeout time.Duration
	// SettleTimeout bounds the network-idle wait after clicks and submits.
	SettleTimeout time.Duration
	// WaitForElementTimeout is the default for wait_for_element.
	WaitForElementTimeout time.Duration
	// SubmitProbeTimeout bounds each submit button lookup.
	SubmitProbeTimeout time.Duration
	// EntryTimeout bounds each login entry-link lookup.
	EntryTimeout time.Duration
	// SearchFallbackTimeout bounds the generic search-box lookup.
	SearchFallbackTimeout time.Duration
}

// DefaultOptions returns the stock execution options.
func DefaultOptions() Options {
	return Options{
		TypeDelay:             50 * time.Millisecond,
		NavigationTimeout:     30 * time.Second,
		SettleTimeout:         5 * time.Second,
		WaitForElementTimeout: 30 * time.Second,
		SubmitProbeTimeout:    time.Second,
		EntryTimeout:          2 * time.Second,
		SearchFallbackTimeout: 5 * time.Second,
	}
}

// Result is the action-specific payload of a successful execution.
type Result map[string]any

type handler func(ctx context.Context, page browser.Page, p actions.Params) (Result, error)

// Executor dispatches actions to their handlers against the session's page.
type Executor struct {
	session  SessionProvider
	resolver *resolver.Resolver
	store    *artifact.Store
	opts     Options
	logger   *zap.Logger
	metrics  *metrics.Collector

	handlers map[actions.Name]handler
}

// New creates an executor. store may be nil, in which case screenshots are
// only returned inline.
func New(session SessionProvider, res *resolver.Resolver, store *artifact.Store, opts Options, logger *zap.Logger, m *metrics.Collector) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		session:  session,
		resolver: res,
		store:    store,
		opts:     opts,
		logger:   logger.With(zap.String("component", "executor")),
		metrics:  m,
	}
	e.handlers = map[actions.Name]handler{
		actions.Navigate:       e.navigate,
		actions.Click:          e.click,
		actions.Type:           e.typeText,
		actions.Submit:         e.submit,
		actions.Wait:           e.wait,
		actions.WaitForElement: e.waitForElement,
		actions.Screenshot:     e.screenshot,
		actions.Login:          e.login,
		actions.Search:         e.search,
	}
	return e
}

// Execute validates params for action, initializes the session if needed and
// runs the handler. Errors are always *browsererr.Error.
func (e *Executor) Execute(ctx context.Context, action actions.Name, params actions.Params) (Result, error) {
	start := time.Now()
	res, err := e.execute(ctx, action, params)

	outcome := "success"
	if err != nil {
		outcome = string(browsererr.KindOf(err))
		e.logger.Error("action failed",
			zap.String("action", string(action)),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
	} else {
		e.logger.Info("action executed",
			zap.String("action", string(action)),
			zap.Duration("took", time.Since(start)))
	}
	e.metrics.ObserveAction(string(action), outcome, time.Since(start))
	return res, err
}

func (e *Executor) execute(ctx context.Context, action actions.Name, params actions.Params) (Result, error) {
	spec, ok := actions.Lookup(action)
	if !ok {
		return nil, browsererr.UnknownAction(string(action))
	}
	h, ok := e.handlers[action]
	if !ok {
		return nil, browsererr.UnknownAction(string(action))
	}
	if params == nil {
		params = actions.Params{}
	}
	if err := spec.Validate(params); err != nil {
		return nil, err
	}

	page, err := e.ensurePage(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("executing action", zap.String("action", string(action)), zap.Any("params", redact(params)))
	res, err := h(ctx, page, params)
	if err != nil {
		return nil, browsererr.Wrap(string(action), err)
	}
	return res, nil
}

// ensurePage initializes the session lazily and returns its page.
func (e *Executor) ensurePage(ctx context.Context) (browser.Page, error) {
	if !e.session.Initialized() {
		err := e.session.Initialize(ctx)
		e.metrics.SessionInit(err)
		if err != nil {
			if browsererr.KindOf(err) == browsererr.KindBrowserInitialization {
				return nil, err
			}
			return nil, browsererr.BrowserInitialization("Failed to initialize browser: "+err.Error(), "chromium", err)
		}
	}
	page := e.session.Page()
	if page == nil {
		return nil, browsererr.BrowserInitialization("Browser session has no active page", "chromium", nil)
	}
	return page, nil
}

// redact hides credentials from debug logs.
func redact(p actions.Params) actions.Params {
	if !p.Has("password") {
		return p
	}
	return p.Merge(actions.Params{"password": "***"})
}
