// Package agent turns a free-text command into an executed browser action.
// It owns the single in-flight action rule: Interact and Reset are serialized
// so callers queue instead of interleaving on the shared page.
package agent

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/v0xg/webpilot/internal/actions"
	"github.com/v0xg/webpilot/internal/browser"
	"github.com/v0xg/webpilot/internal/browsererr"
	"github.com/v0xg/webpilot/internal/captcha"
	"github.com/v0xg/webpilot/internal/executor"
	"github.com/v0xg/webpilot/internal/parser"
)

// Session is the browser session the agent drives.
type Session interface {
	executor.SessionProvider
	Close()
	Reset(ctx context.Context) error
	Status(ctx context.Context) browser.Status
}

// Executor runs one validated action.
type Executor interface {
	Execute(ctx context.Context, action actions.Name, params actions.Params) (executor.Result, error)
}

// CaptchaHandler checks the page for a challenge and resolves it.
type CaptchaHandler interface {
	Handle(ctx context.Context, page browser.Page) (captcha.Outcome, error)
}

// pageChanging lists the actions after which a challenge may have appeared.
var pageChanging = map[actions.Name]bool{
	actions.Navigate: true,
	actions.Click:    true,
	actions.Submit:   true,
	actions.Login:    true,
	actions.Search:   true,
}

// Result is a completed interaction.
type Result struct {
	Command string           `json:"command"`
	Action  actions.Name     `json:"action"`
	Params  actions.Params   `json:"parameters"`
	Data    executor.Result  `json:"data"`
	Captcha *captcha.Outcome `json:"captcha,omitempty"`
}

// Agent parses, executes and checks commands against one session.
type Agent struct {
	session Session
	exec    Executor
	captcha CaptchaHandler
	sem     *semaphore.Weighted
	logger  *zap.Logger
}

// New creates an agent. A nil handler disables the post-action challenge
// check.
func New(session Session, exec Executor, handler CaptchaHandler, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		session: session,
		exec:    exec,
		captcha: handler,
		sem:     semaphore.NewWeighted(1),
		logger:  logger.With(zap.String("component", "agent")),
	}
}

// Interact parses command, merges options over the parsed parameters (options
// win), and executes the action. Page-changing actions are followed by a
// challenge check when a handler is set. The check never fails a successful
// action: its outcome, escalated or not, is reported in Result.Captcha.
func (a *Agent) Interact(ctx context.Context, command string, options map[string]any) (*Result, error) {
	action, params, err := parser.Parse(command)
	if err != nil {
		return nil, err
	}
	params = params.Merge(actions.Params(options))

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, browsererr.Timeout("Interaction cancelled while waiting for the browser: "+err.Error(), string(action), 0)
	}
	defer a.sem.Release(1)

	a.logger.Info("interacting", zap.String("action", string(action)))

	data, err := a.exec.Execute(ctx, action, params)
	if err != nil {
		return nil, err
	}
	res := &Result{Command: command, Action: action, Params: params, Data: data}

	if a.captcha == nil || !pageChanging[action] {
		return res, nil
	}
	page := a.session.Page()
	if page == nil {
		return res, nil
	}

	outcome, err := a.captcha.Handle(ctx, page)
	if err != nil {
		return nil, browsererr.Wrap(string(action), err)
	}
	if outcome.State == captcha.StateEscalated {
		a.logger.Warn("captcha still present after manual wait",
			zap.String("action", string(action)),
			zap.String("kind", string(outcome.Kind)),
			zap.Int("polls", outcome.Polls))
	}
	if outcome.State != captcha.StateAbsent {
		res.Captcha = &outcome
	}
	return res, nil
}

// Reset closes the browser and starts a fresh one. It waits for any action in
// flight.
func (a *Agent) Reset(ctx context.Context) error {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer a.sem.Release(1)

	a.logger.Info("resetting browser")
	return a.session.Reset(ctx)
}

// Status reports the session state without waiting for the action in flight.
func (a *Agent) Status(ctx context.Context) browser.Status {
	return a.session.Status(ctx)
}

// Close shuts the browser down.
func (a *Agent) Close() {
	a.session.Close()
}
