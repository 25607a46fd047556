package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/webpilot/internal/actions"
	"github.com/v0xg/webpilot/internal/artifact"
	"github.com/v0xg/webpilot/internal/browser"
	"github.com/v0xg/webpilot/internal/browsererr"
)

var (
	submitSelectors = []string{"input[type='submit']", "button[type='submit']"}
	submitTexts     = []string{"Submit", "Login", "Sign in", "Search", "Send"}

	loginEntryTexts = []string{"Log in", "Login", "Sign in", "Signin", "Sign In", "Account", "My Account"}
	usernameFields  = []string{"username", "email", "user", "login"}
	passwordFields  = []string{"password", "pass"}

	searchFields    = []string{"search", "q", "query", "find"}
	searchBoxSelect = "input[type='search'], input[placeholder*='search' i], input[aria-label*='search' i]"
)

// withScheme defaults a bare host to https.
func withScheme(url string) string {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return url
	}
	return "https://" + url
}

func (e *Executor) navigate(ctx context.Context, page browser.Page, p actions.Params) (Result, error) {
	url := withScheme(p.String("url"))
	e.logger.Info("navigating", zap.String("url", url))

	if err := page.Navigate(ctx, url); err != nil {
		return nil, browsererr.Navigation(fmt.Sprintf("Failed to navigate to %s: %v", url, err), url, err)
	}
	if err := page.WaitIdle(ctx, e.opts.NavigationTimeout); err != nil {
		return nil, browsererr.Navigation(fmt.Sprintf("Failed to navigate to %s: %v", url, err), url, err)
	}

	current, err := page.URL(ctx)
	if err != nil {
		return nil, err
	}
	title, err := page.Title(ctx)
	if err != nil {
		return nil, err
	}
	return Result{"url": current, "title": title}, nil
}

func (e *Executor) click(ctx context.Context, page browser.Page, p actions.Params) (Result, error) {
	text := p.String("text")
	el, err := e.resolver.Resolve(ctx, page, text, 0)
	if err != nil {
		return nil, err
	}
	if err := el.Click(ctx); err != nil {
		return nil, fmt.Errorf("click on '%s': %w", text, err)
	}
	e.settle(ctx, page)
	return Result{"clicked": text}, nil
}

func (e *Executor) typeText(ctx context.Context, page browser.Page, p actions.Params) (Result, error) {
	text, field := p.String("text"), p.String("field")
	if err := e.fill(ctx, page, field, text); err != nil {
		return nil, err
	}
	return Result{"field": field, "typed": text}, nil
}

// fill resolves field, clears it and types text one character at a time.
func (e *Executor) fill(ctx context.Context, page browser.Page, field, text string) error {
	el, err := e.resolver.Resolve(ctx, page, field, 0)
	if err != nil {
		return err
	}
	return e.typeInto(ctx, el, field, text)
}

func (e *Executor) typeInto(ctx context.Context, el browser.Element, field, text string) error {
	if err := el.Fill(ctx, ""); err != nil {
		return fmt.Errorf("clear field '%s': %w", field, err)
	}
	if err := el.Type(ctx, text, e.opts.TypeDelay); err != nil {
		return fmt.Errorf("type in field '%s': %w", field, err)
	}
	return nil
}

// fillFirst fills the first of fields that resolves. It reports false when
// none did; only cancellation is returned as an error.
func (e *Executor) fillFirst(ctx context.Context, page browser.Page, fields []string, text string) (bool, error) {
	for _, field := range fields {
		err := e.fill(ctx, page, field, text)
		if err == nil {
			return true, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		e.logger.Debug("field candidate failed", zap.String("field", field), zap.Error(err))
	}
	return false, nil
}

func (e *Executor) submit(ctx context.Context, page browser.Page, _ actions.Params) (Result, error) {
	if err := e.submitForm(ctx, page); err != nil {
		return nil, err
	}
	return Result{"submitted": true}, nil
}

// submitForm clicks the first submit control found, else presses Enter on the
// first form, else presses Enter on the page. Success is optimistic: once a
// click or key press went through, the form counts as submitted.
func (e *Executor) submitForm(ctx context.Context, page browser.Page) error {
	try := func(el browser.Element, err error) bool {
		if err != nil || el == nil {
			return false
		}
		if err := el.Click(ctx); err != nil {
			e.logger.Debug("submit click failed", zap.Error(err))
			return false
		}
		return true
	}

	for _, sel := range submitSelectors {
		if try(page.WaitForSelector(ctx, sel, e.opts.SubmitProbeTimeout)) {
			e.settle(ctx, page)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	for _, text := range submitTexts {
		if try(page.WaitForText(ctx, "button", browser.Contains(text), e.opts.SubmitProbeTimeout)) {
			e.settle(ctx, page)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if form, err := page.Query(ctx, "form"); err == nil && form != nil {
		if err := form.Press(ctx, "Enter"); err == nil {
			e.settle(ctx, page)
			return nil
		}
	}

	if err := page.Press(ctx, "Enter"); err != nil {
		return fmt.Errorf("submit form: %w", err)
	}
	e.settle(ctx, page)
	return nil
}

// settle waits for the network to quiet down. Timeouts are tolerated.
func (e *Executor) settle(ctx context.Context, page browser.Page) {
	if err := page.WaitIdle(ctx, e.opts.SettleTimeout); err != nil {
		e.logger.Debug("page did not settle", zap.Error(err))
	}
}

func (e *Executor) wait(ctx context.Context, _ browser.Page, p actions.Params) (Result, error) {
	seconds, ok := p.Float("seconds")
	d, valid := duration(seconds, time.Second)
	if !ok || !valid {
		return nil, browsererr.InvalidCommand(fmt.Sprintf("Invalid wait duration: %v", p["seconds"]), "")
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}
	return Result{"waited": seconds}, nil
}

// duration converts v units to a Duration. It reports false for NaN, negative
// values and anything a Duration cannot hold.
func duration(v float64, unit time.Duration) (time.Duration, bool) {
	if math.IsNaN(v) || v < 0 || v >= math.MaxInt64/float64(unit) {
		return 0, false
	}
	return time.Duration(v * float64(unit)), true
}

func (e *Executor) waitForElement(ctx context.Context, page browser.Page, p actions.Params) (Result, error) {
	element := p.String("element")
	timeout := e.opts.WaitForElementTimeout
	if ms, ok := p.Float("timeout"); ok && ms > 0 {
		d, valid := duration(ms, time.Millisecond)
		if !valid {
			return nil, browsererr.InvalidCommand(fmt.Sprintf("Invalid timeout: %v", p["timeout"]), "")
		}
		timeout = d
	}

	if _, err := e.resolver.Resolve(ctx, page, element, timeout); err != nil {
		if browsererr.KindOf(err) == browsererr.KindElementNotFound {
			return nil, browsererr.Timeout("Timed out waiting for element: "+element, "wait_for_element", timeout.Milliseconds())
		}
		return nil, err
	}
	return Result{"waited_for": element}, nil
}

func (e *Executor) screenshot(ctx context.Context, page browser.Page, p actions.Params) (Result, error) {
	shot, err := page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("take screenshot: %w", err)
	}

	if p.Has("max_width") {
		width, ok := p.Float("max_width")
		if !ok || width < 1 {
			return nil, browsererr.InvalidCommand(fmt.Sprintf("Invalid max_width: %v", p["max_width"]), "")
		}
		if shot, err = artifact.Downscale(shot, uint(width)); err != nil {
			return nil, err
		}
	}

	res := Result{
		"screenshot": base64.StdEncoding.EncodeToString(shot),
		"format":     "base64",
	}
	if e.store.Enabled() {
		path, err := e.store.SavePNG("screenshot", shot)
		if err != nil {
			e.logger.Warn("screenshot not saved", zap.Error(err))
		} else {
			res["path"] = path
		}
	}
	return res, nil
}

func (e *Executor) login(ctx context.Context, page browser.Page, p actions.Params) (Result, error) {
	website := p.String("website")
	if _, err := e.navigate(ctx, page, actions.Params{"url": website}); err != nil {
		return nil, err
	}

	for _, text := range loginEntryTexts {
		el, err := page.WaitForText(ctx, "*", browser.Exact(text), e.opts.EntryTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err := el.Click(ctx); err != nil {
			e.logger.Debug("login entry click failed", zap.String("text", text), zap.Error(err))
			continue
		}
		e.settle(ctx, page)
		break
	}

	username, password := p.String("username"), p.String("password")
	switch {
	case username != "" && password != "":
		ok, err := e.fillFirst(ctx, page, usernameFields, username)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, browsererr.ElementNotFound("Could not find username field", "username")
		}
		ok, err = e.fillFirst(ctx, page, passwordFields, password)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, browsererr.ElementNotFound("Could not find password field", "password")
		}
		if err := e.submitForm(ctx, page); err != nil {
			return nil, err
		}
	case username != "" || password != "":
		return nil, browsererr.Authentication("Both username and password are required to log in to "+website, website)
	}

	current, err := page.URL(ctx)
	if err != nil {
		return nil, err
	}
	return Result{
		"logged_in":   username != "" && password != "",
		"website":     website,
		"current_url": current,
	}, nil
}

func (e *Executor) search(ctx context.Context, page browser.Page, p actions.Params) (Result, error) {
	query, website := p.String("query"), p.String("website")
	if _, err := e.navigate(ctx, page, actions.Params{"url": website}); err != nil {
		return nil, err
	}

	filled, err := e.fillFirst(ctx, page, searchFields, query)
	if err != nil {
		return nil, err
	}
	if !filled {
		box, err := page.WaitForSelector(ctx, searchBoxSelect, e.opts.SearchFallbackTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, browsererr.ElementNotFound("Could not find search field", "search")
		}
		if err := e.typeInto(ctx, box, "search", query); err != nil {
			return nil, err
		}
	}

	if err := e.submitForm(ctx, page); err != nil {
		return nil, err
	}

	current, err := page.URL(ctx)
	if err != nil {
		return nil, err
	}
	return Result{
		"search_query": query,
		"website":      website,
		"current_url":  current,
	}, nil
}
