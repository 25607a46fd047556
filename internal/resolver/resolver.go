// Package resolver finds the element a human-style identifier refers to by
// trying an ordered chain of lookup strategies.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/webpilot/internal/browser"
	"github.com/v0xg/webpilot/internal/browsererr"
	"github.com/v0xg/webpilot/internal/metrics"
)

// Default budgets.
const (
	DefaultTimeout         = 5 * time.Second
	DefaultFallbackTimeout = 2 * time.Second
	DefaultAssocTimeout    = 1 * time.Second
	DefaultProbeTimeout    = 1 * time.Second
)

// Strategy names, in the order they are tried.
const (
	StrategyText        = "text"
	StrategyPlaceholder = "placeholder"
	StrategyLabel       = "label"
	StrategyProbe       = "probe"
)

// Options configures the budgets of each strategy.
type Options struct {
	// Timeout is used when Resolve is called without one.
	Timeout time.Duration
	// FallbackTimeout caps the placeholder and label strategies.
	FallbackTimeout time.Duration
	// AssocTimeout bounds the lookup of a label's for= target.
	AssocTimeout time.Duration
	// ProbeTimeout bounds each tag and attribute probe.
	ProbeTimeout time.Duration
}

// DefaultOptions returns the stock budgets.
func DefaultOptions() Options {
	return Options{
		Timeout:         DefaultTimeout,
		FallbackTimeout: DefaultFallbackTimeout,
		AssocTimeout:    DefaultAssocTimeout,
		ProbeTimeout:    DefaultProbeTimeout,
	}
}

// Hit is a resolved element and the strategy that produced it.
type Hit struct {
	Element  browser.Element
	Strategy string
	Selector string
}

// Resolver walks the strategy chain.
type Resolver struct {
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New creates a resolver. Zero budgets in opts fall back to the defaults and
// a nil collector disables metrics.
func New(opts Options, logger *zap.Logger, m *metrics.Collector) *Resolver {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = def.FallbackTimeout
	}
	if opts.AssocTimeout <= 0 {
		opts.AssocTimeout = def.AssocTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = def.ProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{opts: opts, logger: logger.With(zap.String("component", "resolver")), metrics: m}
}

// Options returns the effective budgets.
func (r *Resolver) Options() Options { return r.opts }

// Resolve returns the element identified by id, or an ElementNotFoundError
// once every strategy is exhausted. A non-positive timeout uses the
// configured default.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page, id string, timeout time.Duration) (browser.Element, error) {
	hit, err := r.Locate(ctx, page, id, timeout)
	if err != nil {
		return nil, err
	}
	return hit.Element, nil
}

// Locate is Resolve but also reports which strategy matched.
func (r *Resolver) Locate(ctx context.Context, page browser.Page, id string, timeout time.Duration) (Hit, error) {
	if timeout <= 0 {
		timeout = r.opts.Timeout
	}
	fallback := min(timeout, r.opts.FallbackTimeout)

	steps := []struct {
		name string
		find func() (browser.Element, string, error)
	}{
		{StrategyText, func() (browser.Element, string, error) {
			el, err := page.WaitForText(ctx, "*", browser.Exact(id), timeout)
			return el, "*", err
		}},
		{StrategyPlaceholder, func() (browser.Element, string, error) {
			sel := fmt.Sprintf("[placeholder*=%s i]", CSSString(id))
			el, err := page.WaitForSelector(ctx, sel, fallback)
			return el, sel, err
		}},
		{StrategyLabel, func() (browser.Element, string, error) {
			return r.byLabel(ctx, page, id, fallback)
		}},
		{StrategyProbe, func() (browser.Element, string, error) {
			return r.probe(ctx, page, id)
		}},
	}

	for _, step := range steps {
		el, sel, err := step.find()
		if err == nil && el != nil {
			r.logger.Debug("element resolved",
				zap.String("identifier", id),
				zap.String("strategy", step.name),
				zap.String("selector", sel))
			r.metrics.StrategyHit(step.name)
			return Hit{Element: el, Strategy: step.name, Selector: sel}, nil
		}
		if ctx.Err() != nil {
			return Hit{}, ctx.Err()
		}
		r.logger.Debug("strategy missed", zap.String("identifier", id), zap.String("strategy", step.name), zap.Error(err))
	}

	r.metrics.StrategyHit("none")
	return Hit{}, browsererr.ElementNotFound("Could not find element: "+id, id)
}

// byLabel finds a label containing id and returns the control it labels:
// the for= target, else a nested control, else the label itself.
func (r *Resolver) byLabel(ctx context.Context, page browser.Page, id string, budget time.Duration) (browser.Element, string, error) {
	label, err := page.WaitForText(ctx, "label", browser.Contains(id), budget)
	if err != nil {
		return nil, "", err
	}

	if target, ok, err := label.Attribute(ctx, "for"); err == nil && ok && target != "" {
		sel := fmt.Sprintf("[id=%s]", CSSString(target))
		if el, err := page.WaitForSelector(ctx, sel, r.opts.AssocTimeout); err == nil {
			return el, sel, nil
		}
	}

	if el, err := label.Query(ctx, "input, textarea, select"); err == nil && el != nil {
		return el, "label input, label textarea, label select", nil
	}
	return label, "label", nil
}

var probeTags = []string{"input", "textarea"}
var probeAttrs = []string{"name", "id", "aria-label"}

// probe tries tag+attribute substring selectors, then buttons and links
// containing the text.
func (r *Resolver) probe(ctx context.Context, page browser.Page, id string) (browser.Element, string, error) {
	var lastErr error
	for _, tag := range probeTags {
		for _, attr := range probeAttrs {
			sel := fmt.Sprintf("%s[%s*=%s i]", tag, attr, CSSString(id))
			el, err := page.WaitForSelector(ctx, sel, r.opts.ProbeTimeout)
			if err == nil && el != nil {
				return el, sel, nil
			}
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			lastErr = err
		}
	}
	for _, tag := range []string{"button", "a"} {
		el, err := page.WaitForText(ctx, tag, browser.Contains(id), r.opts.ProbeTimeout)
		if err == nil && el != nil {
			return el, tag, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		lastErr = err
	}
	return nil, "", lastErr
}

// CSSString quotes s as a single-quoted CSS string.
func CSSString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\a `)
	return "'" + r.Replace(s) + "'"
}
