// Package captcha detects CAPTCHA challenges on the current page and decides
// how they get resolved: a pluggable solver when one is configured, otherwise
// a wait for an operator to clear the challenge by hand.
package captcha

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/webpilot/internal/artifact"
	"github.com/v0xg/webpilot/internal/browser"
	"github.com/v0xg/webpilot/internal/metrics"
)

// Kind classifies a detected challenge.
type Kind string

const (
	KindRecaptcha Kind = "recaptcha"
	KindHCaptcha  Kind = "hcaptcha"
	KindText      Kind = "text_captcha"
	KindUnknown   Kind = "unknown"
	KindNone      Kind = "none"
)

// Record is the result of one detection pass. It is never cached.
type Record struct {
	Present bool
	Kind    Kind
	// Handle is the matched element for structural hits, nil otherwise.
	Handle browser.Element
	// Signal is the probe or phrase that triggered the detection.
	Signal string
}

// probe is a structural signature. Text, when set, restricts the selector to
// elements containing it.
type probe struct {
	Selector string
	Text     string
}

func (p probe) String() string {
	if p.Text == "" {
		return p.Selector
	}
	return p.Selector + " " + p.Text
}

var probes = []probe{
	{Selector: "iframe[src*='recaptcha']"},
	{Selector: "iframe[title*='recaptcha']"},
	{Selector: ".g-recaptcha"},
	{Selector: "div[data-sitekey]"},

	{Selector: "iframe[src*='hcaptcha']"},
	{Selector: ".h-captcha"},

	{Selector: "img[alt*='captcha' i]"},
	{Selector: "input[name*='captcha' i]"},
	{Selector: "div[class*='captcha' i]"},

	{Selector: "label", Text: "I am not a robot"},
	{Selector: "div", Text: "Verify you are human"},
}

var phrases = []string{
	"captcha",
	"i am not a robot",
	"verify you are human",
	"security check",
	"prove you're human",
	"human verification",
}

// classify derives the kind from the probe's own text.
func classify(p probe) Kind {
	s := strings.ToLower(p.String())
	switch {
	case strings.Contains(s, "recaptcha"):
		return KindRecaptcha
	case strings.Contains(s, "hcaptcha"), strings.Contains(s, "h-captcha"):
		return KindHCaptcha
	case strings.Contains(s, "captcha"):
		return KindText
	default:
		return KindUnknown
	}
}

// Default polling policy for manual intervention.
const (
	DefaultPollInterval = time.Second
	DefaultMaxPolls     = 30
)

// Options configures a Detector.
type Options struct {
	// APIKey enables the solver hooks. Empty means manual intervention only.
	APIKey       string
	PollInterval time.Duration
	MaxPolls     int
}

// Detector scans pages for challenges and drives their resolution.
type Detector struct {
	opts    Options
	solvers map[Kind]Solver
	store   *artifact.Store
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option customizes a Detector.
type Option func(*Detector)

// WithSolver installs the solver used for kind.
func WithSolver(kind Kind, s Solver) Option {
	return func(d *Detector) { d.solvers[kind] = s }
}

// WithArtifacts sets where escalation screenshots are written.
func WithArtifacts(store *artifact.Store) Option {
	return func(d *Detector) { d.store = store }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(d *Detector) { d.metrics = m }
}

// NewDetector creates a detector with the placeholder solvers installed.
func NewDetector(opts Options, options ...Option) *Detector {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}
	d := &Detector{
		opts:    opts,
		solvers: defaultSolvers(),
		logger:  zap.NewNop(),
	}
	for _, o := range options {
		o(d)
	}
	d.logger = d.logger.With(zap.String("component", "captcha"))
	return d
}

// Detect probes the structural signatures in order and returns on the first
// hit. Without one it scans the page source for known phrases. Lookup errors
// are logged and reported as absence.
func (d *Detector) Detect(ctx context.Context, page browser.Page) Record {
	for _, p := range probes {
		var (
			el  browser.Element
			err error
		)
		if p.Text == "" {
			el, err = page.Query(ctx, p.Selector)
		} else {
			el, err = page.QueryText(ctx, p.Selector, browser.Contains(p.Text))
		}
		if err != nil {
			d.logger.Warn("captcha probe failed", zap.String("probe", p.String()), zap.Error(err))
			return Record{Kind: KindNone}
		}
		if el != nil {
			kind := classify(p)
			d.logger.Info("captcha detected", zap.String("probe", p.String()), zap.String("kind", string(kind)))
			return Record{Present: true, Kind: kind, Handle: el, Signal: p.String()}
		}
	}

	content, err := page.Content(ctx)
	if err != nil {
		d.logger.Warn("captcha text scan failed", zap.Error(err))
		return Record{Kind: KindNone}
	}
	lower := strings.ToLower(content)
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			d.logger.Info("captcha detected", zap.String("phrase", phrase), zap.String("kind", string(KindUnknown)))
			return Record{Present: true, Kind: KindUnknown, Signal: phrase}
		}
	}
	return Record{Kind: KindNone}
}

// Method names how a challenge was cleared.
type Method string

const (
	MethodSolver Method = "solver"
	MethodManual Method = "manual"
)

// Resolution reports the result of Resolve.
type Resolution struct {
	Solved bool
	Method Method
	// Polls is the number of detection passes made while waiting.
	Polls int
	// Artifact is the escalation screenshot path, if one was written.
	Artifact string
	// Screenshot is the escalation capture. It is set whether or not a store
	// is configured.
	Screenshot []byte
}

// Resolve tries the solver for kind when an API key is configured and falls
// back to manual intervention. The only error returned is context
// cancellation.
func (d *Detector) Resolve(ctx context.Context, page browser.Page, kind Kind, handle browser.Element) (Resolution, error) {
	d.logger.Info("attempting to solve captcha", zap.String("kind", string(kind)))

	if d.opts.APIKey != "" {
		if solver, ok := d.solvers[kind]; ok {
			solved, err := solver.Solve(ctx, page, handle, d.opts.APIKey)
			switch {
			case err != nil:
				d.logger.Error("captcha solver failed", zap.String("kind", string(kind)), zap.Error(err))
			case solved:
				return Resolution{Solved: true, Method: MethodSolver}, nil
			}
		} else {
			d.logger.Warn("no automated solution available", zap.String("kind", string(kind)))
		}
		if err := ctx.Err(); err != nil {
			return Resolution{Method: MethodSolver}, err
		}
	}

	return d.manual(ctx, page, kind, handle)
}

// manual saves a screenshot for the operator and polls Detect until the
// challenge is gone or the poll ceiling is reached.
func (d *Detector) manual(ctx context.Context, page browser.Page, kind Kind, handle browser.Element) (Resolution, error) {
	res := Resolution{Method: MethodManual}
	res.Artifact, res.Screenshot = d.evidence(ctx, page, kind, handle)

	d.logger.Info("waiting for manual captcha solution",
		zap.Int("max_polls", d.opts.MaxPolls),
		zap.Duration("interval", d.opts.PollInterval))

	timer := time.NewTimer(d.opts.PollInterval)
	defer timer.Stop()

	for i := 1; i <= d.opts.MaxPolls; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Polls = i
		if !d.Detect(ctx, page).Present {
			// A lookup cut short by cancellation also reads as absence.
			if err := ctx.Err(); err != nil {
				return res, err
			}
			d.logger.Info("captcha appears to be solved", zap.Int("polls", i))
			res.Solved = true
			return res, nil
		}
		if i == d.opts.MaxPolls {
			break
		}

		timer.Reset(d.opts.PollInterval)
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-timer.C:
		}
		if i%5 == 0 {
			d.logger.Info("still waiting for captcha solution", zap.Int("polls_remaining", d.opts.MaxPolls-i))
		}
	}

	d.logger.Warn("timeout waiting for manual captcha solution", zap.Int("polls", res.Polls))
	return res, nil
}

// evidence captures the page, outlining handle when it has a box, and saves
// it when a store is configured. Failures are logged; the wait goes ahead
// without a screenshot.
func (d *Detector) evidence(ctx context.Context, page browser.Page, kind Kind, handle browser.Element) (string, []byte) {
	shot, err := page.Screenshot(ctx)
	if err != nil {
		d.logger.Warn("captcha screenshot failed", zap.Error(err))
		return "", nil
	}
	if len(shot) == 0 {
		return "", nil
	}
	if handle != nil {
		if box, err := handle.Box(ctx); err == nil {
			if marked, err := artifact.HighlightPNG(shot, *box); err == nil {
				shot = marked
			}
		}
	}
	if !d.store.Enabled() {
		return "", shot
	}
	path, err := d.store.SavePNG("captcha-"+string(kind), shot)
	if err != nil {
		d.logger.Warn("captcha screenshot not saved", zap.Error(err))
		return "", shot
	}
	d.logger.Info("captcha screenshot saved", zap.String("path", path))
	return path, shot
}
