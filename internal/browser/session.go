package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/webpilot/internal/browsererr"
)

// Options configures the browser session
type Options struct {
	Headless  bool
	NoSandbox bool
	SlowMo    time.Duration
	Width     int
	Height    int
	UserAgent string
	// BinPath overrides browser discovery. Empty uses launcher.LookPath.
	BinPath string
	// ControlURL attaches to an already running browser instead of launching
	// one.
	ControlURL string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Headless: true,
		Width:    1280,
		Height:   800,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36",
	}
}

// Status describes the session for the status endpoint.
type Status struct {
	Initialized bool   `json:"initialized"`
	Headless    bool   `json:"headless"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Session owns the launcher, browser, incognito context and the one active
// page. All methods are safe for concurrent use.
type Session struct {
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	incog    *rod.Browser
	page     *rod.Page
	wrapped  Page
}

// NewSession creates an uninitialized session.
func NewSession(opts Options, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{opts: opts, logger: logger.With(zap.String("component", "session"))}
}

// Initialize launches and connects the browser and opens a page. It is a
// no-op when the session is already live. On failure every partially created
// resource is released and a BrowserInitializationError is returned.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialize(ctx)
}

func (s *Session) initialize(ctx context.Context) error {
	if s.page != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return browsererr.BrowserInitialization("Failed to initialize browser: "+err.Error(), "chromium", err)
	}

	start := time.Now()
	if err := s.open(); err != nil {
		s.close()
		s.logger.Error("browser initialization failed", zap.Error(err))
		return browsererr.BrowserInitialization("Failed to initialize browser: "+err.Error(), "chromium", err)
	}

	s.logger.Info("browser initialized",
		zap.Bool("headless", s.opts.Headless),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (s *Session) open() error {
	controlURL := s.opts.ControlURL
	if controlURL == "" {
		bin := s.opts.BinPath
		if bin == "" {
			bin, _ = launcher.LookPath()
		}
		s.launcher = launcher.New().
			Bin(bin).
			Headless(s.opts.Headless).
			NoSandbox(s.opts.NoSandbox)

		u, err := s.launcher.Launch()
		if err != nil {
			return fmt.Errorf("launch: %w", err)
		}
		controlURL = u
	}

	s.browser = rod.New().ControlURL(controlURL).SlowMotion(s.opts.SlowMo)
	if err := s.browser.Connect(); err != nil {
		s.browser = nil
		return fmt.Errorf("connect: %w", err)
	}

	incog, err := s.browser.Incognito()
	if err != nil {
		return fmt.Errorf("incognito context: %w", err)
	}
	s.incog = incog

	page, err := incog.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("new page: %w", err)
	}
	s.page = page

	if s.opts.Width > 0 && s.opts.Height > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             s.opts.Width,
			Height:            s.opts.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}
	if s.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.opts.UserAgent}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}

	s.wrapped = newRodPage(page)
	return nil
}

// Close tears the session down in reverse order of creation. Each step is
// attempted even when an earlier one fails, and closing an uninitialized
// session is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close()
}

func (s *Session) close() {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			s.logger.Debug("close page", zap.Error(err))
		}
	}
	if s.incog != nil {
		if err := s.incog.Close(); err != nil {
			s.logger.Debug("close context", zap.Error(err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Debug("close browser", zap.Error(err))
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	wasOpen := s.page != nil
	s.page, s.incog, s.browser, s.launcher, s.wrapped = nil, nil, nil, nil, nil
	if wasOpen {
		s.logger.Info("browser closed")
	}
}

// Reset closes the session and initializes a fresh one.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close()
	return s.initialize(ctx)
}

// Initialized reports whether a page is live.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page != nil
}

// Page returns the active page, or nil before Initialize.
func (s *Session) Page() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrapped
}

// Status reports whether the session is live and, if so, where the page is.
func (s *Session) Status(ctx context.Context) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Initialized: s.page != nil, Headless: s.opts.Headless}
	if s.page == nil {
		return st
	}
	if info, err := s.page.Context(ctx).Info(); err == nil {
		st.URL, st.Title = info.URL, info.Title
	}
	if v, err := (proto.BrowserGetVersion{}).Call(s.browser.Context(ctx)); err == nil {
		st.Version = v.Product
	}
	return st
}
