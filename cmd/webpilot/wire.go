package main

import (
	"go.uber.org/zap"

	"github.com/v0xg/webpilot/internal/agent"
	"github.com/v0xg/webpilot/internal/artifact"
	"github.com/v0xg/webpilot/internal/browser"
	"github.com/v0xg/webpilot/internal/captcha"
	"github.com/v0xg/webpilot/internal/config"
	"github.com/v0xg/webpilot/internal/executor"
	"github.com/v0xg/webpilot/internal/metrics"
	"github.com/v0xg/webpilot/internal/resolver"
)

// app holds the wired components of one process.
type app struct {
	session *browser.Session
	agent   *agent.Agent
	store   *artifact.Store
	metrics *metrics.Collector
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	m := metrics.NewCollector(cfg.Metrics.Namespace)
	store := artifact.NewStore(cfg.Artifacts.Dir)

	session := browser.NewSession(browser.Options{
		Headless:   cfg.Browser.Headless,
		NoSandbox:  cfg.Browser.NoSandbox,
		SlowMo:     cfg.Browser.SlowMo,
		Width:      cfg.Browser.Width,
		Height:     cfg.Browser.Height,
		UserAgent:  cfg.Browser.UserAgent,
		BinPath:    cfg.Browser.BinPath,
		ControlURL: cfg.Browser.ControlURL,
	}, logger)

	res := resolver.New(resolver.Options{
		Timeout:         cfg.Resolver.Timeout,
		FallbackTimeout: cfg.Resolver.FallbackTimeout,
		AssocTimeout:    cfg.Resolver.AssocTimeout,
		ProbeTimeout:    cfg.Resolver.ProbeTimeout,
	}, logger, m)

	execOpts := executor.DefaultOptions()
	execOpts.TypeDelay = cfg.Executor.TypeDelay
	execOpts.NavigationTimeout = cfg.Executor.NavigationTimeout
	execOpts.SettleTimeout = cfg.Executor.SettleTimeout
	execOpts.WaitForElementTimeout = cfg.Executor.WaitForElementTimeout
	exec := executor.New(session, res, store, execOpts, logger, m)

	var handler agent.CaptchaHandler
	if cfg.Captcha.AutoCheck {
		handler = captcha.NewDetector(captcha.Options{
			APIKey:       cfg.Captcha.APIKey,
			PollInterval: cfg.Captcha.PollInterval,
			MaxPolls:     cfg.Captcha.MaxPolls,
		},
			captcha.WithArtifacts(store),
			captcha.WithLogger(logger),
			captcha.WithMetrics(m),
		)
	}

	return &app{
		session: session,
		agent:   agent.New(session, exec, handler, logger),
		store:   store,
		metrics: m,
	}
}
