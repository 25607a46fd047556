package config

import "time"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       2,
			RateBurst:       5,
		},
		Browser: BrowserConfig{
			Headless: true,
			Width:    1280,
			Height:   800,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
				"(KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36",
		},
		Resolver: ResolverConfig{
			Timeout:         5 * time.Second,
			FallbackTimeout: 2 * time.Second,
			AssocTimeout:    time.Second,
			ProbeTimeout:    time.Second,
		},
		Executor: ExecutorConfig{
			TypeDelay:             50 * time.Millisecond,
			NavigationTimeout:     30 * time.Second,
			SettleTimeout:         5 * time.Second,
			WaitForElementTimeout: 30 * time.Second,
		},
		Captcha: CaptchaConfig{
			PollInterval: time.Second,
			MaxPolls:     30,
		},
		Metrics: MetricsConfig{
			Namespace: "webpilot",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
