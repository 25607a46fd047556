package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/webpilot/internal/config"
	"github.com/v0xg/webpilot/internal/logging"
	"github.com/v0xg/webpilot/internal/parser"
	"github.com/v0xg/webpilot/internal/server"
)

var (
	configPath   string
	logLevel     string
	logFormat    string
	headful      bool
	artifactsDir string

	addr string

	options []string
	record  string
	verbose bool

	listRules bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "webpilot",
		Short: "Drive a Chromium browser with plain-language commands",
		Long: `webpilot turns short instructions such as "go to github.com" or
"click on the login button" into browser actions and runs them against a
single Chromium session.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json, console")
	rootCmd.PersistentFlags().BoolVar(&headful, "headful", false, "Show the browser window")
	rootCmd.PersistentFlags().StringVar(&artifactsDir, "artifacts", "", "Directory for screenshots and CAPTCHA evidence")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8000)")

	runCmd := &cobra.Command{
		Use:   "run <command>...",
		Short: "Run commands in order against a fresh browser",
		Example: `  webpilot run "Go to github.com" 'Click on "Sign In"'
  webpilot run --record demo.gif "Search for 'rod' on pkg.go.dev"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCommands,
	}
	runCmd.Flags().StringArrayVarP(&options, "option", "o", nil, "Parameter override key=value applied to every command (repeatable)")
	runCmd.Flags().StringVar(&record, "record", "", "Write an animated GIF with one frame per command")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print each command's result")

	parseCmd := &cobra.Command{
		Use:   "parse [command]",
		Short: "Show how a command is understood without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  parseCommand,
	}
	parseCmd.Flags().BoolVar(&listRules, "list", false, "List the command grammar")

	rootCmd.AddCommand(serveCmd, runCmd, parseCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies command-line flags on top of the loaded configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if cmd.Flags().Changed("headful") {
		cfg.Browser.Headless = !headful
	}
	if artifactsDir != "" {
		cfg.Artifacts.Dir = artifactsDir
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	return cfg, cfg.Validate()
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, logger)
	defer a.agent.Close()

	// Start the browser up front; a failure here is retried lazily by the
	// first command.
	if err := a.session.Initialize(ctx); err != nil {
		logger.Warn("browser not started", zap.Error(err))
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.New(a.agent, server.Options{
			RateLimit: cfg.Server.RateLimit,
			RateBurst: cfg.Server.RateBurst,
		}, logger, a.metrics).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func parseCommand(_ *cobra.Command, args []string) error {
	if listRules {
		for _, r := range parser.Rules() {
			fmt.Printf("%-17s %s\n", r.Action, r.Example)
		}
		return nil
	}
	if len(args) == 0 {
		return errors.New("parse needs a command, or --list")
	}

	action, params, err := parser.Parse(args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(map[string]any{"action": action, "parameters": params}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
