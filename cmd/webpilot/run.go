package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/webpilot/internal/artifact"
	"github.com/v0xg/webpilot/internal/browsererr"
	"github.com/v0xg/webpilot/internal/logging"
)

func runCommands(cmd *cobra.Command, commands []string) error {
	overrides, err := parseOptions(options)
	if err != nil {
		return err
	}
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

	var rec *artifact.Recording
	if record != "" {
		rec = &artifact.Recording{}
	}

	for i, command := range commands {
		fmt.Printf("→ [%d/%d] %s... ", i+1, len(commands), command)
		res, err := a.agent.Interact(ctx, command, overrides)
		if err != nil {
			fmt.Println("failed")
			printFailure(err)
			if path := saveFailureShot(ctx, a, logger); path != "" {
				fmt.Printf("  screenshot: %s\n", path)
			}
			return fmt.Errorf("command %d failed: %s", i+1, browsererr.ToRecord(err).Message)
		}
		fmt.Println("done")
		if res.Captcha != nil {
			fmt.Printf("  captcha: %s (%s after %d checks)\n", res.Captcha.Kind, res.Captcha.State, res.Captcha.Polls)
			if res.Captcha.Artifact != "" {
				fmt.Printf("  captcha screenshot: %s\n", res.Captcha.Artifact)
			}
		}
		if verbose {
			printResult(res.Data)
		}
		if rec != nil {
			captureFrame(ctx, a, rec, logger)
		}
	}

	if rec != nil {
		fmt.Printf("→ Writing %s (%d frames)... ", record, rec.Len())
		if err := writeRecording(record, rec); err != nil {
			fmt.Println("failed")
			return err
		}
		fmt.Println("done")
	}

	fmt.Printf("✓ %d commands executed\n", len(commands))
	return nil
}

// parseOptions turns key=value pairs into parameter overrides. Numbers become
// float64 and the literal null becomes nil; everything else stays a string.
func parseOptions(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q, want key=value", pair)
		}
		switch f, err := strconv.ParseFloat(value, 64); {
		case value == "null":
			out[key] = nil
		case err == nil:
			out[key] = f
		default:
			out[key] = value
		}
	}
	return out, nil
}

func printFailure(err error) {
	rec := browsererr.ToRecord(err)
	fmt.Printf("  %s: %s\n", rec.ErrorType, rec.Message)
	for _, s := range rec.RecoverySuggestions {
		fmt.Printf("  - %s\n", s)
	}
}

func printResult(data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(data[k])
		if k == "screenshot" && len(v) > 60 {
			v = fmt.Sprintf("%s... (%d bytes base64)", v[:60], len(v))
		}
		fmt.Printf("  %s: %s\n", k, v)
	}
}

func saveFailureShot(ctx context.Context, a *app, logger *zap.Logger) string {
	page := a.session.Page()
	if page == nil || !a.store.Enabled() {
		return ""
	}
	shot, err := page.Screenshot(ctx)
	if err != nil {
		logger.Warn("failure screenshot failed", zap.Error(err))
		return ""
	}
	path, err := a.store.SavePNG("failure", shot)
	if err != nil {
		logger.Warn("failure screenshot not saved", zap.Error(err))
		return ""
	}
	return path
}

func captureFrame(ctx context.Context, a *app, rec *artifact.Recording, logger *zap.Logger) {
	page := a.session.Page()
	if page == nil {
		return
	}
	shot, err := page.Screenshot(ctx)
	if err == nil {
		err = rec.Add(shot)
	}
	if err != nil {
		logger.Warn("recording frame skipped", zap.Error(err))
	}
}

func writeRecording(path string, rec *artifact.Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := rec.WriteGIF(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
