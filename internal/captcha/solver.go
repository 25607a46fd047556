package captcha

import (
	"context"

	"github.com/v0xg/webpilot/internal/browser"
)

// Solver clears a challenge automatically. Returning false without an error
// means "not solved" and hands the challenge to manual intervention.
type Solver interface {
	Solve(ctx context.Context, page browser.Page, handle browser.Element, apiKey string) (bool, error)
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, page browser.Page, handle browser.Element, apiKey string) (bool, error)

func (f SolverFunc) Solve(ctx context.Context, page browser.Page, handle browser.Element, apiKey string) (bool, error) {
	return f(ctx, page, handle, apiKey)
}

// unsolved is installed for every kind with a known provider until a real
// solving service is wired in.
var unsolved = SolverFunc(func(context.Context, browser.Page, browser.Element, string) (bool, error) {
	return false, nil
})

func defaultSolvers() map[Kind]Solver {
	return map[Kind]Solver{
		KindRecaptcha: unsolved,
		KindHCaptcha:  unsolved,
		KindText:      unsolved,
	}
}
