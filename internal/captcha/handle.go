package captcha

import (
	"context"

	"github.com/v0xg/webpilot/internal/browser"
)

// State is where a page ended up after Handle.
type State string

const (
	StateAbsent    State = "absent"
	StateResolved  State = "resolved"
	StateEscalated State = "escalated"
)

// Outcome summarizes one Handle call.
type Outcome struct {
	State    State  `json:"state"`
	Kind     Kind   `json:"kind"`
	Method   Method `json:"method,omitempty"`
	Polls    int    `json:"polls,omitempty"`
	Artifact string `json:"artifact,omitempty"`
	// Screenshot is the escalation capture, carried only when it was not
	// written to Artifact. It marshals as base64.
	Screenshot []byte `json:"screenshot,omitempty"`
}

// Handle detects a challenge and, if one is present, resolves it. Escalated
// means the challenge was still there when the poll ceiling was reached.
func (d *Detector) Handle(ctx context.Context, page browser.Page) (Outcome, error) {
	rec := d.Detect(ctx, page)
	if !rec.Present {
		return Outcome{State: StateAbsent, Kind: KindNone}, nil
	}
	d.metrics.CaptchaDetected(string(rec.Kind))

	res, err := d.Resolve(ctx, page, rec.Kind, rec.Handle)
	out := Outcome{
		State:    StateEscalated,
		Kind:     rec.Kind,
		Method:   res.Method,
		Polls:    res.Polls,
		Artifact: res.Artifact,
	}
	if res.Artifact == "" {
		out.Screenshot = res.Screenshot
	}
	if res.Solved {
		out.State = StateResolved
	}
	d.metrics.CaptchaOutcome(string(out.State))
	return out, err
}
