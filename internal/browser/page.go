// Package browser exposes the page capability the rest of webpilot drives and
// the session that owns the single live Chromium page.
package browser

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned by lookups that waited out their budget without a
// match.
var ErrNotFound = errors.New("element not found")

// Page is the subset of a live browser tab used by the resolver, the
// dispatcher and the CAPTCHA detector.
//
// WaitFor* methods retry until the timeout elapses and then fail with an
// error wrapping ErrNotFound. Query methods look once and return nil, nil when
// nothing matches.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitIdle(ctx context.Context, timeout time.Duration) error

	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	WaitForText(ctx context.Context, selector string, match TextMatch, timeout time.Duration) (Element, error)
	Query(ctx context.Context, selector string) (Element, error)
	QueryText(ctx context.Context, selector string, match TextMatch) (Element, error)

	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Evaluate(ctx context.Context, js string) (any, error)
	Press(ctx context.Context, key string) error
}

// Element is a handle to a node on the page.
type Element interface {
	Click(ctx context.Context) error
	// Fill replaces the element's value with text.
	Fill(ctx context.Context, text string) error
	// Type sends text one character at a time, sleeping delay between
	// characters.
	Type(ctx context.Context, text string, delay time.Duration) error
	Press(ctx context.Context, key string) error
	Attribute(ctx context.Context, name string) (string, bool, error)
	Query(ctx context.Context, selector string) (Element, error)
	Box(ctx context.Context) (*Box, error)
}

// Box is an element's bounding rectangle in CSS pixels.
type Box struct {
	X, Y, Width, Height float64
}

// Center returns the midpoint of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// TextMatch selects elements by their visible text.
type TextMatch struct {
	Text string
	// Exact requires the whole trimmed text to equal Text (case-sensitive).
	// Otherwise Text is a case-insensitive substring.
	Exact bool
}

// Exact matches the whole trimmed text.
func Exact(text string) TextMatch { return TextMatch{Text: text, Exact: true} }

// Contains matches a case-insensitive substring.
func Contains(text string) TextMatch { return TextMatch{Text: text} }

// Regexp renders the match as the source and flags of a JavaScript RegExp.
func (m TextMatch) Regexp() (source, flags string) {
	quoted := regexp.QuoteMeta(m.Text)
	if m.Exact {
		return `^\s*` + quoted + `\s*$`, ""
	}
	return quoted, "i"
}

// Matches applies the match to s the same way the page would.
func (m TextMatch) Matches(s string) bool {
	if m.Exact {
		return strings.TrimSpace(s) == m.Text
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(m.Text))
}

func (m TextMatch) String() string {
	if m.Exact {
		return "text=" + m.Text
	}
	return "text~" + m.Text
}
