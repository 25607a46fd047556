package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// requestIdle is how long the network must stay quiet before a page counts as
// settled.
const requestIdle = 500 * time.Millisecond

var keys = map[string]input.Key{
	"Enter":     input.Enter,
	"Tab":       input.Tab,
	"Escape":    input.Escape,
	"Backspace": input.Backspace,
}

func lookupKey(name string) (input.Key, error) {
	k, ok := keys[name]
	if !ok {
		return 0, fmt.Errorf("unsupported key %q", name)
	}
	return k, nil
}

// rodPage adapts a rod page to Page.
type rodPage struct {
	page *rod.Page
}

func newRodPage(p *rod.Page) *rodPage {
	return &rodPage{page: p}
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	return p.page.Context(ctx).Navigate(url)
}

// WaitIdle waits for the load event and then for the network to go quiet.
// The whole wait shares one timeout. Pages that never stop polling are not an
// error: once the load event fired, running out of time while waiting for
// quiet returns nil.
func (p *rodPage) WaitIdle(ctx context.Context, timeout time.Duration) error {
	pg := p.page.Context(ctx).Timeout(timeout)
	defer pg.CancelTimeout()

	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	pg.WaitRequestIdle(requestIdle, nil, nil, nil)()
	return ctx.Err()
}

func (p *rodPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	pg := p.page.Context(ctx).Timeout(timeout)
	defer pg.CancelTimeout()

	el, err := pg.Element(selector)
	if err != nil {
		return nil, lookupError(ctx, selector, err)
	}
	return &rodElement{el: el.CancelTimeout()}, nil
}

// innermostText finds the first element under selector whose text matches and
// that has no matching descendant. A wrapper whose text comes from one child
// (a form around its only button, or body on a sparse page) never beats the
// child. Text follows rod's helper: value or placeholder for form fields,
// innerText otherwise.
const innermostText = `(selector, source, flags) => {
	const re = new RegExp(source, flags)
	const text = (e) => {
		switch (e.tagName) {
		case "INPUT":
		case "TEXTAREA":
			return e.value || e.placeholder || ""
		case "SELECT":
			return Array.from(e.selectedOptions).map((o) => o.innerText).join()
		default:
			return e.innerText || ""
		}
	}
	const hits = Array.from(document.querySelectorAll(selector)).filter((e) => re.test(text(e)))
	return hits.find((e) => !hits.some((o) => o !== e && e.contains(o))) || null
}`

func byText(selector string, match TextMatch) *rod.EvalOptions {
	source, flags := match.Regexp()
	return rod.Eval(innermostText, selector, source, flags)
}

func (p *rodPage) WaitForText(ctx context.Context, selector string, match TextMatch, timeout time.Duration) (Element, error) {
	pg := p.page.Context(ctx).Timeout(timeout)
	defer pg.CancelTimeout()

	el, err := pg.ElementByJS(byText(selector, match))
	if err != nil {
		return nil, lookupError(ctx, selector+" "+match.String(), err)
	}
	return &rodElement{el: el.CancelTimeout()}, nil
}

func (p *rodPage) Query(ctx context.Context, selector string) (Element, error) {
	found, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) QueryText(ctx context.Context, selector string, match TextMatch) (Element, error) {
	el, err := p.page.Context(ctx).Sleeper(rod.NotFoundSleeper).ElementByJS(byText(selector, match))
	if err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *rodPage) Content(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Evaluate runs a JavaScript function expression such as `() => document.title`.
func (p *rodPage) Evaluate(ctx context.Context, js string) (any, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, err
	}
	return res.Value.Val(), nil
}

func (p *rodPage) Press(ctx context.Context, key string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}
	return p.page.Context(ctx).Keyboard.Press(k)
}

// lookupError turns a retry loop that ran out of time into ErrNotFound while
// leaving caller cancellation visible.
func lookupError(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

// rodElement adapts a rod element to Element.
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Fill(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select text: %w", err)
	}
	return el.Input(text)
}

func (e *rodElement) Type(ctx context.Context, text string, delay time.Duration) error {
	el := e.el.Context(ctx)
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return err
		}
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

func (e *rodElement) Press(ctx context.Context, key string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}
	return e.el.Context(ctx).Type(k)
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Query(ctx context.Context, selector string) (Element, error) {
	found, el, err := e.el.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rodElement{el: el}, nil
}

func (e *rodElement) Box(ctx context.Context) (*Box, error) {
	shape, err := e.el.Context(ctx).Shape()
	if err != nil {
		return nil, err
	}
	rect := shape.Box()
	if rect == nil {
		return nil, fmt.Errorf("element has no shape")
	}
	return &Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}
