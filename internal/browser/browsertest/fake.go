// Package browsertest provides in-memory Page, Element and session fakes.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/v0xg/webpilot/internal/browser"
)

// Call records one lookup made against a Page.
type Call struct {
	Method   string
	Selector string
	Match    browser.TextMatch
	Timeout  time.Duration
}

type textEntry struct {
	selector string
	text     string
	el       *Element
}

// Page is a scripted browser.Page. Lookups never sleep: a WaitFor* miss
// fails immediately with browser.ErrNotFound and records the budget it was
// given.
type Page struct {
	mu sync.Mutex

	selectors map[string]*Element
	texts     []textEntry

	URLValue   string
	TitleValue string
	HTML       string
	Shot       []byte
	EvalResult any

	NavigateErr   error
	IdleErr       error
	ScreenshotErr error
	ContentErr    error

	// OnLookup runs before every lookup and may mutate the page.
	OnLookup func(p *Page, c Call)
	// OnNavigate runs after a successful navigation.
	OnNavigate func(p *Page, url string)

	calls       []Call
	navigations []string
	pressed     []string
	idleWaits   []time.Duration
	shots       int
}

var _ browser.Page = (*Page)(nil)

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	return &Page{
		selectors: map[string]*Element{},
		URLValue:  "about:blank",
	}
}

// Add registers el under a CSS selector.
func (p *Page) Add(selector string, el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectors[selector] = el
	return el
}

// AddLocked is Add for use inside hooks.
func (p *Page) AddLocked(selector string, el *Element) *Element {
	p.selectors[selector] = el
	return el
}

// AddText registers el as matching selector with the given visible text.
func (p *Page) AddText(selector, text string, el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, textEntry{selector: selector, text: text, el: el})
	return el
}

// Remove drops every element registered under selector.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(selector)
}

// RemoveLocked is Remove for use inside OnLookup and OnNavigate hooks, which
// run with the page lock held.
func (p *Page) RemoveLocked(selector string) {
	p.removeLocked(selector)
}

func (p *Page) removeLocked(selector string) {
	delete(p.selectors, selector)
	kept := p.texts[:0]
	for _, e := range p.texts {
		if e.selector != selector {
			kept = append(kept, e)
		}
	}
	p.texts = kept
}

// Clear drops every registered element.
func (p *Page) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectors = map[string]*Element{}
	p.texts = nil
}

// Calls returns the lookups made so far.
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Navigations returns the URLs navigated to.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// Pressed returns the keys pressed on the page itself.
func (p *Page) Pressed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.pressed...)
}

// IdleWaits returns the timeouts passed to WaitIdle.
func (p *Page) IdleWaits() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.idleWaits...)
}

// Screenshots returns how many captures were taken.
func (p *Page) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shots
}

func (p *Page) record(c Call) {
	p.calls = append(p.calls, c)
	if p.OnLookup != nil {
		p.OnLookup(p, c)
	}
}

func (p *Page) bySelector(selector string) browser.Element {
	if el, ok := p.selectors[selector]; ok {
		return el
	}
	return nil
}

func (p *Page) byText(selector string, m browser.TextMatch) browser.Element {
	for _, e := range p.texts {
		if e.selector == selector && m.Matches(e.text) {
			return e.el
		}
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.navigations = append(p.navigations, url)
	p.URLValue = url
	if p.OnNavigate != nil {
		p.OnNavigate(p, url)
	}
	return nil
}

func (p *Page) WaitIdle(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idleWaits = append(p.idleWaits, timeout)
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.IdleErr
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Method: "WaitForSelector", Selector: selector, Timeout: timeout})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if el := p.bySelector(selector); el != nil {
		return el, nil
	}
	return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
}

func (p *Page) WaitForText(ctx context.Context, selector string, match browser.TextMatch, timeout time.Duration) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Method: "WaitForText", Selector: selector, Match: match, Timeout: timeout})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if el := p.byText(selector, match); el != nil {
		return el, nil
	}
	return nil, fmt.Errorf("%w: %s %s", browser.ErrNotFound, selector, match)
}

func (p *Page) Query(ctx context.Context, selector string) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Method: "Query", Selector: selector})
	return p.bySelector(selector), ctx.Err()
}

func (p *Page) QueryText(ctx context.Context, selector string, match browser.TextMatch) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(Call{Method: "QueryText", Selector: selector, Match: match})
	return p.byText(selector, match), ctx.Err()
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URLValue, ctx.Err()
}

func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.TitleValue, ctx.Err()
}

func (p *Page) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ContentErr != nil {
		return "", p.ContentErr
	}
	return p.HTML, ctx.Err()
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shots++
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return append([]byte(nil), p.Shot...), ctx.Err()
}

func (p *Page) Evaluate(ctx context.Context, js string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.EvalResult, ctx.Err()
}

func (p *Page) Press(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pressed = append(p.pressed, key)
	return ctx.Err()
}

// Element is a scripted browser.Element.
type Element struct {
	mu sync.Mutex

	Name     string
	Attrs    map[string]string
	Children map[string]*Element
	Rect     *browser.Box

	ClickErr error
	FillErr  error
	TypeErr  error
	PressErr error
	OnClick  func()

	clicks  int
	value   string
	fills   []string
	delays  []time.Duration
	pressed []string
}

var _ browser.Element = (*Element)(nil)

// NewElement returns an element with the given debug name.
func NewElement(name string) *Element {
	return &Element{Name: name, Attrs: map[string]string{}, Children: map[string]*Element{}}
}

// WithAttr sets an attribute and returns the element.
func (e *Element) WithAttr(name, value string) *Element {
	e.Attrs[name] = value
	return e
}

// WithChild registers a nested element under selector and returns e.
func (e *Element) WithChild(selector string, child *Element) *Element {
	e.Children[selector] = child
	return e
}

func (e *Element) String() string { return "element(" + e.Name + ")" }

// Clicks returns how often the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Value returns the text the element holds after fills and typing.
func (e *Element) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Fills returns every value passed to Fill.
func (e *Element) Fills() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.fills...)
}

// Delays returns the per-character delays used by Type.
func (e *Element) Delays() []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]time.Duration(nil), e.delays...)
}

// Pressed returns the keys pressed on the element.
func (e *Element) Pressed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.pressed...)
}

func (e *Element) Click(ctx context.Context) error {
	e.mu.Lock()
	if e.ClickErr != nil {
		e.mu.Unlock()
		return e.ClickErr
	}
	e.clicks++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ctx.Err()
}

func (e *Element) Fill(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FillErr != nil {
		return e.FillErr
	}
	e.fills = append(e.fills, text)
	e.value = text
	return ctx.Err()
}

func (e *Element) Type(ctx context.Context, text string, delay time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.TypeErr != nil {
		return e.TypeErr
	}
	e.value += text
	e.delays = append(e.delays, delay)
	return ctx.Err()
}

func (e *Element) Press(ctx context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.PressErr != nil {
		return e.PressErr
	}
	e.pressed = append(e.pressed, key)
	return ctx.Err()
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.Attrs[name]
	return v, ok, ctx.Err()
}

func (e *Element) Query(ctx context.Context, selector string) (browser.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if child, ok := e.Children[selector]; ok {
		return child, ctx.Err()
	}
	return nil, ctx.Err()
}

func (e *Element) Box(ctx context.Context) (*browser.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Rect == nil {
		return nil, fmt.Errorf("%s has no box", e)
	}
	b := *e.Rect
	return &b, ctx.Err()
}

// Session is an in-memory stand-in for browser.Session.
type Session struct {
	mu sync.Mutex

	PageValue *Page
	InitErr   error

	initialized bool
	inits       int
	closes      int
}

// NewSession returns an uninitialized session serving page.
func NewSession(page *Page) *Session {
	return &Session{PageValue: page}
}

func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	s.inits++
	if s.InitErr != nil {
		return s.InitErr
	}
	s.initialized = true
	return ctx.Err()
}

func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Session) Page() browser.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || s.PageValue == nil {
		return nil
	}
	return s.PageValue
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		s.closes++
	}
	s.initialized = false
}

func (s *Session) Reset(ctx context.Context) error {
	s.Close()
	return s.Initialize(ctx)
}

func (s *Session) Status(ctx context.Context) browser.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := browser.Status{Initialized: s.initialized, Headless: true}
	if s.initialized && s.PageValue != nil {
		st.URL, _ = s.PageValue.URL(ctx)
		st.Title, _ = s.PageValue.Title(ctx)
	}
	return st
}

// Inits returns how many initialization attempts were made.
func (s *Session) Inits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits
}

// Closes returns how many live sessions were closed.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
