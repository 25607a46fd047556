// Package actions holds the closed vocabulary of browser actions and the
// parameter names each one accepts.
package actions

import (
	"sort"

	"github.com/v0xg/webpilot/internal/browsererr"
)

// Name is a symbolic action name.
type Name string

const (
	Navigate       Name = "navigate"
	Click          Name = "click"
	Type           Name = "type"
	Submit         Name = "submit"
	Wait           Name = "wait"
	WaitForElement Name = "wait_for_element"
	Screenshot     Name = "screenshot"
	Login          Name = "login"
	Search         Name = "search"
)

// Spec describes the parameters of one action.
type Spec struct {
	Name        Name
	Required    []string
	Optional    []string
	Description string
}

var registry = []Spec{
	{Name: Navigate, Required: []string{"url"}, Description: "Open a URL, defaulting to https"},
	{Name: Click, Required: []string{"text"}, Description: "Click the element identified by text"},
	{Name: Type, Required: []string{"text", "field"}, Description: "Type text into a field"},
	{Name: Submit, Description: "Submit the current form"},
	{Name: Wait, Required: []string{"seconds"}, Description: "Pause for a number of seconds"},
	{Name: WaitForElement, Required: []string{"element"}, Optional: []string{"timeout"}, Description: "Wait until an element appears"},
	{Name: Screenshot, Optional: []string{"max_width"}, Description: "Capture the current page"},
	{Name: Login, Required: []string{"website"}, Optional: []string{"username", "password"}, Description: "Open a site and sign in"},
	{Name: Search, Required: []string{"query", "website"}, Description: "Search a site for a query"},
}

// All returns the registry in declaration order.
func All() []Spec {
	out := make([]Spec, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the Spec for name.
func Lookup(name Name) (Spec, bool) {
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Validate checks params against s: every required key must be present
// with a non-nil value and no key outside Required/Optional is accepted.
func (s Spec) Validate(params Params) error {
	allowed := make(map[string]bool, len(s.Required)+len(s.Optional))
	for _, k := range s.Required {
		allowed[k] = true
	}
	for _, k := range s.Optional {
		allowed[k] = true
	}

	var missing []string
	for _, k := range s.Required {
		if v, ok := params[k]; !ok || v == nil {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return browsererr.InvalidParams("Missing required parameters for "+string(s.Name), string(s.Name), missing)
	}

	var unexpected []string
	for k := range params {
		if !allowed[k] {
			unexpected = append(unexpected, k)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return browsererr.InvalidParams("Unexpected parameters for "+string(s.Name), string(s.Name), unexpected)
	}
	return nil
}
