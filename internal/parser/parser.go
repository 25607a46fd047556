// Package parser turns short natural-language instructions into an action and
// its parameters using a fixed, ordered grammar.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/v0xg/webpilot/internal/actions"
	"github.com/v0xg/webpilot/internal/browsererr"
)

// Rule pairs a pattern with the action it selects and the extractor that
// builds parameters from the pattern's submatches.
type Rule struct {
	Action  actions.Name
	Pattern *regexp.Regexp
	Example string
	extract func(m []string) actions.Params
}

// Quote characters accepted around values.
var quotes = strings.NewReplacer(
	"{q}", `["'“”]`,
	"{nq}", `[^"'“”]`,
	"{domain}", `[a-z0-9.-]+\.[a-z]{2,}(?::\d+)?`,
)

func rule(action actions.Name, pattern, example string, extract func(m []string) actions.Params) Rule {
	return Rule{
		Action:  action,
		Pattern: regexp.MustCompile(`(?i)^` + quotes.Replace(pattern) + `$`),
		Example: example,
		extract: extract,
	}
}

// Quoted rules sit above their bare counterparts; swapping them lets the bare
// rules swallow quoted input.
var rules = []Rule{
	rule(actions.Navigate,
		`(?:go to|navigate to|open) (?:the )?(?:website |site |page )?(?:at )?((?:https?://)?{domain}(?:/\S*)?)`,
		"Go to github.com",
		func(m []string) actions.Params { return actions.Params{"url": withScheme(m[1])} }),

	rule(actions.Click,
		`click(?: on)? (?:the )?(?:(?:button|link|element)(?: (?:with|that says|containing))? )?{q}({nq}+){q}(?: (?:button|link|element))?`,
		`Click on "Sign In"`,
		func(m []string) actions.Params { return actions.Params{"text": m[1]} }),
	rule(actions.Click,
		`click(?: on)? (?:the )?([\w -]+?) (?:button|link|element)`,
		"Click on the login button",
		func(m []string) actions.Params { return actions.Params{"text": m[1]} }),

	rule(actions.Type,
		`(?:type|enter|input|fill in) {q}({nq}+){q} (?:in(?:to)?|on) (?:the )?([\w -]+?)(?: field| input| box)?`,
		`Type "hello world" into the search field`,
		func(m []string) actions.Params { return actions.Params{"text": m[1], "field": m[2]} }),
	rule(actions.Type,
		`(?:type|enter|input|fill in) ([^"'“”\s]+(?: [^"'“”\s]+)*?) (?:in(?:to)?|on) (?:the )?([\w -]+?)(?: field| input| box)?`,
		"Enter my_username into the username field",
		func(m []string) actions.Params { return actions.Params{"text": m[1], "field": m[2]} }),

	rule(actions.Submit,
		`(?:submit|send)(?: the)?(?: form)?`,
		"Submit the form",
		func(m []string) actions.Params { return actions.Params{} }),

	rule(actions.Wait,
		`wait (?:for )?(\d*\.?\d+) seconds?`,
		"Wait 5 seconds",
		func(m []string) actions.Params {
			secs, _ := strconv.ParseFloat(m[1], 64)
			return actions.Params{"seconds": secs}
		}),
	rule(actions.WaitForElement,
		`wait for (?:the )?([\w -]+?)(?: to (?:appear|load))?`,
		"Wait for results to load",
		func(m []string) actions.Params { return actions.Params{"element": m[1]} }),

	rule(actions.Screenshot,
		`(?:take a |capture a |capture |grab a )?screenshot`,
		"Take a screenshot",
		func(m []string) actions.Params { return actions.Params{} }),

	rule(actions.Login,
		`log(?: ?in)?(?: to| into) ({domain})(?: with username {q}({nq}+){q} and password {q}({nq}+){q})?`,
		`Login to github.com with username "myuser" and password "mypass"`,
		func(m []string) actions.Params {
			return actions.Params{"website": m[1], "username": optional(m[2]), "password": optional(m[3])}
		}),

	rule(actions.Search,
		`search (?:for )?{q}({nq}+){q} (?:on|in) ({domain})`,
		`Search for "python automation" on google.com`,
		func(m []string) actions.Params { return actions.Params{"query": m[1], "website": m[2]} }),
}

// Rules returns the grammar in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Parse matches text against the grammar. The first rule matching the whole
// normalized text decides the action; no rule matching is an InvalidCommand.
func Parse(text string) (actions.Name, actions.Params, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return "", nil, browsererr.InvalidCommand("Could not understand command: empty input", text)
	}

	for _, r := range rules {
		m := r.Pattern.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		return r.Action, r.extract(m), nil
	}

	return "", nil, browsererr.InvalidCommand("Could not understand command: "+normalized, text)
}

// Normalize trims whitespace and one trailing sentence mark. Case folding is
// done by the rules themselves so captured values keep their casing.
func Normalize(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}

// withScheme defaults a bare domain to https.
func withScheme(url string) string {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return url
	}
	return "https://" + url
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
