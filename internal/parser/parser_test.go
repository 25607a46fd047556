package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/v0xg/webpilot/internal/actions"
	"github.com/v0xg/webpilot/internal/browsererr"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input  string
		action actions.Name
		params actions.Params
	}{
		{"Go to github.com", actions.Navigate, actions.Params{"url": "https://github.com"}},
		{"navigate to https://www.google.com", actions.Navigate, actions.Params{"url": "https://www.google.com"}},
		{"Open the website example.org/docs/intro.", actions.Navigate, actions.Params{"url": "https://example.org/docs/intro"}},
		{"open http://localhost.test:8080", actions.Navigate, actions.Params{"url": "http://localhost.test:8080"}},
		{`Click on "Sign In"`, actions.Click, actions.Params{"text": "Sign In"}},
		{`click the button that says "Create account"`, actions.Click, actions.Params{"text": "Create account"}},
		{"Click on the login button", actions.Click, actions.Params{"text": "login"}},
		{"click the sign up link!", actions.Click, actions.Params{"text": "sign up"}},
		{`type "hello world" into the search field`, actions.Type, actions.Params{"text": "hello world", "field": "search"}},
		{`Fill in 'secret' on the password box`, actions.Type, actions.Params{"text": "secret", "field": "password"}},
		{"Enter my_username into the username field", actions.Type, actions.Params{"text": "my_username", "field": "username"}},
		{"type john doe in email", actions.Type, actions.Params{"text": "john doe", "field": "email"}},
		{"Submit the form", actions.Submit, actions.Params{}},
		{"send", actions.Submit, actions.Params{}},
		{"Wait 5 seconds", actions.Wait, actions.Params{"seconds": 5.0}},
		{"wait for 1.5 second", actions.Wait, actions.Params{"seconds": 1.5}},
		{"Wait for results to load", actions.WaitForElement, actions.Params{"element": "results"}},
		{"wait for the cookie banner to appear", actions.WaitForElement, actions.Params{"element": "cookie banner"}},
		{"Take a screenshot", actions.Screenshot, actions.Params{}},
		{"screenshot", actions.Screenshot, actions.Params{}},
		{"Log in to github.com", actions.Login, actions.Params{"website": "github.com", "username": nil, "password": nil}},
		{`Login to github.com with username "myuser" and password "mypass"`, actions.Login,
			actions.Params{"website": "github.com", "username": "myuser", "password": "mypass"}},
		{"log into example.com", actions.Login, actions.Params{"website": "example.com", "username": nil, "password": nil}},
		{`Search for "python automation" on google.com`, actions.Search,
			actions.Params{"query": "python automation", "website": "google.com"}},
		{`search 'rod' in pkg.go.dev`, actions.Search, actions.Params{"query": "rod", "website": "pkg.go.dev"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			action, params, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  Go to example.com.  ": "Go to example.com",
		"click the sign up link!": "click the sign up link",
		"Wait 5 seconds!!":        "Wait 5 seconds!",
		"take a screenshot ...":   "take a screenshot ..",
		"Submit the form . ":      "Submit the form",
		"screenshot":              "screenshot",
		"":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestParseRejectsUnknownText(t *testing.T) {
	for _, input := range []string{"", "   ", "dance the tango", "go to the login page", "click", "search for python"} {
		_, _, err := Parse(input)
		require.Error(t, err, input)
		assert.Equal(t, browsererr.KindInvalidCommand, browsererr.KindOf(err), input)
	}
}

func TestParsedParamsMatchRegistry(t *testing.T) {
	for _, r := range Rules() {
		action, params, err := Parse(r.Example)
		require.NoError(t, err, r.Example)
		assert.Equal(t, r.Action, action, r.Example)

		spec, ok := actions.Lookup(action)
		require.True(t, ok)
		assert.NoError(t, spec.Validate(params), r.Example)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.OneOf(
			rapid.String(),
			rapid.SampledFrom(exampleInputs()),
		).Draw(t, "input")

		a1, p1, err1 := Parse(input)
		a2, p2, err2 := Parse(input)

		if a1 != a2 || (err1 == nil) != (err2 == nil) {
			t.Fatalf("parse of %q not deterministic", input)
		}
		assert.Equal(t, p1, p2)
	})
}

func TestQuotedValuesWinOverBareRules(t *testing.T) {
	value := rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9 ]{0,20}[A-Za-z0-9]`)
	field := rapid.StringMatching(`[a-z]{1,12}`)

	rapid.Check(t, func(t *rapid.T) {
		v := value.Draw(t, "value")
		f := field.Draw(t, "field")

		action, params, err := Parse(`click on "` + v + `"`)
		if err != nil {
			t.Fatalf("quoted click %q: %v", v, err)
		}
		if action != actions.Click || params["text"] != v {
			t.Fatalf("quoted click %q parsed as %s %v", v, action, params)
		}

		action, params, err = Parse(`type "` + v + `" into the ` + f + ` field`)
		if err != nil {
			t.Fatalf("quoted type %q: %v", v, err)
		}
		if action != actions.Type || params["text"] != v || params["field"] != f {
			t.Fatalf("quoted type %q into %q parsed as %s %v", v, f, action, params)
		}
	})
}

func exampleInputs() []string {
	var out []string
	for _, r := range Rules() {
		out = append(out, r.Example)
	}
	return out
}
