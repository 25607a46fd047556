package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/v0xg/webpilot/internal/browsererr"
)

func TestRegistryCoversClosedActionSet(t *testing.T) {
	want := []Name{Navigate, Click, Type, Submit, Wait, WaitForElement, Screenshot, Login, Search}
	var got []Name
	for _, s := range All() {
		got = append(got, s.Name)
	}
	assert.Equal(t, want, got)

	_, ok := Lookup("fly")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	typeSpec, ok := Lookup(Type)
	require.True(t, ok)

	assert.NoError(t, typeSpec.Validate(Params{"text": "hi", "field": "search"}))

	err := typeSpec.Validate(Params{"text": "hi"})
	require.Error(t, err)
	assert.Equal(t, browsererr.KindInvalidCommand, browsererr.KindOf(err))

	err = typeSpec.Validate(Params{"text": "hi", "field": "q", "colour": "red"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unexpected parameters")

	login, _ := Lookup(Login)
	assert.NoError(t, login.Validate(Params{"website": "github.com", "username": nil, "password": nil}))

	nav, _ := Lookup(Navigate)
	assert.Error(t, nav.Validate(Params{"url": nil}))
}

func TestParamsAccessors(t *testing.T) {
	p := Params{"s": "x", "n": 2.5, "z": nil, "i": 3, "num": "4"}
	assert.Equal(t, "x", p.String("s"))
	assert.Equal(t, "2.5", p.String("n"))
	assert.Equal(t, "", p.String("z"))
	assert.Equal(t, "", p.String("missing"))

	f, ok := p.Float("n")
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)
	f, ok = p.Float("i")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
	f, ok = p.Float("num")
	assert.True(t, ok)
	assert.Equal(t, 4.0, f)
	_, ok = p.Float("s")
	assert.False(t, ok)

	assert.True(t, p.Has("s"))
	assert.False(t, p.Has("z"))
}

func TestMergeCallerValuesWin(t *testing.T) {
	keys := rapid.SampledFrom([]string{"url", "text", "field", "seconds", "website", "query"})

	rapid.Check(t, func(t *rapid.T) {
		parsed := Params{}
		for k, v := range rapid.MapOf(keys, rapid.String()).Draw(t, "parsed") {
			parsed[k] = v
		}
		overrides := Params{}
		for k, v := range rapid.MapOf(keys, rapid.String()).Draw(t, "overrides") {
			overrides[k] = v
		}
		before := len(parsed)

		merged := parsed.Merge(overrides)

		for k, v := range overrides {
			if merged[k] != v {
				t.Fatalf("override %q lost: got %v want %v", k, merged[k], v)
			}
		}
		for k, v := range parsed {
			if _, overridden := overrides[k]; !overridden && merged[k] != v {
				t.Fatalf("parsed %q changed: got %v want %v", k, merged[k], v)
			}
		}
		if len(parsed) != before {
			t.Fatalf("merge mutated its receiver")
		}
	})
}
