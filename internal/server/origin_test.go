package server

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func requestWithOrigin(origin string) *http.Request {
	r, _ := http.NewRequest(http.MethodGet, "http://localhost:8080/chat", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicyAllowsConfigured(t *testing.T) {
	p := newOriginPolicy([]string{"http://localhost:8080", "HTTPS://Example.COM"}, zerolog.Nop())

	assert.True(t, p.check(requestWithOrigin("http://localhost:8080")))
	assert.True(t, p.check(requestWithOrigin("https://example.com")), "origin matching is case-insensitive")
	assert.False(t, p.check(requestWithOrigin("http://evil.example.com")))
}

func TestOriginPolicyRejectsMissingOrMalformed(t *testing.T) {
	p := newOriginPolicy([]string{"http://localhost:8080"}, zerolog.Nop())

	assert.False(t, p.check(requestWithOrigin("")))
	assert.False(t, p.check(requestWithOrigin("not a url")))
	assert.False(t, p.check(requestWithOrigin("nohost://")))
}

func TestOriginPolicyWildcard(t *testing.T) {
	p := newOriginPolicy([]string{"*"}, zerolog.Nop())

	assert.True(t, p.check(requestWithOrigin("http://anything.example.org")))
	assert.False(t, p.check(requestWithOrigin("")), "wildcard still requires an Origin header")
}

func TestOriginPolicySkipsInvalidConfigEntries(t *testing.T) {
	p := newOriginPolicy([]string{"", "   ", "%%%bad%%%", "http://ok.example.com"}, zerolog.Nop())

	assert.True(t, p.check(requestWithOrigin("http://ok.example.com")))
	assert.False(t, p.check(requestWithOrigin("http://bad.example.com")))
}
