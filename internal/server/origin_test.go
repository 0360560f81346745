package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

// TestOriginPolicy verifies normalisation and matching of configured origins.
func TestOriginPolicy(t *testing.T) {
	p := newOriginPolicy([]string{" HTTP://Example.com ", "not a url", "", "https://chat.example.com:8443"}, zap.NewNop())

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"http://example.com", true},
		{"http://EXAMPLE.com", true},
		{"https://example.com", false},
		{"https://chat.example.com:8443", true},
		{"https://chat.example.com", false},
		{"", false},
		{"null", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.allowed, p.checkOrigin(requestWithOrigin(tt.origin)))
		})
	}
	assert.Len(t, p.allowed, 2)
}

// TestOriginPolicyWildcard verifies "*" allows any well-formed origin.
func TestOriginPolicyWildcard(t *testing.T) {
	p := newOriginPolicy([]string{"*"}, zap.NewNop())

	assert.True(t, p.allows(requestWithOrigin("https://anywhere.example")))
	assert.False(t, p.allows(requestWithOrigin("")))
	assert.False(t, p.allows(requestWithOrigin("garbage")))
}

// TestOriginPolicyEmpty verifies an empty allow list refuses everything.
func TestOriginPolicyEmpty(t *testing.T) {
	p := newOriginPolicy(nil, zap.NewNop())
	assert.False(t, p.allows(requestWithOrigin("http://localhost:8080")))
}
