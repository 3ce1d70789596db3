package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkghttp "github.com/BradenHooton/roster/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	resolver := pkghttp.NewIPResolver([]string{"10.0.0.0/8", "127.0.0.1/32"})

	assert.Equal(t, "203.0.113.10", resolver.ClientIP(req))
}

func TestClientIP_TrustedProxy(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"forwarded for, first valid", "10.0.0.5:1234", "garbage, 198.51.100.7, 10.0.0.1", "", "198.51.100.7"},
		{"real ip fallback", "10.0.0.5:1234", "", "198.51.100.9", "198.51.100.9"},
		{"no headers", "10.0.0.5:1234", "", "", "10.0.0.5"},
		{"ipv6 proxy", "[fd00::1]:443", "2001:db8::5", "", "2001:db8::5"},
	}

	resolver := pkghttp.NewIPResolver([]string{"10.0.0.0/8", "fd00::/8", "not-a-cidr"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			assert.Equal(t, tt.want, resolver.ClientIP(req))
		})
	}
}

func TestClientIP_NilResolver(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	var resolver *pkghttp.IPResolver
	assert.Equal(t, "203.0.113.10", resolver.ClientIP(req))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"ann@x.com"}`))
	require.NoError(t, pkghttp.DecodeJSON(w, req, &dst))
	assert.Equal(t, "ann@x.com", dst.Email)

	req = httptest.NewRequest("POST", "/", strings.NewReader(""))
	assert.EqualError(t, pkghttp.DecodeJSON(w, req, &dst), "request body is empty")

	req = httptest.NewRequest("POST", "/", strings.NewReader("{not json"))
	assert.EqualError(t, pkghttp.DecodeJSON(w, req, &dst), "invalid request body")
}
