package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTrustedProxyForwarding(t *testing.T) {
	tp := NewTrustedProxies([]string{"10.0.0.0/8", "127.0.0.1"})

	cases := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{"direct untrusted", "203.0.113.9:443", "198.51.100.1", "", "203.0.113.9"},
		{"trusted proxy with xff", "10.1.2.3:443", "198.51.100.1", "", "198.51.100.1"},
		{"trusted proxy xff chain", "10.1.2.3:443", "198.51.100.1, 10.1.2.3", "", "198.51.100.1"},
		{"trusted proxy real-ip fallback", "127.0.0.1:1234", "", "198.51.100.2", "198.51.100.2"},
		{"trusted proxy no headers", "10.1.2.3:443", "", "", "10.1.2.3"},
		{"garbage xff ignored from untrusted", "203.0.113.9:443", "not-an-ip", "", "203.0.113.9"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.realIP != "" {
				r.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := tp.GetClientIPString(r); got != tc.want {
				t.Errorf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTrustedProxyInvalidEntries(t *testing.T) {
	tp := NewTrustedProxies([]string{"not-a-cidr", "10.0.0.0/8"})
	if len(tp.networks) != 1 {
		t.Errorf("networks = %d, want invalid entries dropped", len(tp.networks))
	}
}
