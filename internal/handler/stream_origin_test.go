package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.com", true},
		{"https://example.com", true},
		{"http://example.com.evil.net", false},
		{"http://evil.net/http://example.com", false},
		{"http://example.com:8080", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "http://example.com/api/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		require.Equal(t, tt.want, sameOrigin(r), tt.origin)
	}
}
