package auth

import (
	"encoding/base64"
	"testing"
)

func TestBasicToken(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
		want   string
	}{
		{"trims both inputs", "  a ", "b ", "Basic " + base64.StdEncoding.EncodeToString([]byte("a:b"))},
		{"plain", "client", "secret", "Basic Y2xpZW50OnNlY3JldA=="},
		{"tabs and newlines", "\tclient\n", "\nsecret\t", "Basic Y2xpZW50OnNlY3JldA=="},
		{"empty", "", "", "Basic Og=="},
		{"inner spaces kept", "my client", "s e", "Basic " + base64.StdEncoding.EncodeToString([]byte("my client:s e"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BasicToken(tt.id, tt.secret); got != tt.want {
				t.Errorf("BasicToken(%q, %q) = %q, want %q", tt.id, tt.secret, got, tt.want)
			}
		})
	}
}
