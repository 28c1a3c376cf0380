package auth

import (
	"encoding/base64"
	"strings"
)

// BasicToken builds the Authorization value for a client id and secret.
// Both inputs are trimmed before encoding.
func BasicToken(clientID, clientSecret string) string {
	raw := strings.TrimSpace(clientID) + ":" + strings.TrimSpace(clientSecret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}
