package security

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// NewID creates a random identifier for sessions, requests and invitations
func NewID() string {
	return uuid.New().String()
}

// NewInvitationCode creates an opaque code safe to put in a URL
func NewInvitationCode() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
