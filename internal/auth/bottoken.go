// Package auth authenticates inbound requests: the shared bot token used by
// the call-control platform and signed tokens for the admin surface.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	// ErrMissingCredentials is returned when no Authorization header is sent.
	ErrMissingCredentials = errors.New("missing Authorization header")

	// ErrBadCredentials is returned when the presented token does not match.
	ErrBadCredentials = errors.New("invalid token")
)

// BotTokenFromHeader extracts the token from an Authorization header value.
// Both "Bearer <token>" and a bare "<token>" are accepted.
func BotTokenFromHeader(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return header[7:]
	}
	return header
}

// CheckBotToken reports whether the Authorization header carries want.
func CheckBotToken(header, want string) error {
	if header == "" {
		return ErrMissingCredentials
	}
	got := BotTokenFromHeader(header)
	if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrBadCredentials
	}
	return nil
}
