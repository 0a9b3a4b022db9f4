package security_helpers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication failure taxonomy. Every path through the gate ends in one
// of these or in a verified identity.
var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrServerMisconfigured = errors.New("signing secret is not configured")
)

// Identity is the verified caller of a websocket handshake.
type Identity struct {
	UserID string
	Email  string
}

// Handshake carries the raw material a connection attempt presents:
// the explicit token field and the transport Cookie header.
type Handshake struct {
	Token        string
	CookieHeader string
}

// CredentialExtractor pulls a candidate credential out of a handshake.
type CredentialExtractor func(Handshake) (string, bool)

// extractors are tried in priority order; the first hit wins.
var extractors = []CredentialExtractor{
	fromTokenField,
	fromCookieHeader,
}

func fromTokenField(h Handshake) (string, bool) {
	if h.Token == "" {
		return "", false
	}
	return h.Token, true
}

// fromCookieHeader scans the cookie-style key/value list for accessToken
// and percent-decodes it, since browsers store the JWT URL-encoded.
func fromCookieHeader(h Handshake) (string, bool) {
	for _, part := range strings.Split(h.CookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name != "accessToken" || value == "" {
			continue
		}

		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return "", false
		}
		return decoded, true
	}
	return "", false
}

// ExtractCredential runs the extractor chain over a handshake.
func ExtractCredential(h Handshake) (string, bool) {
	for _, extract := range extractors {
		if credential, ok := extract(h); ok {
			return credential, true
		}
	}
	return "", false
}

// VerifyCredential checks the signature and expiry of a credential against
// the server secret and returns the identity it carries. An empty secret
// fails closed; there is no default.
func VerifyCredential(secret []byte, credential string) (Identity, error) {
	if len(secret) == 0 {
		return Identity{}, ErrServerMisconfigured
	}

	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}

		return secret, nil
	})

	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidCredential
	}

	userID, _ := claims["userId"].(string)
	email, _ := claims["email"].(string)

	if userID == "" {
		return Identity{}, fmt.Errorf("%w: no userId claim", ErrInvalidCredential)
	}

	return Identity{UserID: userID, Email: email}, nil
}

// Authenticate is the websocket gate: extract, then verify. Nothing past
// this call runs for a connection that fails it.
func Authenticate(secret []byte, h Handshake) (Identity, error) {
	credential, ok := ExtractCredential(h)
	if !ok {
		return Identity{}, ErrMissingCredential
	}

	return VerifyCredential(secret, credential)
}
