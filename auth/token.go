package auth

import (
	"chat-router/domain"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signingKey signs tokens minted by GenerateToken. In production this
// should come from an environment variable or a secret manager.
var signingKey = []byte("my_strong_and_long_secret_key_2026")

// ExtractUserInfo decodes the payload of a bearer token into sender
// identity. The token is decoded, not verified: an upstream collaborator
// owns validation, and a missing or malformed credential degrades the
// connection to anonymous rather than rejecting it.
func ExtractUserInfo(token string) (*domain.UserInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("no credential provided")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decoding credential: %w", err)
	}

	sub, okSub := claims["sub"].(string)
	name, okName := claims["name"].(string)
	if !okSub || !okName {
		return nil, fmt.Errorf("credential payload missing sub or name")
	}
	return &domain.UserInfo{Subject: sub, DisplayName: name}, nil
}

// GenerateToken creates a signed JWT carrying the subject and display
// name the router reads back. Used by the terminal client and the tests.
func GenerateToken(subject, name string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"name": name,
		"iat":  jwt.NewNumericDate(now),
		"exp":  jwt.NewNumericDate(now.Add(duration)),
		"iss":  "chat-router",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}
