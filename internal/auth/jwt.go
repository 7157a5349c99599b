// Package auth identifies the viewer of a request from its bearer token.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "admin"

var ErrInvalidToken = errors.New("invalid token")

// UserClaims mirrors the access tokens minted by the identity service.
type UserClaims struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Viewer is the authenticated user behind a request.
type Viewer struct {
	ID       int64
	Username string
	Role     string
}

func (v Viewer) IsAdmin() bool { return v.Role == RoleAdmin }

// Verifier checks RS256 access tokens against the identity service public key.
// It never signs.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewVerifier parses a PEM public key. An empty issuer accepts any issuer.
func NewVerifier(publicKeyPEM []byte, issuer string) (*Verifier, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &Verifier{publicKey: pubKey, issuer: issuer}, nil
}

// Validate checks signature and expiry and returns the viewer named by the
// token subject, which must be a numeric user id.
func (v *Verifier) Validate(tokenString string) (Viewer, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (any, error) {
		// Rejects "none" and HMAC tokens signed with the public key.
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return Viewer{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return Viewer{}, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Viewer{}, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, claims.Subject)
	}

	return Viewer{ID: id, Username: claims.Username, Role: claims.Role}, nil
}
