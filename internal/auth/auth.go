// Package auth issues and verifies bearer tokens and checks the admin
// passphrase.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrInvalidPassphrase = errors.New("invalid passphrase")
	ErrAdminDisabled     = errors.New("admin unlock is not configured")
)

const issuer = "codequest"

// Claims are the token claims
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller
type Identity struct {
	UserID    string
	Admin     bool
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. A non-positive ttl defaults to one week.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for the user
func (i *Issuer) Issue(userID string, admin bool) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses a token and returns the identity it carries
func (i *Issuer) Verify(token string) (*Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Identity{
		UserID:    claims.Subject,
		Admin:     claims.Admin,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// HashPassphrase returns a bcrypt hash for the admin passphrase
func HashPassphrase(passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("%w: empty passphrase", ErrInvalidPassphrase)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassphrase compares a passphrase against a bcrypt hash
func CheckPassphrase(hash, passphrase string) error {
	if hash == "" {
		return ErrAdminDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passphrase)); err != nil {
		return ErrInvalidPassphrase
	}
	return nil
}

// NewUserID returns a random opaque user identifier
func NewUserID() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "u_" + base64.RawURLEncoding.EncodeToString(b), nil
}
