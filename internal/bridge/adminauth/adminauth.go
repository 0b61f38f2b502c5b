// Package adminauth implements admin login and JWT issuance/verification
// using jwt.ParseWithClaims with HS256, since the admin surface has a
// single trusted issuer rather than cross-service federation.
package adminauth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
)

// Claims is the admin JWT payload (sub, role, exp, iat).
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// AdminUser is a durable admin account.
type AdminUser struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}

// Store looks up and updates admin accounts.
type Store interface {
	GetByUsername(ctx context.Context, username string) (*AdminUser, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// Authenticator issues and verifies admin JWTs and checks credentials.
type Authenticator struct {
	store     Store
	secretKey []byte
	expiry    time.Duration
}

// New constructs an Authenticator. secretKey signs/verifies HS256
// tokens; expiry is the token lifetime.
func New(store Store, secretKey string, expiry time.Duration) *Authenticator {
	return &Authenticator{store: store, secretKey: []byte(secretKey), expiry: expiry}
}

// Login fetches the admin by username, verifies the password, updates
// last_login, and issues a JWT on success.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, *AdminUser, error) {
	user, err := a.store.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, apperr.Unauthorized("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperr.Unauthorized("invalid username or password")
	}

	now := time.Now().UTC()
	if err := a.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		return "", nil, err
	}

	token, err := a.issue(user, now)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (a *Authenticator) issue(user *AdminUser, now time.Time) (string, error) {
	claims := Claims{
		Subject: user.ID,
		Role:    user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", apperr.Internal("sign admin jwt: %v", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token, returning its Claims.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Unauthorized("unexpected signing method %v", token.Header["alg"])
		}
		return a.secretKey, nil
	})
	if err != nil {
		return nil, apperr.Unauthorized("invalid admin token: %v", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperr.Unauthorized("invalid admin token claims")
	}
	return claims, nil
}

// HashPassword bcrypt-hashes a plaintext admin password for storage.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Internal("hash admin password: %v", err)
	}
	return string(hash), nil
}
