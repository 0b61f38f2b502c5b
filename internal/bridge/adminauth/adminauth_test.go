package adminauth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/adminauth"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/adminauth/memory"
)

func seedAdmin(t *testing.T, store *memory.Store, username, password string) {
	t.Helper()
	hash, err := adminauth.HashPassword(password)
	require.NoError(t, err)
	store.Seed(adminauth.AdminUser{ID: "admin-1", Username: username, PasswordHash: hash, Role: "admin"})
}

func TestLogin_SucceedsWithCorrectPassword(t *testing.T) {
	store := memory.New()
	seedAdmin(t, store, "root", "hunter2")
	auth := adminauth.New(store, "test-secret-key", time.Hour)

	token, user, err := auth.Login(context.Background(), "root", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "admin-1", user.ID)

	claims, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestLogin_RejectsWrongPassword(t *testing.T) {
	store := memory.New()
	seedAdmin(t, store, "root", "hunter2")
	auth := adminauth.New(store, "test-secret-key", time.Hour)

	_, _, err := auth.Login(context.Background(), "root", "wrong-password")
	assert.Error(t, err)
}

func TestLogin_RejectsUnknownUsername(t *testing.T) {
	store := memory.New()
	auth := adminauth.New(store, "test-secret-key", time.Hour)

	_, _, err := auth.Login(context.Background(), "ghost", "whatever")
	assert.Error(t, err)
}

func TestVerify_RejectsTokenSignedWithDifferentSecret(t *testing.T) {
	store := memory.New()
	seedAdmin(t, store, "root", "hunter2")
	issuer := adminauth.New(store, "secret-a", time.Hour)
	verifier := adminauth.New(store, "secret-b", time.Hour)

	token, _, err := issuer.Login(context.Background(), "root", "hunter2")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	store := memory.New()
	seedAdmin(t, store, "root", "hunter2")
	auth := adminauth.New(store, "test-secret-key", -time.Minute)

	token, _, err := auth.Login(context.Background(), "root", "hunter2")
	require.NoError(t, err)

	_, err = auth.Verify(token)
	assert.Error(t, err)
}
