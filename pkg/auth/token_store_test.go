package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	store := NewTokenStore(path, nil)

	require.NoError(t, store.Load(), "missing file must not be an error")
	assert.Empty(t, store.Token())

	require.NoError(t, store.Save("tok-abc"))
	assert.Equal(t, "tok-abc", store.Token())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A second store sees the persisted token.
	other := NewTokenStore(path, nil)
	require.NoError(t, other.Load())
	assert.Equal(t, "tok-abc", other.Token())

	require.NoError(t, store.Clear())
	assert.Empty(t, store.Token())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, store.Clear(), "clearing twice must not fail")
}

func TestExpiry(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "token"), nil)

	assert.False(t, store.Valid(), "no token")

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.Save(signedToken(t, expiry)))
	got, ok := store.ExpiresAt()
	require.True(t, ok)
	assert.True(t, got.Equal(expiry))
	assert.True(t, store.Valid())

	require.NoError(t, store.Save(signedToken(t, time.Now().Add(-time.Minute))))
	assert.False(t, store.Valid(), "expired token")
}

func TestOpaqueTokenIsStillUsable(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "token"), nil)
	require.NoError(t, store.Save("not-a-jwt"))

	_, ok := store.ExpiresAt()
	assert.False(t, ok)
	assert.True(t, store.Valid(), "opaque tokens are assumed valid until the server rejects them")
}
