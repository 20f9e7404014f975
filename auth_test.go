package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T) (*Auth, *DB) {
	t.Helper()
	old := bcryptCost
	bcryptCost = bcrypt.MinCost
	t.Cleanup(func() { bcryptCost = old })
	db := openTestDB(t)
	return NewAuth(db, "test-secret", zerolog.Nop()), db
}

func TestRegisterAndLogin(t *testing.T) {
	a, _ := newTestAuth(t)

	id, token, err := a.Register("  alice ", "hunter2")
	require.NoError(t, err)
	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, accountKey(id), claims.Subject)
	assert.Equal(t, "alice", claims.Name)

	_, _, err = a.Register("alice", "hunter2")
	assert.EqualError(t, err, "username already taken")
	_, _, err = a.Register("a", "hunter2")
	assert.Error(t, err)
	_, _, err = a.Register("bob", "abc")
	assert.Error(t, err)

	loginID, token, err := a.Login("alice", "hunter2", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, id, loginID)
	_, err = a.ValidateToken(token)
	assert.NoError(t, err)

	_, _, err = a.Login("alice", "wrong", "1.2.3.4")
	assert.ErrorIs(t, err, ErrBadLogin)
	_, _, err = a.Login("nobody", "hunter2", "1.2.3.4")
	assert.ErrorIs(t, err, ErrBadLogin)
}

func TestLoginRateLimit(t *testing.T) {
	a, _ := newTestAuth(t)
	for i := 0; i < maxLoginAttempts; i++ {
		_, _, err := a.Login("nobody", "x", "5.6.7.8")
		require.ErrorIs(t, err, ErrBadLogin)
	}
	_, _, err := a.Login("nobody", "x", "5.6.7.8")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, _, err = a.Login("nobody", "x", "9.9.9.9")
	assert.ErrorIs(t, err, ErrBadLogin, "limits are per address")
}

func TestValidateTokenRejects(t *testing.T) {
	a, _ := newTestAuth(t)
	other := NewAuth(nil, "other-secret", zerolog.Nop())

	forged, err := other.IssueToken("1", "mallory")
	require.NoError(t, err)
	_, err = a.ValidateToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub, err := a.IssueToken("", "ghost")
	require.NoError(t, err)
	_, err = a.ValidateToken(noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = a.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.ValidateToken(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSecretPersistsInSettings(t *testing.T) {
	_, db := newTestAuth(t)
	first := NewAuth(db, "", zerolog.Nop())
	token, err := first.IssueToken("1", "alice")
	require.NoError(t, err)

	second := NewAuth(db, "", zerolog.Nop())
	_, err = second.ValidateToken(token)
	assert.NoError(t, err)
	assert.Len(t, db.GetSetting("jwt_secret"), 64)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	_, err := BearerToken(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Bearer abc")
	tok, err := BearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	r.Header.Set("Authorization", "Basic abc")
	_, err = BearerToken(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r = httptest.NewRequest("GET", "/ws?token=xyz", nil)
	tok, err = BearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)
}

func TestAuthorizeAllocator(t *testing.T) {
	a, _ := newTestAuth(t)
	player, err := a.IssueToken("1", "alice")
	require.NoError(t, err)

	withToken := func(tok string) *http.Request {
		r := httptest.NewRequest("POST", "/match/start", nil)
		if tok != "" {
			r.Header.Set("Authorization", "Bearer "+tok)
		}
		return r
	}

	assert.ErrorIs(t, a.AuthorizeAllocator(withToken("")), ErrMissingToken)
	assert.ErrorIs(t, a.AuthorizeAllocator(withToken("anything")), ErrNotAllocator, "no key configured")

	a.SetAllocatorKey("s3cret-allocator")
	assert.ErrorIs(t, a.AuthorizeAllocator(withToken(player)), ErrNotAllocator)
	assert.ErrorIs(t, a.AuthorizeAllocator(withToken("s3cret")), ErrNotAllocator)
	assert.NoError(t, a.AuthorizeAllocator(withToken("s3cret-allocator")))
}
