package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateToken_Authenticate(t *testing.T) {
	a := NewJWTAuthenticator([]byte("some_secret"))

	token, err := a.CreateToken(42)
	require.NoError(t, err, "expected token creation to succeed")
	require.NotEmpty(t, token, "expected non-empty token")

	userId, err := a.Authenticate(token)
	assert.NoError(t, err, "expected valid token to authenticate")
	assert.Equal(t, 42, userId, "expected user id round-trip")
}

func TestAuthenticate_WrongKey(t *testing.T) {
	a := NewJWTAuthenticator([]byte("some_secret"))
	other := NewJWTAuthenticator([]byte("other_secret"))

	token, err := a.CreateToken(42)
	require.NoError(t, err)

	_, err = other.Authenticate(token)
	assert.Error(t, err, "expected token signed with another key to fail")
}

func TestAuthenticate_Garbage(t *testing.T) {
	a := NewJWTAuthenticator([]byte("some_secret"))

	_, err := a.Authenticate("not-a-token")
	assert.Error(t, err, "expected garbage token to fail")

	_, err = a.Authenticate("")
	assert.Error(t, err, "expected empty token to fail")
}

func TestAuthenticate_Expired(t *testing.T) {
	a := NewJWTAuthenticator([]byte("some_secret"))
	a.expiry = -time.Minute

	token, err := a.CreateToken(42)
	require.NoError(t, err)

	_, err = a.Authenticate(token)
	assert.Error(t, err, "expected expired token to fail")
}

func TestHashPassword_VerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err, "expected hashing to succeed")
	assert.NotEqual(t, "hunter2", hash, "expected password to be hashed")

	assert.True(t, VerifyPassword(hash, "hunter2"), "expected matching password to verify")
	assert.False(t, VerifyPassword(hash, "hunter3"), "expected wrong password to fail")
}
