package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoloop/chatsync/pkg/errcode"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("alice", 1, testSecret, 1)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Uid)
	assert.Equal(t, 1, claims.PlatformId)
	assert.Equal(t, "chatsync", claims.Issuer)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("alice", 1, testSecret, 1)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	assert.ErrorIs(t, err, errcode.ErrTokenInvalid)
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	assert.ErrorIs(t, err, errcode.ErrTokenInvalid)
}

func TestValidateToken_Mismatch(t *testing.T) {
	token, err := GenerateToken("alice", 1, testSecret, 1)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret, "bob", 1)
	assert.ErrorIs(t, err, errcode.ErrTokenMismatch)

	_, err = ValidateToken(token, testSecret, "alice", 2)
	assert.ErrorIs(t, err, errcode.ErrTokenMismatch)

	claims, err := ValidateToken(token, testSecret, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Uid)
}
