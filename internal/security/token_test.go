package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789abcdef"

func TestTokenCodec_IssueAndParse(t *testing.T) {
	codec, err := NewTokenCodec(testSecret, 15*time.Minute, "lockerhub")
	require.NoError(t, err)

	token, err := codec.Issue("user-1", "alice", true)
	require.NoError(t, err)

	claims, err := codec.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.True(t, claims.IsStaff)
	require.Equal(t, "user-1", claims.Subject)
	require.NotEmpty(t, claims.ID)
}

func TestTokenCodec_Expired(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	codec, err := NewTokenCodec(testSecret, time.Minute, "lockerhub")
	require.NoError(t, err)

	issuer := codec.WithClock(func() time.Time { return base })
	token, err := issuer.Issue("user-1", "alice", false)
	require.NoError(t, err)

	later := codec.WithClock(func() time.Time { return base.Add(2 * time.Minute) })
	_, err = later.Parse(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCodec_Malformed(t *testing.T) {
	codec, err := NewTokenCodec(testSecret, time.Minute, "lockerhub")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.Parse("not-a-jwt")
		require.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenCodec("another-secret-0123456789", time.Minute, "lockerhub")
		require.NoError(t, err)
		token, err := other.Issue("user-1", "alice", false)
		require.NoError(t, err)

		_, err = codec.Parse(token)
		require.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		claims := AccessClaims{UserID: "user-1", RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "lockerhub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = codec.Parse(token)
		require.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewTokenCodec(testSecret, time.Minute, "someone-else")
		require.NoError(t, err)
		token, err := other.Issue("user-1", "alice", false)
		require.NoError(t, err)

		_, err = codec.Parse(token)
		require.ErrorIs(t, err, ErrTokenMalformed)
	})
}

func TestNewTokenCodec_RejectsShortSecret(t *testing.T) {
	_, err := NewTokenCodec("short", time.Minute, "")
	require.Error(t, err)
}

func TestGenerateRefreshToken(t *testing.T) {
	token, hash, err := GenerateRefreshToken(0)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, HashRefreshToken(token), hash)

	other, _, err := GenerateRefreshToken(0)
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}
