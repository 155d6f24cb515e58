package auth_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkeletonSFD/DnD-Project/internal/auth"
	"github.com/SkeletonSFD/DnD-Project/internal/userstore"
)

const testSecret = "test-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func seedUser(t *testing.T, users *userstore.Memory, username string) *userstore.User {
	t.Helper()
	user, err := users.Create(context.Background(), userstore.NewUser{
		Username:      username,
		Email:         username + "@example.com",
		CharacterName: "Sir " + username,
		PasswordHash:  "x",
	})
	require.NoError(t, err)
	return user
}

// signClaims builds a token outside the Issuer so malformed claims can be
// exercised.
func signClaims(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyRoundTrip(t *testing.T) {
	users := userstore.NewMemory()
	user := seedUser(t, users, "alice")

	issuer := auth.NewIssuer(testSecret, time.Hour)
	verifier := auth.NewVerifier(testSecret, users, testLogger())

	token, err := issuer.Token(user.ID)
	require.NoError(t, err)

	ident, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, ident.UserID)
	assert.Equal(t, "alice", ident.Username)
	assert.Equal(t, "Sir alice", ident.CharacterName)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	users := userstore.NewMemory()
	user := seedUser(t, users, "alice")
	verifier := auth.NewVerifier(testSecret, users, testLogger())

	expired := signClaims(t, testSecret, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	wrongSecret, err := auth.NewIssuer("other-secret", time.Hour).Token(user.ID)
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":             "not-a-token",
		"expired":             expired,
		"wrong secret":        wrongSecret,
		"missing subject":     signClaims(t, testSecret, jwt.RegisteredClaims{}),
		"non-numeric subject": signClaims(t, testSecret, jwt.RegisteredClaims{Subject: "alice"}),
		"unknown user":        signClaims(t, testSecret, jwt.RegisteredClaims{Subject: "999"}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestVerifyRejectsInactiveUser(t *testing.T) {
	users := userstore.NewMemory()
	user := seedUser(t, users, "alice")
	require.NoError(t, users.SetActive(context.Background(), user.ID, false))

	issuer := auth.NewIssuer(testSecret, time.Hour)
	verifier := auth.NewVerifier(testSecret, users, testLogger())

	token, err := issuer.Token(user.ID)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

// spyStore fails the test if the verifier ever consults the store.
type spyStore struct {
	userstore.Store
	t *testing.T
}

func (s spyStore) GetByID(context.Context, int64) (*userstore.User, error) {
	s.t.Fatal("store must not be consulted")
	return nil, nil
}

func TestGateRejectsEmptyTokenWithoutVerifying(t *testing.T) {
	verifier := auth.NewVerifier(testSecret, spyStore{t: t}, testLogger())
	gate := auth.NewGate(verifier)

	_, err := gate.Admit(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestGateAdmitsValidToken(t *testing.T) {
	users := userstore.NewMemory()
	user := seedUser(t, users, "bob")

	issuer := auth.NewIssuer(testSecret, time.Hour)
	gate := auth.NewGate(auth.NewVerifier(testSecret, users, testLogger()))

	token, err := issuer.Token(user.ID)
	require.NoError(t, err)

	ident, err := gate.Admit(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, ident.UserID)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("S3cretPass")
	require.NoError(t, err)
	assert.NotEqual(t, "S3cretPass", hash)

	assert.True(t, auth.CheckPassword(hash, "S3cretPass"))
	assert.False(t, auth.CheckPassword(hash, "wrong"))
}
