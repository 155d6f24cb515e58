// Package auth issues and verifies the signed credentials that gate every
// real-time connection and API call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SkeletonSFD/DnD-Project/internal/identity"
	"github.com/SkeletonSFD/DnD-Project/internal/userstore"
)

// DefaultTokenTTL is the credential lifetime when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidToken covers every verification failure: malformed or expired
// tokens, bad signatures, missing or non-numeric subjects, and subjects that
// resolve to no usable account. Callers get no finer distinction.
var ErrInvalidToken = errors.New("invalid token")

// Issuer signs access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Token creates a signed HS256 token whose subject is the user id.
func (i *Issuer) Token(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verifier resolves a bearer token to an identity snapshot.
type Verifier struct {
	secret []byte
	users  userstore.Store
	logger *slog.Logger
}

func NewVerifier(secret string, users userstore.Store, logger *slog.Logger) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		users:  users,
		logger: logger.With(slog.String("component", "token_verifier")),
	}
}

// Verify validates the token signature and expiry, then resolves the subject
// against the user store. It has no side effects.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (identity.Snapshot, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return identity.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return identity.Snapshot{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return identity.Snapshot{}, fmt.Errorf("%w: non-numeric subject", ErrInvalidToken)
	}

	user, err := v.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return identity.Snapshot{}, fmt.Errorf("%w: unknown user", ErrInvalidToken)
		}
		return identity.Snapshot{}, fmt.Errorf("resolve user: %w", err)
	}
	if !user.IsActive {
		return identity.Snapshot{}, fmt.Errorf("%w: user inactive", ErrInvalidToken)
	}

	return identity.Snapshot{
		UserID:        user.ID,
		Username:      user.Username,
		CharacterName: user.CharacterName,
	}, nil
}
