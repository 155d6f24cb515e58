package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SkeletonSFD/DnD-Project/internal/auth"
)

// NewAuthMiddleware gates the websocket upgrade behind the connection gate.
// The credential rides the handshake as a bearer header or a token query
// parameter; a request without one is rejected before the verifier runs, and
// a rejected request never reaches the upgrade handler.
func NewAuthMiddleware(logger *slog.Logger, gate *auth.Gate) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			ident, err := gate.Admit(r.Context(), BearerToken(r))
			if err != nil {
				if errors.Is(err, auth.ErrMissingToken) {
					logger.Warn("connection rejected: no token", slog.String("ip", reqMeta.IP))
					http.Error(w, "Missing token", http.StatusUnauthorized)
					return
				}
				logger.Warn("connection rejected: invalid token",
					slog.String("ip", reqMeta.IP),
					slog.Any("error", err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.Identity = ident
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the credential from the Authorization header or, for
// websocket clients that cannot set headers, the token query parameter.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
