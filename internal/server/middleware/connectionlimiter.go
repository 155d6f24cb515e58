package middleware

import (
	"log/slog"
	"net/http"
)

// UserConnectionCounter reports how many live connections a user has.
type UserConnectionCounter func(userID int64) int

// NewConnectionLimiter rejects new connections for users already at the
// configured cap. It must run after the auth middleware. A cap of zero
// disables the limit.
func NewConnectionLimiter(logger *slog.Logger, counter UserConnectionCounter, maxPerUser int) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxPerUser <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok || reqMeta.Identity.UserID == 0 {
				logger.Error("connection limiter ran before auth; check middleware order")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			count := counter(reqMeta.Identity.UserID)
			if count >= maxPerUser {
				logger.Warn("user connection limit reached",
					slog.Int64("userID", reqMeta.Identity.UserID),
					slog.Int("count", count))
				http.Error(w, "Too Many Active Connections", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
