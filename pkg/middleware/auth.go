package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/PackStore/pkg/httputil"
)

// BearerIdentity verifies an HS256 bearer token and rewrites X-User-ID from
// its user_id (or sub) claim. A request without a token continues as an
// anonymous shopper, and any X-User-ID it carried is dropped so the header
// cannot be forged. It must run before ResolveIdentity.
func BearerIdentity(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(HeaderUserID)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				unauthorized(w, "invalid authorization header format")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(r.Context(), "invalid bearer token",
					slog.String("path", r.URL.Path),
					slog.Any("error", err),
				)
				unauthorized(w, "invalid or expired token")
				return
			}

			userID, _ := claims["user_id"].(string)
			if userID == "" {
				userID, _ = claims.GetSubject()
			}
			if userID == "" {
				unauthorized(w, "token carries no user")
				return
			}

			r.Header.Set(HeaderUserID, userID)
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: msg},
	})
}
