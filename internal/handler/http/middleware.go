package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/PackStore/internal/domain"
	"github.com/utafrali/PackStore/pkg/httputil"
	"github.com/utafrali/PackStore/pkg/middleware"
)

type actorKeyCtx struct{}

// RequireActor resolves the cart owner from the identity set by
// middleware.ResolveIdentity. An authenticated user wins over an anonymous
// session. Requests carrying neither are rejected with 401.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.IdentityFromContext(r.Context())
		if !ok || id.Empty() {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "X-User-ID or X-Cart-Session header is required"},
			})
			return
		}

		actor := domain.AnonymousSession(id.SessionID)
		if !id.Anonymous() {
			actor = domain.Customer(id.UserID)
		}
		ctx := context.WithValue(r.Context(), actorKeyCtx{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFromContext returns the owner stored by RequireActor.
func actorFromContext(ctx context.Context) domain.ActorKey {
	actor, _ := ctx.Value(actorKeyCtx{}).(domain.ActorKey)
	return actor
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
