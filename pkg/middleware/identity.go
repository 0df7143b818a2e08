package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/PackStore/pkg/logger"
)

// Headers identifying the cart owner. An authenticated gateway sets
// X-User-ID; anonymous shoppers carry an opaque X-Cart-Session token.
const (
	HeaderUserID      = "X-User-ID"
	HeaderCartSession = "X-Cart-Session"
)

type identityKey struct{}

// Identity is the caller as seen by the storefront.
type Identity struct {
	UserID    string
	SessionID string
}

// Anonymous reports whether the caller has no authenticated user.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}

// Empty reports whether the caller presented no identity at all.
func (i Identity) Empty() bool {
	return i.UserID == "" && i.SessionID == ""
}

// Key returns "user:<id>" for authenticated callers, "anon:<session>" for
// anonymous ones and "" when nothing was presented.
func (i Identity) Key() string {
	switch {
	case i.UserID != "":
		return "user:" + i.UserID
	case i.SessionID != "":
		return "anon:" + i.SessionID
	default:
		return ""
	}
}

// IdentityFromHeaders reads the caller identity from r.
func IdentityFromHeaders(r *http.Request) Identity {
	return Identity{
		UserID:    strings.TrimSpace(r.Header.Get(HeaderUserID)),
		SessionID: strings.TrimSpace(r.Header.Get(HeaderCartSession)),
	}
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity set by ResolveIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// ResolveIdentity stores the caller identity in the request context and tags
// the log context with its key. Requests without any identity pass through
// untouched; handlers that need an owner reject them.
func ResolveIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromHeaders(r)
			if id.Empty() {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithIdentity(r.Context(), id)
			ctx = logger.WithActor(ctx, id.Key())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
