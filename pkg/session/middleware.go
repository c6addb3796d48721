package session

import (
	"context"
	"net/http"

	"github.com/buzonshare/buzonshare/pkg/authz"
)

type contextKey struct{}

// FromContext returns the session the middleware resolved for the
// request, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok
}

// Middleware resolves the session cookie into an authorization actor on
// the request context. Requests without a valid session pass through
// unauthenticated; handlers decide whether that is acceptable.
func Middleware(store *Store, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := store.Get(r.Context(), cookie.Value)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := authz.WithActor(r.Context(), sess.Actor())
			ctx = context.WithValue(ctx, contextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
