package handlers

import (
	"errors"
	"net/http"

	"github.com/cvdreamjob/apiserver/internal/auth"
	"github.com/cvdreamjob/apiserver/internal/logging"
	"github.com/cvdreamjob/apiserver/types"
)

// RequireSession resolves the caller's session and injects its user id into
// the request context. Requests without a valid session get 401.
func RequireSession(resolver auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				if errors.Is(err, auth.ErrNoSession) {
					writeError(w, types.KindUnauthorized, "unauthorized")
					return
				}
				logging.FromContext(r.Context()).Error("resolve session", "err", err)
				writeError(w, types.KindStorage, "database error")
				return
			}
			if session.UserID == "" {
				writeError(w, types.KindUnauthorized, "unauthorized")
				return
			}

			ctx := withUserID(r.Context(), session.UserID)
			ctx = logging.WithContext(ctx, logging.FromContext(ctx).With("user_id", session.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
