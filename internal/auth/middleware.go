package auth

import (
	"context"
	"net/http"

	"wishstash/internal/apperr"
)

type userContextKey struct{}

// RequireUser resolves the bearer token through the full authentication path
// (signature, expiry, revocation, subject lookup) and stores the user in the
// request context. Every protected route sits behind it.
func RequireUser(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				apperr.Write(w, r, err)
				return
			}

			user, err := service.CurrentUser(r.Context(), token)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser stores the resolved user in the context. Exposed so handler tests
// can authenticate requests without a live token path.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey{}).(User)
	return user, ok
}
