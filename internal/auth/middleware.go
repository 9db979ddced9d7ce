package auth

import (
	"net/http"

	"spendhelm/internal/log"
)

// RequireBearer authenticates requests with an "Authorization: Bearer"
// token. On success the session is stored in the request context and the
// context logger gains the user id. onFail writes the rejection and receives
// ErrMissingBearer or ErrInvalidToken.
func RequireBearer(tokens *TokenManager, onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := BearerToken(r.Header.Get("Authorization"))
			if err == nil {
				var s Session
				if s, err = tokens.Validate(raw); err == nil {
					ctx := WithSession(r.Context(), s)
					ctx = log.IntoContext(ctx, log.FromContext(ctx).With(log.FieldUserID, s.UserID))
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			if onFail != nil {
				onFail(w, r, err)
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
		})
	}
}
