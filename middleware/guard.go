package middleware

import (
	"errors"
	"net/http"
	"strings"

	gateAuth "github.com/MrEthical07/gateAuth"
)

// Route carries the per-endpoint flags the authorization decision needs.
type Route struct {
	Anonymous          bool
	FirstUserOperation bool
}

// Guard resolves the bearer token into a principal, asks the engine whether
// the request path is allowed and rejects the request with 401 otherwise.
// Store failures during the decision yield 500. An invalid or missing token
// is not an error by itself: anonymous routes still pass.
func Guard(engine *gateAuth.Engine, route Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := r.Context()
			if gateAuth.ClientIPFromContext(ctx) == "" {
				ctx = gateAuth.WithClientIP(ctx, ClientIP(r))
			}

			var principal *gateAuth.Principal
			if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
				principal = engine.ValidateToken(ctx, token)
			}

			err := engine.Authorize(ctx, gateAuth.AuthorizeRequest{
				Principal:          principal,
				Path:               r.URL.Path,
				Anonymous:          route.Anonymous,
				FirstUserOperation: route.FirstUserOperation,
			})
			switch {
			case err == nil:
			case errors.Is(err, gateAuth.ErrUnauthorized):
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			if principal != nil {
				ctx = gateAuth.WithPrincipal(ctx, principal)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal guards a route that needs an authenticated caller with
// a grant for the request path.
func RequirePrincipal(engine *gateAuth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, Route{})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
