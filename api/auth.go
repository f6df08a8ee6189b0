package api

import (
	"net/http"
	"strings"

	authcontext "github.com/nasermirzaei89/myboard/authentication/context"
)

const bearerPrefix = "Bearer "

// authMiddleware puts the member the bearer token was issued to into the request context.
// Requests without an Authorization header stay anonymous.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)

			return
		}

		if !strings.HasPrefix(header, bearerPrefix) {
			writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "unsupported authorization scheme"})

			return
		}

		token, err := h.authSvc.Authenticate(r.Context(), strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			writeError(w, r, err)

			return
		}

		ctx := authcontext.WithSubject(r.Context(), token.Subject)
		ctx = authcontext.WithTokenID(ctx, token.ID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isAuthenticated(r *http.Request) bool {
	return authcontext.GetSubject(r.Context()) != authcontext.Anonymous
}

func authenticatedOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAuthenticated(r) {
			writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "authentication required"})

			return
		}

		next.ServeHTTP(w, r)
	})
}
