package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"cinelist/services/sessions"
	"cinelist/services/users"
)

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}

// SessionAuthMiddleware resolves the session token on every request and
// attaches the account to the request context. Requests without a valid
// session get a 401.
func SessionAuthMiddleware(sessionsSvc *sessions.Service, usersSvc *users.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessions.TokenFromRequest(r)
			userID, err := sessionsSvc.Resolve(token)
			if err != nil {
				unauthorized(w)
				return
			}

			user, err := usersSvc.GetByID(r.Context(), userID)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(sessions.WithUser(r.Context(), user)))
		})
	}
}

// AdminOnlyMiddleware rejects requests from non-admin accounts. Must run
// after SessionAuthMiddleware.
func AdminOnlyMiddleware(usersSvc *users.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := sessions.UserFrom(r.Context())
			if !ok {
				unauthorized(w)
				return
			}

			admin, err := usersSvc.IsAdmin(r.Context(), user.ID)
			if err != nil || !admin {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{"error": "Admin access required"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PageSessionMiddleware attaches the account to the context when a valid
// session is presented, without rejecting anonymous requests. Page handlers
// decide what to render.
func PageSessionMiddleware(sessionsSvc *sessions.Service, usersSvc *users.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := sessions.TokenFromRequest(r); token != "" {
				if userID, err := sessionsSvc.Resolve(token); err == nil {
					if user, err := usersSvc.GetByID(r.Context(), userID); err == nil {
						r = r.WithContext(sessions.WithUser(r.Context(), user))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSignInPage redirects anonymous requests to the sign-in page.
// Must run after PageSessionMiddleware.
func RequireSignInPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessions.UserFrom(r.Context()); !ok {
			http.Redirect(w, r, "/sign-in", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectSignedInPage sends already signed-in visitors from the sign-in and
// sign-up pages to their list. Must run after PageSessionMiddleware.
func RedirectSignedInPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessions.UserFrom(r.Context()); ok {
			http.Redirect(w, r, "/protected", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
