package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"cinelist/handlers"
	"cinelist/services/sessions"
	"cinelist/services/users"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts the JSON API, auth endpoints and page routes onto the
// provided router.
func Register(
	r *mux.Router,
	authHandler *handlers.AuthHandler,
	listItemsHandler *handlers.ListItemsHandler,
	searchHandler *handlers.SearchHandler,
	imageHandler *handlers.ImageHandler,
	pagesHandler *handlers.PagesHandler,
	sessionsSvc *sessions.Service,
	usersSvc *users.Service,
) {
	// Auth endpoints (no session required)
	r.HandleFunc("/auth/sign-up", authHandler.SignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/sign-in", authHandler.SignIn).Methods(http.MethodPost)
	r.HandleFunc("/auth/sign-out", authHandler.SignOut).Methods(http.MethodPost)
	r.HandleFunc("/auth/callback", authHandler.Callback).Methods(http.MethodGet)

	// Auth endpoints that need a session
	authed := r.PathPrefix("/auth").Subrouter()
	authed.Use(SessionAuthMiddleware(sessionsSvc, usersSvc))
	authed.HandleFunc("/me", authHandler.Me).Methods(http.MethodGet)
	authed.HandleFunc("/password", authHandler.ChangePassword).Methods(http.MethodPut)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Image proxy is public; <img> tags cannot send auth headers and the
	// cookie may be absent on cached pages.
	api.HandleFunc("/images/proxy", imageHandler.Proxy).Methods(http.MethodGet)
	api.HandleFunc("/images/proxy", handleOptions).Methods(http.MethodOptions)

	// Protected routes - require a session
	protected := api.PathPrefix("").Subrouter()
	protected.Use(SessionAuthMiddleware(sessionsSvc, usersSvc))

	protected.HandleFunc("/cine-list-items", listItemsHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc("/cine-list-items", listItemsHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/cine-list-items", listItemsHandler.UpdateCompletion).Methods(http.MethodPatch)
	protected.HandleFunc("/cine-list-items", listItemsHandler.Delete).Methods(http.MethodDelete)
	protected.HandleFunc("/cine-list-items", handleOptions).Methods(http.MethodOptions)

	protected.HandleFunc("/search", searchHandler.Search).Methods(http.MethodGet)
	protected.HandleFunc("/search", handleOptions).Methods(http.MethodOptions)

	// Invites (admin only)
	adminOnly := protected.PathPrefix("/invites").Subrouter()
	adminOnly.Use(AdminOnlyMiddleware(usersSvc))
	adminOnly.HandleFunc("", authHandler.CreateInvite).Methods(http.MethodPost)
	adminOnly.HandleFunc("", handleOptions).Methods(http.MethodOptions)

	// Pages
	pages := r.PathPrefix("").Subrouter()
	pages.Use(PageSessionMiddleware(sessionsSvc, usersSvc))

	pages.Handle("/", http.HandlerFunc(pagesHandler.Index)).Methods(http.MethodGet)
	pages.Handle("/sign-in", RedirectSignedInPage(http.HandlerFunc(pagesHandler.SignIn))).Methods(http.MethodGet)
	pages.Handle("/sign-up", RedirectSignedInPage(http.HandlerFunc(pagesHandler.SignUp))).Methods(http.MethodGet)
	pages.Handle("/protected", RequireSignInPage(http.HandlerFunc(pagesHandler.Protected))).Methods(http.MethodGet)
	pages.Handle("/auth/invite", RequireSignInPage(http.HandlerFunc(pagesHandler.Invite))).Methods(http.MethodGet)
}
