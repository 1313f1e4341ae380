package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"cinelist/models"
	"cinelist/services/sessions"
	"cinelist/services/users"
)

type usersService interface {
	Create(ctx context.Context, email, password string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	SetPassword(ctx context.Context, id, password string) error
	IsAdmin(ctx context.Context, id string) (bool, error)
}

var _ usersService = (*users.Service)(nil)

// AuthHandler serves sign-up, sign-in, session introspection and the one-time
// code exchange used by the confirmation and invite flows.
type AuthHandler struct {
	Users    usersService
	Sessions *sessions.Service
}

func NewAuthHandler(usersSvc usersService, sessionsSvc *sessions.Service) *AuthHandler {
	return &AuthHandler{Users: usersSvc, Sessions: sessionsSvc}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessions.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.Sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessions.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SignUp registers an account and returns a one-time confirmation code. The
// server sends no email; the code is exchanged at /auth/callback.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Users.Create(r.Context(), body.Email, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrEmailRequired), errors.Is(err, users.ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, users.ErrEmailTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("[auth] sign-up failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to sign up")
		}
		return
	}

	code, err := h.Sessions.CreateCode(r.Context(), user.ID, sessions.CodeKindConfirm)
	if err != nil {
		log.Printf("[auth] confirmation code failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign up")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":              user,
		"confirmation_code": code,
	})
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Users.Authenticate(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		log.Printf("[auth] sign-in failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	token, err := h.Sessions.Issue(user.ID)
	if err != nil {
		log.Printf("[auth] issue token failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the authenticated account and its admin flag.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := sessions.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	admin, err := h.Users.IsAdmin(r.Context(), user.ID)
	if err != nil {
		log.Printf("[auth] role lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user, "is_admin": admin})
}

// ChangePassword updates the authenticated account's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := sessions.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Users.SetPassword(r.Context(), user.ID, body.Password); err != nil {
		if errors.Is(err, users.ErrPasswordTooShort) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[auth] set password failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Callback exchanges a one-time code for a session cookie and redirects;
// invite codes land on the set-password page, everything else on the
// protected list.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		http.Redirect(w, r, "/protected", http.StatusFound)
		return
	}

	userID, kind, err := h.Sessions.ExchangeCode(r.Context(), code)
	if err != nil {
		http.Redirect(w, r, "/sign-in", http.StatusFound)
		return
	}

	token, err := h.Sessions.Issue(userID)
	if err != nil {
		log.Printf("[auth] issue token failed: %v", err)
		http.Redirect(w, r, "/sign-in", http.StatusFound)
		return
	}
	h.setSessionCookie(w, token)

	if kind == sessions.CodeKindInvite || r.URL.Query().Get("type") == "invite" {
		http.Redirect(w, r, "/auth/invite", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/protected", http.StatusFound)
}

// CreateInvite mints an invite code for an email address, creating the
// account (without a password) if it does not exist yet. Admin only; the
// admin check happens in the route middleware.
func (h *AuthHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	invited, err := h.Users.GetByEmail(r.Context(), body.Email)
	if errors.Is(err, users.ErrUserNotFound) {
		invited, err = h.Users.Create(r.Context(), body.Email, "")
	}
	if err != nil {
		if errors.Is(err, users.ErrEmailRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[auth] invite failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create invite")
		return
	}

	code, err := h.Sessions.CreateCode(r.Context(), invited.ID, sessions.CodeKindInvite)
	if err != nil {
		log.Printf("[auth] invite code failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create invite")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"email":       invited.Email,
		"invite_code": code,
		"invite_link": "/auth/callback?type=invite&code=" + code,
	})
}
