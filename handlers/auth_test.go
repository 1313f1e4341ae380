package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cinelist/handlers"
	"cinelist/services/sessions"
	"cinelist/services/users"
)

func newAuthHandler(t *testing.T) (*handlers.AuthHandler, *sql.DB, *sessions.Service) {
	t.Helper()
	db := openTestDB(t)
	sessionsSvc, err := sessions.NewService(db, "test-secret", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("failed to create sessions service: %v", err)
	}
	return handlers.NewAuthHandler(users.NewService(db), sessionsSvc), db, sessionsSvc
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessions.CookieName {
			return c
		}
	}
	return nil
}

func TestSignUpReturnsConfirmationCode(t *testing.T) {
	h, _, sessionsSvc := newAuthHandler(t)

	payload := []byte(`{"email":"alice@example.com","password":"secret123"}`)
	rec := httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest(http.MethodPost, "/auth/sign-up", bytes.NewReader(payload)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		ConfirmationCode string `json:"confirmation_code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ConfirmationCode == "" {
		t.Fatal("expected a confirmation code in the response")
	}

	// The code must be exchangeable exactly once.
	userID, kind, err := sessionsSvc.ExchangeCode(context.Background(), body.ConfirmationCode)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if userID == "" || kind != sessions.CodeKindConfirm {
		t.Fatalf("unexpected exchange result: %q %q", userID, kind)
	}
}

func TestSignUpDuplicateEmailConflict(t *testing.T) {
	h, _, _ := newAuthHandler(t)

	payload := []byte(`{"email":"alice@example.com","password":"secret123"}`)
	rec := httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest(http.MethodPost, "/auth/sign-up", bytes.NewReader(payload)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest(http.MethodPost, "/auth/sign-up", bytes.NewReader(payload)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}

func TestSignInSetsSessionCookie(t *testing.T) {
	h, db, sessionsSvc := newAuthHandler(t)
	user := createUser(t, db, "alice@example.com", false)

	payload := []byte(`{"email":"alice@example.com","password":"secret123"}`)
	rec := httptest.NewRecorder()
	h.SignIn(rec, httptest.NewRequest(http.MethodPost, "/auth/sign-in", bytes.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cookie := sessionCookie(rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected a session cookie")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be http-only")
	}
	resolved, err := sessionsSvc.Resolve(cookie.Value)
	if err != nil {
		t.Fatalf("cookie token did not resolve: %v", err)
	}
	if resolved != user.ID {
		t.Fatalf("expected token for %s, got %s", user.ID, resolved)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	h, db, _ := newAuthHandler(t)
	createUser(t, db, "alice@example.com", false)

	payload := []byte(`{"email":"alice@example.com","password":"wrong"}`)
	rec := httptest.NewRecorder()
	h.SignIn(rec, httptest.NewRequest(http.MethodPost, "/auth/sign-in", bytes.NewReader(payload)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if sessionCookie(rec) != nil {
		t.Fatal("no session cookie should be set on failed sign-in")
	}
}

func TestSignOutClearsCookie(t *testing.T) {
	h, _, _ := newAuthHandler(t)

	rec := httptest.NewRecorder()
	h.SignOut(rec, httptest.NewRequest(http.MethodPost, "/auth/sign-out", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	cookie := sessionCookie(rec)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Fatalf("expected an expiring session cookie, got %+v", cookie)
	}
}

func TestMeReportsAdminFlag(t *testing.T) {
	h, db, _ := newAuthHandler(t)
	admin := createUser(t, db, "admin@example.com", true)

	rec := httptest.NewRecorder()
	h.Me(rec, asUser(httptest.NewRequest(http.MethodGet, "/auth/me", nil), admin))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		IsAdmin bool `json:"is_admin"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.User.Email != "admin@example.com" || !body.IsAdmin {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestChangePassword(t *testing.T) {
	h, db, _ := newAuthHandler(t)
	user := createUser(t, db, "alice@example.com", false)

	rec := httptest.NewRecorder()
	h.ChangePassword(rec, asUser(httptest.NewRequest(http.MethodPut, "/auth/password",
		bytes.NewReader([]byte(`{"password":"123"}`))), user))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for short password, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ChangePassword(rec, asUser(httptest.NewRequest(http.MethodPut, "/auth/password",
		bytes.NewReader([]byte(`{"password":"newsecret"}`))), user))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := users.NewService(db).Authenticate(context.Background(), "alice@example.com", "newsecret"); err != nil {
		t.Fatalf("new password did not authenticate: %v", err)
	}
}

func TestCallbackConfirmFlow(t *testing.T) {
	h, db, sessionsSvc := newAuthHandler(t)
	user := createUser(t, db, "alice@example.com", false)

	code, err := sessionsSvc.CreateCode(context.Background(), user.ID, sessions.CodeKindConfirm)
	if err != nil {
		t.Fatalf("failed to create code: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code="+code, nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/protected" {
		t.Fatalf("expected redirect to /protected, got %q", loc)
	}
	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("expected a session cookie after code exchange")
	}
	if resolved, err := sessionsSvc.Resolve(cookie.Value); err != nil || resolved != user.ID {
		t.Fatalf("cookie did not resolve to the user: %v", err)
	}
}

func TestCallbackInviteRedirectsToInvitePage(t *testing.T) {
	h, db, sessionsSvc := newAuthHandler(t)
	user := createUser(t, db, "guest@example.com", false)

	code, err := sessionsSvc.CreateCode(context.Background(), user.ID, sessions.CodeKindInvite)
	if err != nil {
		t.Fatalf("failed to create code: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?type=invite&code="+code, nil))

	if loc := rec.Header().Get("Location"); loc != "/auth/invite" {
		t.Fatalf("expected redirect to /auth/invite, got %q", loc)
	}
}

func TestCallbackInvalidCodeRedirectsToSignIn(t *testing.T) {
	h, _, _ := newAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=bogus", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/sign-in" {
		t.Fatalf("expected redirect to /sign-in, got %q", loc)
	}
	if sessionCookie(rec) != nil {
		t.Fatal("no session cookie should be set for an invalid code")
	}
}

func TestCreateInviteForNewEmail(t *testing.T) {
	h, db, sessionsSvc := newAuthHandler(t)

	payload := []byte(`{"email":"guest@example.com"}`)
	rec := httptest.NewRecorder()
	h.CreateInvite(rec, httptest.NewRequest(http.MethodPost, "/api/invites", bytes.NewReader(payload)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Email      string `json:"email"`
		InviteCode string `json:"invite_code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Email != "guest@example.com" || body.InviteCode == "" {
		t.Fatalf("unexpected response: %+v", body)
	}

	// The invited account exists without a password.
	ctx := context.Background()
	invited, err := users.NewService(db).GetByEmail(ctx, "guest@example.com")
	if err != nil {
		t.Fatalf("invited user not found: %v", err)
	}
	if invited.HasPassword() {
		t.Fatal("invited account should start without a password")
	}

	if _, kind, err := sessionsSvc.ExchangeCode(ctx, body.InviteCode); err != nil || kind != sessions.CodeKindInvite {
		t.Fatalf("invite code exchange failed: %v %q", err, kind)
	}
}

func TestCreateInviteForExistingEmailReusesAccount(t *testing.T) {
	h, db, _ := newAuthHandler(t)
	existing := createUser(t, db, "alice@example.com", false)

	rec := httptest.NewRecorder()
	h.CreateInvite(rec, httptest.NewRequest(http.MethodPost, "/api/invites",
		bytes.NewReader([]byte(`{"email":"alice@example.com"}`))))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	ctx := context.Background()
	again, err := users.NewService(db).GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if again.ID != existing.ID {
		t.Fatal("invite for an existing email must not create a second account")
	}
}
