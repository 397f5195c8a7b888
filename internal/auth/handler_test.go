package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLoginWithWrongPasswordKeepsUserOut(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.gateway.Signup(context.Background(), SignupInput{Email: "user@x.com", Password: "correct", ConfirmPassword: "correct"}); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	client := &testClient{t: t, router: newTestRouter(m)}

	rec := client.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "user@x.com", "password": "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if payload["code"] != CodeInvalidCredentials {
		t.Fatalf("unexpected code: %v", payload["code"])
	}
	if payload["remainingAttempts"] != float64(maxLoginAttempts-1) {
		t.Fatalf("unexpected remainingAttempts: %v", payload["remainingAttempts"])
	}

	rec = client.do(http.MethodGet, "/api/protected", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("protected route admitted an unauthenticated user: %d", rec.Code)
	}
	if payload := decodeBody(t, rec); payload["redirectTo"] != UnauthenticatedEntry {
		t.Fatalf("unexpected redirectTo: %v", payload["redirectTo"])
	}

	rec = client.do(http.MethodGet, "/api/auth/me", nil, nil)
	if payload := decodeBody(t, rec); payload["user"] != nil {
		t.Fatalf("expected null user, got %v", payload["user"])
	}
}

func TestSignupSessionLifecycle(t *testing.T) {
	m := newTestManager(t)
	client := &testClient{t: t, router: newTestRouter(m)}

	var signedOut []string
	m.Signal().Subscribe(func(ev Event) {
		if ev.User == nil {
			signedOut = append(signedOut, ev.SessionID)
		}
	})

	rec := client.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":           "new@x.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
		"displayName":     "New Instructor",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if client.csrf == "" {
		t.Fatal("expected X-CSRF-Token header")
	}
	sessionID, _ := decodeBody(t, rec)["sessionId"].(string)
	if sessionID == "" {
		t.Fatal("expected sessionId in response")
	}

	rec = client.do(http.MethodGet, "/api/protected", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("protected route rejected a signed-in user: %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["sessionId"]; got != sessionID {
		t.Fatalf("sessionId = %v, want %s", got, sessionID)
	}

	rec = client.do(http.MethodGet, "/api/auth/me", nil, nil)
	user, _ := decodeBody(t, rec)["user"].(map[string]any)
	if user["email"] != "new@x.com" || user["displayName"] != "New Instructor" {
		t.Fatalf("unexpected user: %#v", user)
	}
	if _, leaked := user["PasswordHash"]; leaked {
		t.Fatal("password hash must not be serialised")
	}

	rec = client.do(http.MethodPost, "/api/auth/logout", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("logout without CSRF token: status %d", rec.Code)
	}

	rec = client.do(http.MethodPost, "/api/auth/logout", nil, map[string]string{csrfHeader: client.csrf})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected logout status: %d body=%s", rec.Code, rec.Body.String())
	}
	if len(signedOut) != 1 || signedOut[0] != sessionID {
		t.Fatalf("unexpected sign-out events: %v", signedOut)
	}

	rec = client.do(http.MethodGet, "/api/protected", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("protected route admitted a signed-out user: %d", rec.Code)
	}
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	m := newTestManager(t)
	client := &testClient{t: t, router: newTestRouter(m)}

	for i := 0; i < maxLoginAttempts; i++ {
		rec := client.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "user@x.com", "password": "wrong"}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: unexpected status %d", i+1, rec.Code)
		}
	}

	rec := client.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "user@x.com", "password": "wrong"}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected lock, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if payload := decodeBody(t, rec); payload["code"] != CodeTooManyAttempts {
		t.Fatalf("unexpected code: %v", payload["code"])
	}
}

func TestBearerTokenPassesGate(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.gateway.Signup(context.Background(), SignupInput{Email: "user@x.com", Password: "correct", ConfirmPassword: "correct"}); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	router := newTestRouter(m)
	browser := &testClient{t: t, router: router}

	rec := browser.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "user@x.com", "password": "correct"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	idToken, _ := payload["idToken"].(string)
	if idToken == "" {
		t.Fatal("expected idToken")
	}

	cli := &testClient{t: t, router: router}
	rec = cli.do(http.MethodGet, "/api/protected", nil, map[string]string{"Authorization": "Bearer " + idToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer token rejected: %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["sessionId"]; got != payload["sessionId"] {
		t.Fatalf("sessionId = %v, want %v", got, payload["sessionId"])
	}

	rec = cli.do(http.MethodGet, "/api/protected", nil, map[string]string{"Authorization": "Bearer garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid bearer token admitted: %d", rec.Code)
	}
}

func loginWithToken(t *testing.T, m *Manager, router *gin.Engine) (sessionID, idToken string) {
	t.Helper()
	if _, err := m.gateway.Signup(context.Background(), SignupInput{Email: "user@x.com", Password: "correct", ConfirmPassword: "correct"}); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	browser := &testClient{t: t, router: router}
	rec := browser.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "user@x.com", "password": "correct"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	sessionID, _ = payload["sessionId"].(string)
	idToken, _ = payload["idToken"].(string)
	if sessionID == "" || idToken == "" {
		t.Fatalf("expected sessionId and idToken: %v", payload)
	}
	return sessionID, idToken
}

func TestLogoutRevokesBearerToken(t *testing.T) {
	m := newTestManager(t)
	router := newTestRouter(m)
	_, idToken := loginWithToken(t, m, router)

	cli := &testClient{t: t, router: router}
	bearer := map[string]string{"Authorization": "Bearer " + idToken}
	if rec := cli.do(http.MethodPost, "/api/auth/logout", nil, bearer); rec.Code != http.StatusNoContent {
		t.Fatalf("logout failed: %d body=%s", rec.Code, rec.Body.String())
	}

	rec := cli.do(http.MethodGet, "/api/protected", nil, bearer)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("token of a signed-out session admitted: %d body=%s", rec.Code, rec.Body.String())
	}
	if code := decodeBody(t, rec)["code"]; code != "SESSION_ENDED" {
		t.Fatalf("unexpected code: %v", code)
	}
}

func TestSweepIdleEndsAbandonedSessions(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	router := newTestRouter(m)
	sessionID, idToken := loginWithToken(t, m, router)

	var signedOut []string
	m.Signal().Subscribe(func(ev Event) {
		if ev.User == nil {
			signedOut = append(signedOut, ev.SessionID)
		}
	})

	now = now.Add(idleTimeout / 2)
	if n := m.SweepIdle(); n != 0 {
		t.Fatalf("active session swept: %d", n)
	}
	if _, ok := m.Signal().Current(sessionID); !ok {
		t.Fatal("current user should still be known")
	}

	now = now.Add(idleTimeout + time.Minute)
	if n := m.SweepIdle(); n != 1 {
		t.Fatalf("SweepIdle = %d, want 1", n)
	}
	if len(signedOut) != 1 || signedOut[0] != sessionID {
		t.Fatalf("sign-out events = %v", signedOut)
	}
	if _, ok := m.Signal().Current(sessionID); ok {
		t.Fatal("current user should be dropped after sweep")
	}
	if m.activity.len() != 0 {
		t.Fatalf("activity entries left: %d", m.activity.len())
	}

	cli := &testClient{t: t, router: router}
	if rec := cli.do(http.MethodGet, "/api/protected", nil, map[string]string{"Authorization": "Bearer " + idToken}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("swept session admitted: %d", rec.Code)
	}
}

func TestStartSweeperStops(t *testing.T) {
	m := newTestManager(t)
	stop := m.StartSweeper(time.Millisecond)
	stop()
	stop()
}
