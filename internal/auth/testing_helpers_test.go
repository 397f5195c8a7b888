package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/exam-forge/internal/config"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	users, err := OpenUserStore(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("OpenUserStore returned error: %v", err)
	}
	t.Cleanup(func() { _ = users.Close() })

	gw := NewGateway(users, 6)
	gw.hashCost = bcrypt.MinCost
	return gw
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{
		SessionSecret:     "test-secret",
		TokenIssuer:       "exam-forge-test",
		TokenTTLMinutes:   5,
		MinPasswordLength: 6,
	}
	return NewManager(cfg, newTestGateway(t), NewSignal(), log.New(io.Discard, "", 0))
}

func newTestRouter(m *Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions(SessionCookieName, cookie.NewStore([]byte("test-secret"))))
	router.POST("/api/auth/signup", m.Signup)
	router.POST("/api/auth/login", m.Login)
	router.GET("/api/auth/me", m.Me)
	router.POST("/api/auth/logout", m.RequireLogin(), m.VerifyCSRF(), m.Logout)
	router.GET("/api/protected", m.RequireLogin(), func(c *gin.Context) {
		sess, _ := CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{"sessionId": sess.ID})
	})
	return router
}

type testClient struct {
	t       *testing.T
	router  *gin.Engine
	cookies []*http.Cookie
	csrf    string
}

func (tc *testClient) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	tc.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			tc.t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, ck := range tc.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	if cks := rec.Result().Cookies(); len(cks) > 0 {
		tc.cookies = cks
	}
	if token := rec.Header().Get(csrfHeader); token != "" {
		tc.csrf = token
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response %q: %v", rec.Body.String(), err)
	}
	return payload
}
