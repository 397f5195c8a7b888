package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type gateFailure struct {
	code    string
	message string
}

// RequireLogin はセッションゲートです。クッキーセッションか Bearer IDトークンを持つリクエストだけを通し、
// それ以外は未ログイン時の入口へ誘導する 401 を返します。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, failure := m.authenticate(c)
		if failure != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":       failure.code,
				"message":    failure.message,
				"redirectTo": UnauthenticatedEntry,
			})
			return
		}
		c.Set(ContextSessionKey, sess)
		c.Next()
	}
}

func (m *Manager) authenticate(c *gin.Context) (Session, *gateFailure) {
	if raw, ok := bearerToken(c.GetHeader("Authorization")); ok {
		sess, err := m.tokens.Verify(raw)
		if err != nil {
			return Session{}, &gateFailure{code: "UNAUTHORIZED", message: "IDトークンが無効です"}
		}
		if !m.activity.touchKnown(sess.ID, m.now()) {
			return Session{}, &gateFailure{code: "SESSION_ENDED", message: "このセッションは終了しています"}
		}
		c.Set(contextBearerKey, true)
		return sess, nil
	}

	session := sessions.Default(c)
	userID, _ := session.Get(sessionKeyUserID).(string)
	sessionID, _ := session.Get(sessionKeySessionID).(string)
	if userID == "" || sessionID == "" {
		return Session{}, &gateFailure{code: "UNAUTHORIZED", message: "ログインが必要です"}
	}

	now := m.now()
	issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
	lastActive := readUnix(session.Get(sessionKeyLastActive))

	if issuedAt.IsZero() || now.Sub(issuedAt) > maxSessionLifetime {
		_ = m.endSession(c, sessionID)
		return Session{}, &gateFailure{code: "SESSION_EXPIRED", message: "セッションの有効期限が切れました"}
	}

	if lastActive.IsZero() || now.Sub(lastActive) > idleTimeout {
		_ = m.endSession(c, sessionID)
		return Session{}, &gateFailure{code: "SESSION_IDLE_TIMEOUT", message: "しばらく操作がなかったため再ログインしてください"}
	}

	session.Set(sessionKeyLastActive, now.Unix())
	_ = session.Save()
	m.activity.touch(sessionID, issuedAt, now)

	email, _ := session.Get(sessionKeyEmail).(string)
	return Session{ID: sessionID, UserID: userID, Email: email}, nil
}

// VerifyCSRF は X-CSRF-Token ヘッダーを検証するミドルウェアです。
// Bearer トークンで認証されたリクエストはクッキーを使わないため検証しません。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) || c.GetBool(contextBearerKey) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, ok := session.Get(sessionKeyCSRF).(string)
		if !ok || expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_MISSING",
				"message": "CSRF トークンが設定されていません",
			})
			return
		}

		received := c.GetHeader(csrfHeader)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_INVALID",
				"message": "CSRF トークンが一致しません",
			})
			return
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
