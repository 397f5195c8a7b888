package auth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signupRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword"`
	DisplayName     string `json:"displayName"`
}

// Signup は /auth/signup のハンドラーです。成功するとそのままログイン状態になります。
func (m *Manager) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "email と password を JSON で送ってください",
		})
		return
	}

	user, err := m.gateway.Signup(c.Request.Context(), SignupInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		DisplayName:     req.DisplayName,
	})
	if err != nil {
		m.respondWithError(c, err)
		return
	}

	m.respondWithSession(c, http.StatusCreated, user)
}

// Login は /auth/login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "email と password を JSON で送ってください",
		})
		return
	}

	ip := c.ClientIP()
	if retryAfter := m.checkLock(ip); retryAfter > 0 {
		// Retry-After は秒数またはHTTP-Date形式が推奨されているため秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		m.respondWithError(c, newError(CodeTooManyAttempts, "一定時間後に再度お試しください", nil))
		return
	}

	user, err := m.gateway.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var authErr *Error
		if errors.As(err, &authErr) && authErr.Code == CodeInvalidCredentials {
			remaining := m.recordFailure(ip)
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":              authErr.Code,
				"message":           authErr.Message,
				"remainingAttempts": remaining,
			})
			return
		}
		m.respondWithError(c, err)
		return
	}

	m.resetAttempts(ip)
	m.respondWithSession(c, http.StatusOK, user)
}

// Logout は /auth/logout のハンドラーです。
func (m *Manager) Logout(c *gin.Context) {
	sess, _ := CurrentSession(c)
	if err := m.endSession(c, sess.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの削除に失敗しました",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// Me は /auth/me のハンドラーです。未ログインなら user は null です。
func (m *Manager) Me(c *gin.Context) {
	sess, failure := m.authenticate(c)
	if failure != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	user, ok := m.signal.Current(sess.ID)
	if !ok {
		// プロセス再起動後はクッキーだけが残っているので DB から引き直す
		found, err := m.gateway.Lookup(c.Request.Context(), sess.UserID)
		if err != nil {
			m.logger.Printf("failed to look up user session=%s: %v", sess.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ユーザー情報の取得に失敗しました",
			})
			return
		}
		if found == nil {
			_ = m.endSession(c, sess.ID)
			c.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}
		m.signal.Publish(Event{SessionID: sess.ID, User: found})
		user = *found
	}

	c.JSON(http.StatusOK, gin.H{
		"user":      user,
		"sessionId": sess.ID,
	})
}

func (m *Manager) respondWithSession(c *gin.Context, status int, user *User) {
	sess, csrf, err := m.startSession(c, user)
	if err != nil {
		m.logger.Printf("failed to start session user=%s: %v", user.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの保存に失敗しました",
		})
		return
	}

	idToken, expiresAt, err := m.tokens.Issue(sess)
	if err != nil {
		m.logger.Printf("failed to issue id token session=%s: %v", sess.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "TOKEN_GENERATION_FAILED",
			"message": "IDトークンの生成に失敗しました",
		})
		return
	}

	c.Header(csrfHeader, csrf)
	c.JSON(status, gin.H{
		"user":           user,
		"sessionId":      sess.ID,
		"idToken":        idToken,
		"tokenExpiresAt": expiresAt.UTC(),
	})
}

func (m *Manager) respondWithError(c *gin.Context, err error) {
	var authErr *Error
	if errors.As(err, &authErr) {
		c.JSON(statusForCode(authErr.Code), gin.H{
			"code":    authErr.Code,
			"message": authErr.Message,
		})
		return
	}
	m.logger.Printf("auth request failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "INTERNAL_ERROR",
		"message": "サーバー内部でエラーが発生しました",
	})
}
