// Package auth はアカウント管理・ログインセッション・セッションゲートを提供します。
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/exam-forge/internal/config"
)

const (
	SessionCookieName    = "ef_session"
	sessionKeyUserID     = "user_id"
	sessionKeyEmail      = "email"
	sessionKeySessionID  = "session_id"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
	sessionKeyCSRF       = "csrf_token"

	csrfHeader = "X-CSRF-Token"

	// UnauthenticatedEntry は未ログイン時の戻り先です。
	UnauthenticatedEntry = "/"
)

var (
	maxSessionLifetime = 12 * time.Hour
	idleTimeout        = 30 * time.Minute
	loginWindow        = 15 * time.Minute
	lockDuration       = 10 * time.Minute
	maxLoginAttempts   = 5
)

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// ContextSessionKey は、ハンドラー間でログイン中のセッションを共有するためのキーです。
const ContextSessionKey = "auth.session"

const contextBearerKey = "auth.bearer"

// Session はログイン中のセッションを表します。ID はエディタの作業状態の単位にもなります。
type Session struct {
	ID     string `json:"sessionId"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	cfg      *config.Config
	gateway  *Gateway
	signal   *Signal
	tokens   *TokenIssuer
	activity *activity
	logger   *log.Logger
	lock     sync.Mutex
	attempts map[string]*attemptState
	now      func() time.Time
}

// NewManager は認証マネージャーを作成します。
func NewManager(cfg *config.Config, gateway *Gateway, signal *Signal, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		cfg:      cfg,
		gateway:  gateway,
		signal:   signal,
		tokens:   NewTokenIssuer(cfg.SessionSecret, cfg.TokenIssuer, time.Duration(cfg.TokenTTLMinutes)*time.Minute),
		activity: newActivity(),
		logger:   logger,
		attempts: make(map[string]*attemptState),
		now:      time.Now,
	}
}

// Signal は現在ユーザーの通知元を返します。
func (m *Manager) Signal() *Signal {
	return m.signal
}

// CurrentSession はセッションゲートを通過したリクエストのセッションを返します。
func CurrentSession(c *gin.Context) (Session, bool) {
	v, ok := c.Get(ContextSessionKey)
	if !ok {
		return Session{}, false
	}
	sess, ok := v.(Session)
	return sess, ok && sess.ID != ""
}

// startSession はクッキーセッションを開始し、現在ユーザーを通知します。
func (m *Manager) startSession(c *gin.Context, user *User) (Session, string, error) {
	token, err := generateToken()
	if err != nil {
		return Session{}, "", err
	}

	session := sessions.Default(c)
	if previous, ok := session.Get(sessionKeySessionID).(string); ok && previous != "" {
		m.activity.end(previous)
		m.signal.Publish(Event{SessionID: previous})
	}

	sess := Session{
		ID:     uuid.NewString(),
		UserID: user.ID.String(),
		Email:  user.Email,
	}
	now := m.now()
	session.Clear()
	session.Set(sessionKeyUserID, sess.UserID)
	session.Set(sessionKeyEmail, sess.Email)
	session.Set(sessionKeySessionID, sess.ID)
	session.Set(sessionKeyIssuedAt, now.Unix())
	session.Set(sessionKeyLastActive, now.Unix())
	session.Set(sessionKeyCSRF, token)
	if err := session.Save(); err != nil {
		return Session{}, "", err
	}

	m.activity.start(sess.ID, now)
	m.signal.Publish(Event{SessionID: sess.ID, User: user})
	return sess, token, nil
}

// endSession はセッションを破棄し、サインアウトを通知します。同じセッションの IDトークンも以後は通りません。
func (m *Manager) endSession(c *gin.Context, sessionID string) error {
	session := sessions.Default(c)
	session.Clear()
	err := session.Save()
	if sessionID != "" {
		m.activity.end(sessionID)
		m.signal.Publish(Event{SessionID: sessionID})
	}
	return err
}

func (m *Manager) checkLock(ip string) time.Duration {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[ip]
	if !ok {
		return 0
	}
	now := m.now()
	if now.After(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

func (m *Manager) recordFailure(ip string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	state, ok := m.attempts[ip]
	if !ok || now.Sub(state.firstAttempt) > loginWindow {
		state = &attemptState{firstAttempt: now}
		m.attempts[ip] = state
	}

	state.count++
	if state.count >= maxLoginAttempts {
		state.lockedUntil = now.Add(lockDuration)
		state.count = maxLoginAttempts
	}

	remaining := maxLoginAttempts - state.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (m *Manager) resetAttempts(ip string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, ip)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GenerateSecret は開発用に一時的なセッション鍵を作成します。
func GenerateSecret() (string, error) {
	return generateToken()
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}
