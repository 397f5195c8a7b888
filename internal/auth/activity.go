package auth

import (
	"sync"
	"time"
)

// activity はサーバー側で把握している有効なセッションです。
// Bearer トークンはここに残っているセッションでしか通りません。
type activity struct {
	mu       sync.Mutex
	sessions map[string]sessionTimes
}

type sessionTimes struct {
	issuedAt   time.Time
	lastActive time.Time
}

func newActivity() *activity {
	return &activity{sessions: make(map[string]sessionTimes)}
}

func (a *activity) start(sessionID string, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[sessionID] = sessionTimes{issuedAt: now, lastActive: now}
}

// touch は最終操作時刻を更新します。未登録のセッションは issuedAt を使って登録します。
func (a *activity) touch(sessionID string, issuedAt, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.sessions[sessionID]
	if !ok {
		st.issuedAt = issuedAt
	}
	st.lastActive = now
	a.sessions[sessionID] = st
}

// touchKnown は登録済みのセッションだけを更新します。期限切れなら登録を外して false を返します。
func (a *activity) touchKnown(sessionID string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.sessions[sessionID]
	if !ok {
		return false
	}
	if expired(st, now) {
		delete(a.sessions, sessionID)
		return false
	}
	st.lastActive = now
	a.sessions[sessionID] = st
	return true
}

func (a *activity) end(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, sessionID)
}

// expire は期限切れのセッションを外し、その ID を返します。
func (a *activity) expire(now time.Time) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var ended []string
	for id, st := range a.sessions {
		if expired(st, now) {
			delete(a.sessions, id)
			ended = append(ended, id)
		}
	}
	return ended
}

func (a *activity) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func expired(st sessionTimes, now time.Time) bool {
	return now.Sub(st.lastActive) > idleTimeout || now.Sub(st.issuedAt) > maxSessionLifetime
}

// SweepIdle は放置されたセッションを終了し、サインアウトを通知します。
// 通知を受けた Signal の購読者（エディタの作業状態など）がそのセッションの状態を破棄します。
func (m *Manager) SweepIdle() int {
	ended := m.activity.expire(m.now())
	for _, id := range ended {
		m.signal.Publish(Event{SessionID: id})
	}
	if len(ended) > 0 {
		m.logger.Printf("ended %d idle sessions", len(ended))
	}
	return len(ended)
}

// StartSweeper は interval ごとに SweepIdle を実行します。戻り値で停止します。
func (m *Manager) StartSweeper(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				m.SweepIdle()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
