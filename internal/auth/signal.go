package auth

import "sync"

// Event は現在ユーザーの変化を表します。User が nil ならサインアウト（または期限切れ）です。
type Event struct {
	SessionID string
	User      *User
}

// Signal はセッションごとの現在ユーザーを保持し、変化を購読者へ通知します。
// 購読者に渡す User はコピーなので、保持し続けても共有状態にはなりません。
type Signal struct {
	mu      sync.RWMutex
	current map[string]User
	subs    map[int]func(Event)
	nextID  int
}

// NewSignal は空の Signal を作成します。
func NewSignal() *Signal {
	return &Signal{
		current: make(map[string]User),
		subs:    make(map[int]func(Event)),
	}
}

// Subscribe は fn を登録し、登録解除用の関数を返します。解除は何度呼んでも安全です。
func (s *Signal) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Publish は現在ユーザーを更新し、購読者に通知します。
func (s *Signal) Publish(ev Event) {
	if ev.SessionID == "" {
		return
	}

	s.mu.Lock()
	if ev.User == nil {
		delete(s.current, ev.SessionID)
	} else {
		s.current[ev.SessionID] = *ev.User
	}
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(copyEvent(ev))
	}
}

// Current はセッションの現在ユーザーのスナップショットを返します。
func (s *Signal) Current(sessionID string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.current[sessionID]
	return user, ok
}

func copyEvent(ev Event) Event {
	if ev.User == nil {
		return ev
	}
	u := *ev.User
	return Event{SessionID: ev.SessionID, User: &u}
}
