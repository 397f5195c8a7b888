package exam

import (
	"log"
	"sync"

	"github.com/yourusername/exam-forge/internal/auth"
)

// Workspace は1セッション分のエディタ状態（Exam と設問カード）です。
// 各メソッドは1つのユーザー操作に対応し、ロックの内側で完結します。
type Workspace struct {
	mu    sync.Mutex
	exam  Exam
	cards map[int64]*Card
}

// NewWorkspace は空の Exam を持つ Workspace を作成します。
func NewWorkspace() *Workspace {
	return &Workspace{exam: New(), cards: make(map[int64]*Card)}
}

// CardView はカード1枚分の表示内容です。
type CardView struct {
	Question Question  `json:"question"`
	State    CardState `json:"state"`
	Draft    *Question `json:"draft,omitempty"`
}

// View はエディタ画面全体の表示内容です。
type View struct {
	Title          string     `json:"title"`
	Cards          []CardView `json:"questions"`
	TotalQuestions int        `json:"totalQuestions"`
	TotalPoints    int        `json:"totalPoints"`
}

// Exam は確定済みの Exam のスナップショットを返します。以後の編集は返り値に影響しません。
func (w *Workspace) Exam() Exam {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exam.clone()
}

// View は現在の表示内容を返します。
func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Workspace) viewLocked() View {
	view := View{
		Title:          w.exam.Title,
		Cards:          make([]CardView, 0, len(w.exam.Questions)),
		TotalQuestions: len(w.exam.Questions),
		TotalPoints:    w.exam.TotalPoints(),
	}
	for _, q := range w.exam.Questions {
		cv := CardView{Question: q, State: StateViewing}
		if card, ok := w.cards[q.ID]; ok {
			cv.State = card.State()
			if draft, editing := card.Draft(); editing {
				cv.Draft = &draft
			}
		}
		view.Cards = append(view.Cards, cv)
	}
	return view
}

// SetTitle はタイトルを変更します。
func (w *Workspace) SetTitle(title string) View {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exam = w.exam.SetTitle(title)
	return w.viewLocked()
}

// AddQuestion は設問を末尾に追加し、そのカードを Viewing で用意します。
func (w *Workspace) AddQuestion(kind Kind) (Question, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	next, q, err := w.exam.AddQuestion(kind)
	if err != nil {
		return Question{}, err
	}
	w.exam = next
	w.cards[q.ID] = NewCard(q.ID)
	return q, nil
}

// UpdateQuestion は設問を直接置き換えます。該当がなければ何もしません。
func (w *Workspace) UpdateQuestion(id int64, q Question) View {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exam = w.exam.UpdateQuestion(id, q)
	return w.viewLocked()
}

// DeleteQuestion は設問とそのカードを、編集中かどうかに関係なく取り除きます。
func (w *Workspace) DeleteQuestion(id int64) View {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exam = w.exam.DeleteQuestion(id)
	delete(w.cards, id)
	return w.viewLocked()
}

// BeginEdit は設問の編集を開始します。
func (w *Workspace) BeginEdit(id int64) (CardView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q, card, err := w.cardLocked(id)
	if err != nil {
		return CardView{}, err
	}
	card.BeginEdit(q)
	return w.cardViewLocked(id), nil
}

// Edit は編集中の作業コピーに fn を適用します。fn がエラーを返した場合、作業コピーは呼び出し前に戻ります。
func (w *Workspace) Edit(id int64, fn func(*Card) error) (CardView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, card, err := w.cardLocked(id)
	if err != nil {
		return CardView{}, err
	}
	before := *card
	if err := fn(card); err != nil {
		*card = before
		return w.cardViewLocked(id), err
	}
	return w.cardViewLocked(id), nil
}

// Save は作業コピーを確定します。
func (w *Workspace) Save(id int64) (CardView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, card, err := w.cardLocked(id)
	if err != nil {
		return CardView{}, err
	}
	next, err := card.Save(w.exam)
	if err != nil {
		return w.cardViewLocked(id), err
	}
	w.exam = next
	return w.cardViewLocked(id), nil
}

// Cancel は作業コピーを破棄します。
func (w *Workspace) Cancel(id int64) (CardView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, card, err := w.cardLocked(id)
	if err != nil {
		return CardView{}, err
	}
	card.Cancel()
	return w.cardViewLocked(id), nil
}

func (w *Workspace) cardLocked(id int64) (Question, *Card, error) {
	q, ok := w.exam.Question(id)
	if !ok {
		return Question{}, nil, newError(CodeQuestionNotFound, "指定された設問は存在しません", nil)
	}
	card, ok := w.cards[id]
	if !ok {
		card = NewCard(id)
		w.cards[id] = card
	}
	return q, card, nil
}

func (w *Workspace) cardViewLocked(id int64) CardView {
	q, _ := w.exam.Question(id)
	cv := CardView{Question: q, State: StateViewing}
	if card, ok := w.cards[id]; ok {
		cv.State = card.State()
		if draft, editing := card.Draft(); editing {
			cv.Draft = &draft
		}
	}
	return cv
}

// Store はセッションIDごとの Workspace を保持します。
// Workspace はエディタに初めてアクセスしたときに作られ、サインアウトで破棄されます。
type Store struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace
	logger     *log.Logger
}

// NewStore は空の Store を作成します。
func NewStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{workspaces: make(map[string]*Workspace), logger: logger}
}

// Get はセッションの Workspace を返します。なければ作成します。
func (s *Store) Get(sessionID string) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[sessionID]
	if !ok {
		ws = NewWorkspace()
		s.workspaces[sessionID] = ws
	}
	return ws
}

// Lookup は既存の Workspace を返します。作成はしません。
func (s *Store) Lookup(sessionID string) (*Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[sessionID]
	return ws, ok
}

// Discard はセッションの Workspace を破棄します。
func (s *Store) Discard(sessionID string) {
	s.mu.Lock()
	_, ok := s.workspaces[sessionID]
	delete(s.workspaces, sessionID)
	s.mu.Unlock()
	if ok {
		s.logger.Printf("discarded exam workspace session=%s", sessionID)
	}
}

// Len は保持している Workspace の数です。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}

// Snapshot はセッションの確定済み Exam を返します。
func (s *Store) Snapshot(sessionID string) Exam {
	return s.Get(sessionID).Exam()
}

// Watch はサインアウト通知を購読し、対応する Workspace を破棄します。戻り値で購読を解除します。
func (s *Store) Watch(sig *auth.Signal) (unsubscribe func()) {
	return sig.Subscribe(func(ev auth.Event) {
		if ev.User == nil {
			s.Discard(ev.SessionID)
		}
	})
}
