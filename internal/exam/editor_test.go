package exam

import (
	"errors"
	"testing"
)

func editingCard(t *testing.T, kind Kind) (Exam, *Card, Question) {
	t.Helper()
	e, q := mustAdd(t, New(), kind)
	card := NewCard(q.ID)
	if card.State() != StateViewing {
		t.Fatalf("new card state = %s, want viewing", card.State())
	}
	card.BeginEdit(q)
	if card.State() != StateEditing {
		t.Fatalf("state after BeginEdit = %s, want editing", card.State())
	}
	return e, card, q
}

func errorCode(err error) string {
	var examErr *Error
	if errors.As(err, &examErr) {
		return examErr.Code
	}
	return ""
}

func TestCardRequiresEditing(t *testing.T) {
	card := NewCard(1)
	if _, ok := card.Draft(); ok {
		t.Fatal("viewing card should not expose a draft")
	}
	if err := card.SetPrompt("x"); errorCode(err) != CodeNotEditing {
		t.Fatalf("SetPrompt err = %v, want NOT_EDITING", err)
	}
	if _, err := card.Save(New()); errorCode(err) != CodeNotEditing {
		t.Fatalf("Save err = %v, want NOT_EDITING", err)
	}
	card.Cancel()
	if card.State() != StateViewing {
		t.Fatal("Cancel while viewing should stay viewing")
	}
}

func TestCardSaveCommitsDraft(t *testing.T) {
	e, card, q := editingCard(t, KindMultipleChoice)

	steps := []func() error{
		func() error { return card.SetPrompt("2+2=?") },
		func() error { return card.SetOption(0, "3") },
		func() error { return card.SetOption(1, "4") },
		func() error { return card.SetOption(2, "5") },
		func() error { return card.SetOption(3, "6") },
		func() error { return card.SelectCorrect("4") },
		func() error { return card.SetPoints("2") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d returned error: %v", i, err)
		}
	}

	// 保存するまで Exam は変わらない
	if committed, _ := e.Question(q.ID); committed.Prompt != "" {
		t.Fatalf("draft leaked before save: %#v", committed)
	}

	saved, err := card.Save(e)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if card.State() != StateViewing {
		t.Fatalf("state after Save = %s", card.State())
	}
	got, _ := saved.Question(q.ID)
	if got.Prompt != "2+2=?" || got.Points != 2 || got.CorrectAnswer() != "4" {
		t.Fatalf("unexpected saved question: %#v", got)
	}
	if opts := got.Options(); len(opts) != 4 || opts[0] != "3" || opts[3] != "6" {
		t.Fatalf("unexpected options: %v", opts)
	}
}

func TestCardCancelDiscardsDraft(t *testing.T) {
	e, card, q := editingCard(t, KindIdentification)
	if err := card.SetPrompt("discard me"); err != nil {
		t.Fatalf("SetPrompt returned error: %v", err)
	}
	card.Cancel()
	if card.State() != StateViewing {
		t.Fatalf("state after Cancel = %s", card.State())
	}
	if committed, _ := e.Question(q.ID); committed.Prompt != "" {
		t.Fatalf("cancel changed the committed question: %#v", committed)
	}

	// 再度編集を始めると確定済みの内容から作り直す
	card.BeginEdit(q)
	draft, _ := card.Draft()
	if draft.Prompt != "" {
		t.Fatalf("draft was not reseeded: %#v", draft)
	}
}

func TestCardOptionsStayFixedLength(t *testing.T) {
	_, card, _ := editingCard(t, KindMultipleChoice)
	for i := 0; i < 20; i++ {
		_ = card.SetOption(i%6-1, "x")
		draft, _ := card.Draft()
		if len(draft.Options()) != OptionCount {
			t.Fatalf("options length changed to %d", len(draft.Options()))
		}
	}
	if err := card.SetOption(4, "E"); errorCode(err) != CodeInvalidOptionIndex {
		t.Fatalf("SetOption(4) err = %v", err)
	}
	if err := card.SetOption(-1, "E"); errorCode(err) != CodeInvalidOptionIndex {
		t.Fatalf("SetOption(-1) err = %v", err)
	}

	_, tf, _ := editingCard(t, KindTrueFalse)
	if err := tf.SetOption(0, "x"); errorCode(err) != CodeInvalidInput {
		t.Fatalf("SetOption on true/false err = %v", err)
	}
}

func TestCardSelectCorrectReplacesPrevious(t *testing.T) {
	_, card, _ := editingCard(t, KindMultipleChoice)
	for i, text := range []string{"a", "b", "c", "d"} {
		if err := card.SetOption(i, text); err != nil {
			t.Fatalf("SetOption returned error: %v", err)
		}
	}
	for _, pick := range []string{"a", "c"} {
		if err := card.SelectCorrect(pick); err != nil {
			t.Fatalf("SelectCorrect(%q) returned error: %v", pick, err)
		}
	}
	draft, _ := card.Draft()
	if draft.CorrectAnswer() != "c" {
		t.Fatalf("CorrectAnswer = %q, want c", draft.CorrectAnswer())
	}
	if err := card.SelectCorrect("z"); errorCode(err) != CodeInvalidAnswer {
		t.Fatalf("SelectCorrect(z) err = %v", err)
	}

	// 選択肢の文字列を変えても正答は追従しない
	if err := card.SetOption(2, "changed"); err != nil {
		t.Fatalf("SetOption returned error: %v", err)
	}
	draft, _ = card.Draft()
	if draft.CorrectAnswer() != "c" {
		t.Fatalf("stale correct answer was rewritten: %q", draft.CorrectAnswer())
	}

	_, tf, _ := editingCard(t, KindTrueFalse)
	if err := tf.SelectCorrect("false"); err != nil {
		t.Fatalf("SelectCorrect(false) returned error: %v", err)
	}
	if draft, _ := tf.Draft(); draft.CorrectAnswer() != "false" {
		t.Fatalf("CorrectAnswer = %q, want false", draft.CorrectAnswer())
	}
	if err := tf.SelectCorrect("yes"); errorCode(err) != CodeInvalidAnswer {
		t.Fatalf("SelectCorrect(yes) err = %v", err)
	}
}

func TestCardSetPointsCoercion(t *testing.T) {
	_, card, _ := editingCard(t, KindIdentification)

	steps := []struct {
		raw  string
		want int
	}{
		{"abc", 1},
		{"0", 1},
		{"3", 3},
		{"abc", 3},
		{"0", 3},
		{"-4", 3},
		{"5", 5},
	}
	for _, s := range steps {
		if err := card.SetPoints(s.raw); err != nil {
			t.Fatalf("SetPoints(%q) returned error: %v", s.raw, err)
		}
		draft, _ := card.Draft()
		if draft.Points != s.want {
			t.Fatalf("after SetPoints(%q) Points = %d, want %d", s.raw, draft.Points, s.want)
		}
	}
}
