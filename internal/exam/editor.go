package exam

import (
	"fmt"
	"strconv"
)

// CardState は設問カードの表示状態です。
type CardState string

const (
	StateViewing CardState = "viewing"
	StateEditing CardState = "editing"
)

// Card は1つの設問の編集状態を持ちます。編集中の変更は Save するまで Exam に反映されません。
// 新しく追加された設問のカードは Viewing から始まります。
type Card struct {
	id    int64
	state CardState
	draft Question
}

// NewCard は Viewing 状態のカードを作成します。
func NewCard(id int64) *Card {
	return &Card{id: id, state: StateViewing}
}

// State は現在の状態を返します。
func (c *Card) State() CardState {
	return c.state
}

// Draft は編集中の作業コピーを返します。Viewing 中は false です。
func (c *Card) Draft() (Question, bool) {
	if c.state != StateEditing {
		return Question{}, false
	}
	return c.draft, true
}

// BeginEdit は確定済みの設問から作業コピーを作り、Editing に移ります。
// 既に編集中なら作業コピーをそのまま残します。
func (c *Card) BeginEdit(committed Question) {
	if c.state == StateEditing {
		return
	}
	c.draft = committed
	c.state = StateEditing
}

// SetPrompt は問題文を変更します。
func (c *Card) SetPrompt(text string) error {
	if err := c.requireEditing(); err != nil {
		return err
	}
	c.draft.Prompt = text
	return nil
}

// SetOption は index 番目（0〜3）の選択肢を変更します。多肢選択問題のみ有効です。
// 正答の文字列は追従させません。
func (c *Card) SetOption(index int, text string) error {
	if err := c.requireEditing(); err != nil {
		return err
	}
	mc, ok := c.draft.Body.(MultipleChoice)
	if !ok {
		return newError(CodeInvalidInput, "選択肢を持つのは多肢選択問題だけです", nil)
	}
	if index < 0 || index >= OptionCount {
		return newError(CodeInvalidOptionIndex, fmt.Sprintf("選択肢の番号は0から%dで指定してください", OptionCount-1), nil)
	}
	mc.Options[index] = text
	c.draft.Body = mc
	return nil
}

// SelectCorrect は正答を選び直します。以前の選択は置き換えられます。
// 多肢選択問題では現在の選択肢のいずれか、正誤問題では "true" か "false" を指定します。
func (c *Card) SelectCorrect(value string) error {
	if err := c.requireEditing(); err != nil {
		return err
	}
	switch b := c.draft.Body.(type) {
	case MultipleChoice:
		if !b.hasOption(value) {
			return newError(CodeInvalidAnswer, "正答は選択肢の中から選んでください", nil)
		}
		b.Correct = value
		c.draft.Body = b
	case TrueFalse:
		correct, err := strconv.ParseBool(value)
		if err != nil || (value != "true" && value != "false") {
			return newError(CodeInvalidAnswer, "正誤問題の正答は true か false で指定してください", err)
		}
		b.Correct = correct
		c.draft.Body = b
	case Identification:
		b.Correct = value
		c.draft.Body = b
	default:
		return newError(CodeInvalidInput, "設問の種別が不正です", nil)
	}
	return nil
}

// SetPoints は配点を変更します。解釈できない値や1未満の値は直前の有効な値に戻します。
func (c *Card) SetPoints(raw string) error {
	if err := c.requireEditing(); err != nil {
		return err
	}
	c.draft.Points = CoercePoints(raw, c.draft.Points)
	return nil
}

// Save は作業コピーを検証して Exam に反映し、Viewing に戻ります。
func (c *Card) Save(e Exam) (Exam, error) {
	if err := c.requireEditing(); err != nil {
		return e, err
	}
	draft := c.draft
	draft.ID = c.id
	if draft.Points < 1 {
		draft.Points = 1
	}
	c.state = StateViewing
	c.draft = Question{}
	return e.UpdateQuestion(c.id, draft), nil
}

// Cancel は作業コピーを破棄して Viewing に戻ります。Viewing 中に呼んでも何もしません。
func (c *Card) Cancel() {
	c.state = StateViewing
	c.draft = Question{}
}

func (c *Card) requireEditing() error {
	if c.state != StateEditing {
		return newError(CodeNotEditing, "編集を開始してから変更してください", nil)
	}
	return nil
}
