// Package exam は試験問題セットの編集モデルを提供します。
//
// Exam は値として扱い、各操作は新しい Exam を返します。受け取った Exam は変更しません。
package exam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind は設問の種別です。作成後は変わりません。
type Kind string

const (
	KindMultipleChoice Kind = "multiple"
	KindTrueFalse      Kind = "true-false"
	KindIdentification Kind = "identification"
)

// OptionCount は多肢選択問題の選択肢数です。
const OptionCount = 4

// ParseKind は文字列を Kind に変換します。
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(s)); k {
	case KindMultipleChoice, KindTrueFalse, KindIdentification:
		return k, nil
	default:
		return "", newError(CodeUnknownKind, fmt.Sprintf("設問の種別が不正です: %q", s), nil)
	}
}

// Body は種別ごとの設問内容です。MultipleChoice, TrueFalse, Identification のいずれかです。
type Body interface {
	Kind() Kind
}

// MultipleChoice は4択問題です。Correct は空か、選択肢のいずれかの文字列です。
type MultipleChoice struct {
	Options [OptionCount]string
	Correct string
}

// TrueFalse は正誤問題です。
type TrueFalse struct {
	Correct bool
}

// Identification は記述（語句）問題です。
type Identification struct {
	Correct string
}

func (MultipleChoice) Kind() Kind { return KindMultipleChoice }
func (TrueFalse) Kind() Kind      { return KindTrueFalse }
func (Identification) Kind() Kind { return KindIdentification }

func (mc MultipleChoice) hasOption(value string) bool {
	for _, opt := range mc.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Question は1つの設問です。
type Question struct {
	ID     int64
	Prompt string
	Points int
	Body   Body
}

// Kind は設問の種別を返します。
func (q Question) Kind() Kind {
	if q.Body == nil {
		return ""
	}
	return q.Body.Kind()
}

// CorrectAnswer は正答を文字列で返します。正誤問題は "true" / "false" です。
func (q Question) CorrectAnswer() string {
	switch b := q.Body.(type) {
	case MultipleChoice:
		return b.Correct
	case TrueFalse:
		return strconv.FormatBool(b.Correct)
	case Identification:
		return b.Correct
	default:
		return ""
	}
}

// Options は選択肢を返します。多肢選択問題以外は空です。
func (q Question) Options() []string {
	if mc, ok := q.Body.(MultipleChoice); ok {
		return append([]string(nil), mc.Options[:]...)
	}
	return []string{}
}

func defaultBody(kind Kind) (Body, error) {
	switch kind {
	case KindMultipleChoice:
		return MultipleChoice{}, nil
	case KindTrueFalse:
		return TrueFalse{Correct: true}, nil
	case KindIdentification:
		return Identification{}, nil
	default:
		return nil, newError(CodeUnknownKind, fmt.Sprintf("設問の種別が不正です: %q", kind), nil)
	}
}

// CoercePoints は入力値を配点に変換します。1以上の整数として解釈できなければ fallback を返し、
// fallback も不正なら 1 を返します。
func CoercePoints(raw string, fallback int) int {
	if n, ok := parsePoints(raw); ok {
		return n
	}
	if fallback < 1 {
		return 1
	}
	return fallback
}

// maxPoints は1問あたりの配点の上限です。合計が int に収まるようにします。
const maxPoints = 1_000_000_000

func parsePoints(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil {
		// "3.5" のような入力は整数部だけを使う
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || math.IsNaN(f) || math.Abs(f) > maxPoints {
			return 0, false
		}
		n = int(f)
	}
	if n < 1 || n > maxPoints {
		return 0, false
	}
	return n, true
}

// wireQuestion はクライアントとやり取りする JSON 形式です。
type wireQuestion struct {
	ID            int64           `json:"id"`
	Type          Kind            `json:"type"`
	Question      string          `json:"question"`
	Points        json.RawMessage `json:"points,omitempty"`
	Options       []string        `json:"options"`
	CorrectAnswer string          `json:"correctAnswer"`
}

// MarshalJSON は設問を {id, type, question, points, options, correctAnswer} 形式で出力します。
func (q Question) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID            int64    `json:"id"`
		Type          Kind     `json:"type"`
		Question      string   `json:"question"`
		Points        int      `json:"points"`
		Options       []string `json:"options"`
		CorrectAnswer string   `json:"correctAnswer"`
	}{
		ID:            q.ID,
		Type:          q.Kind(),
		Question:      q.Prompt,
		Points:        q.Points,
		Options:       q.Options(),
		CorrectAnswer: q.CorrectAnswer(),
	})
}

// UnmarshalJSON は JSON 形式から設問を復元します。配点が不正な場合は 0 のままにし、
// UpdateQuestion 側で直前の有効な値に戻します。
func (q *Question) UnmarshalJSON(data []byte) error {
	var w wireQuestion
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, err := ParseKind(string(w.Type))
	if err != nil {
		return err
	}

	var body Body
	switch kind {
	case KindMultipleChoice:
		if len(w.Options) != OptionCount {
			return newError(CodeInvalidInput, fmt.Sprintf("選択肢は%d個で指定してください", OptionCount), nil)
		}
		mc := MultipleChoice{Correct: w.CorrectAnswer}
		copy(mc.Options[:], w.Options)
		if mc.Correct != "" && !mc.hasOption(mc.Correct) {
			return newError(CodeInvalidAnswer, "正答は選択肢の中から選んでください", nil)
		}
		body = mc
	case KindTrueFalse:
		correct, err := parseTrueFalse(w.CorrectAnswer)
		if err != nil {
			return err
		}
		body = TrueFalse{Correct: correct}
	case KindIdentification:
		body = Identification{Correct: w.CorrectAnswer}
	}

	points, _ := parsePoints(rawPoints(w.Points))
	*q = Question{
		ID:     w.ID,
		Prompt: w.Question,
		Points: points,
		Body:   body,
	}
	return nil
}

// rawPoints は数値・文字列どちらの JSON でも中身の文字列を返します。
func rawPoints(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func parseTrueFalse(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, newError(CodeInvalidAnswer, "正誤問題の正答は true か false で指定してください", nil)
	}
}
