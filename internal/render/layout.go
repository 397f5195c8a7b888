// Package render は試験問題セットを印刷用 PDF に変換します。
//
// 変換は2段階です。Layout が Exam から行単位の配置（キャンバス座標）を決め、
// Encode がその配置を A4 幅に縮尺してページごとに切り出し、PDF に書き出します。
// Layout は作成後に変更しないため、別の goroutine で Encode しても安全です。
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/yourusername/exam-forge/internal/exam"
)

// キャンバスの寸法です。単位は 96dpi のピクセル相当で、幅は A4 (210mm) に一致します。
const (
	CanvasWidth = 794.0
	PageHeight  = CanvasWidth * 297 / 210

	marginX      = 48.0
	marginTop    = 48.0
	marginBottom = 48.0
	choiceIndent = 40.0
	blockGap     = 18.0
	sectionGap   = 10.0
)

// Instructions は試験用紙の冒頭に印字する注意書きです。
const Instructions = "Instructions: Read each question carefully. For multiple choice and true/false questions, " +
	"shade the circle of your answer. For identification, write your answer on the line provided."

const (
	nameLine   = "Name: ________________________________________"
	answerLine = "Answer: ________________________________"
)

// Style は行の書式です。
type Style string

const (
	StyleTitle        Style = "title"
	StyleMeta         Style = "meta"
	StyleInstructions Style = "instructions"
	StyleQuestion     Style = "question"
	StyleChoice       Style = "choice"
	StyleAnswer       Style = "answer"
)

type styleSpec struct {
	fontSize   float64
	lineHeight float64
	bold       bool
}

var styles = map[Style]styleSpec{
	StyleTitle:        {fontSize: 26, lineHeight: 36, bold: true},
	StyleMeta:         {fontSize: 14, lineHeight: 22},
	StyleInstructions: {fontSize: 13, lineHeight: 20},
	StyleQuestion:     {fontSize: 15, lineHeight: 24, bold: true},
	StyleChoice:       {fontSize: 14, lineHeight: 24},
	StyleAnswer:       {fontSize: 14, lineHeight: 26},
}

// Line はキャンバス上の1行です。Y は行の上端です。
type Line struct {
	Text     string  `json:"text"`
	Style    Style   `json:"style"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Height   float64 `json:"height"`
	Centered bool    `json:"centered,omitempty"`
	// Choice が true の行は先頭に白抜きのマーク欄を描きます。
	Choice bool `json:"choice,omitempty"`
}

// Layout は1回分の出力内容を確定させたものです。
type Layout struct {
	Title          string      `json:"title"`
	Filename       string      `json:"filename"`
	GeneratedAt    time.Time   `json:"generatedAt"`
	TotalQuestions int         `json:"totalQuestions"`
	TotalPoints    int         `json:"totalPoints"`
	Width          float64     `json:"width"`
	Height         float64     `json:"height"`
	PageHeight     float64     `json:"pageHeight"`
	Lines          []Line      `json:"lines"`
	Pages          []PageSlice `json:"pages"`
}

// PageCount は出力されるページ数です。
func (l *Layout) PageCount() int {
	return len(l.Pages)
}

// NewLayout は Exam のスナップショットから配置を決めます。ts は日付欄とファイル名にだけ使います。
func NewLayout(e exam.Exam, ts time.Time) *Layout {
	b := &builder{y: marginTop}

	b.add(e.Title, StyleTitle, marginX, true, false)
	b.gap(sectionGap)
	b.add("Date: "+FormatDate(ts), StyleMeta, marginX, false, false)
	b.add(nameLine, StyleMeta, marginX, false, false)
	b.add(fmt.Sprintf("Total Questions: %d", len(e.Questions)), StyleMeta, marginX, false, false)
	b.add(fmt.Sprintf("Total Points: %d", e.TotalPoints()), StyleMeta, marginX, false, false)
	b.gap(sectionGap)
	b.add(Instructions, StyleInstructions, marginX, false, false)
	b.gap(blockGap)

	for i, q := range e.Questions {
		b.add(QuestionHeading(i+1, q), StyleQuestion, marginX, false, false)
		switch body := q.Body.(type) {
		case exam.MultipleChoice:
			for j, opt := range body.Options {
				b.add(fmt.Sprintf("%c. %s", 'A'+j, opt), StyleChoice, marginX+choiceIndent, false, true)
			}
		case exam.TrueFalse:
			b.add("True", StyleChoice, marginX+choiceIndent, false, true)
			b.add("False", StyleChoice, marginX+choiceIndent, false, true)
		case exam.Identification:
			b.add(answerLine, StyleAnswer, marginX+choiceIndent, false, false)
		}
		b.gap(blockGap)
	}

	height := b.y + marginBottom
	return &Layout{
		Title:          e.Title,
		Filename:       Filename(e.Title, ts),
		GeneratedAt:    ts,
		TotalQuestions: len(e.Questions),
		TotalPoints:    e.TotalPoints(),
		Width:          CanvasWidth,
		Height:         height,
		PageHeight:     PageHeight,
		Lines:          b.lines,
		Pages:          Paginate(height, PageHeight),
	}
}

// QuestionHeading は "{n}. {問題文} ({配点} point[s])" 形式の見出しを返します。
func QuestionHeading(n int, q exam.Question) string {
	unit := "points"
	if q.Points == 1 {
		unit = "point"
	}
	return fmt.Sprintf("%d. %s (%d %s)", n, q.Prompt, q.Points, unit)
}

// FormatDate は日付欄の表記（M/D/YYYY）です。
func FormatDate(ts time.Time) string {
	return ts.Format("1/2/2006")
}

// Filename は "{タイトル(空白は_)}_{区切りなしISO8601}.pdf" 形式のファイル名を返します。
func Filename(title string, ts time.Time) string {
	utc := ts.UTC()
	stamp := fmt.Sprintf("%s%03dZ", utc.Format("20060102T150405"), utc.Nanosecond()/int(time.Millisecond))
	return fmt.Sprintf("%s_%s.pdf", strings.ReplaceAll(title, " ", "_"), stamp)
}

// PlainText は各行を文字列にしたものです。マーク欄は "( )" で表します。
func (l *Layout) PlainText() []string {
	out := make([]string, len(l.Lines))
	for i, line := range l.Lines {
		if line.Choice {
			out[i] = "( ) " + line.Text
			continue
		}
		out[i] = line.Text
	}
	return out
}

type builder struct {
	y     float64
	lines []Line
}

func (b *builder) gap(h float64) {
	b.y += h
}

func (b *builder) add(text string, style Style, x float64, centered, choice bool) {
	spec := styles[style]
	available := CanvasWidth - marginX - x
	if centered {
		available = CanvasWidth - 2*marginX
	}
	// 折り返した2行目以降にはマーク欄を描かない
	for i, part := range wrap(text, columnsFor(available, spec.fontSize)) {
		b.lines = append(b.lines, Line{
			Text:     part,
			Style:    style,
			X:        x,
			Y:        b.y,
			Height:   spec.lineHeight,
			Centered: centered,
			Choice:   choice && i == 0,
		})
		b.y += spec.lineHeight
	}
}

// columnsFor は幅に収まる半角換算の文字数です。半角1文字をフォントサイズの0.55倍として見積もります。
func columnsFor(width, fontSize float64) int {
	cols := int(width / (fontSize * 0.55))
	if cols < 1 {
		return 1
	}
	return cols
}

// wrap は表示幅で単語単位に折り返します。1語が幅を超える場合は文字単位で切ります。
func wrap(text string, maxCols int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var (
		lines   []string
		current strings.Builder
		width   int
	)
	flush := func() {
		lines = append(lines, current.String())
		current.Reset()
		width = 0
	}

	for _, word := range words {
		ww := runewidth.StringWidth(word)
		if width > 0 && width+1+ww > maxCols {
			flush()
		}
		for ww > maxCols {
			head := runewidth.Truncate(word, maxCols-width, "")
			if head == "" {
				// 全角1文字も入らない幅なら1文字ずつ出す
				head = string([]rune(word)[:1])
			}
			current.WriteString(head)
			flush()
			word = strings.TrimPrefix(word, head)
			ww = runewidth.StringWidth(word)
		}
		if word == "" {
			continue
		}
		if width > 0 {
			current.WriteByte(' ')
			width++
		}
		current.WriteString(word)
		width += ww
	}
	if width > 0 || len(lines) == 0 {
		flush()
	}
	return lines
}
