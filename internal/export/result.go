package export

import (
	"sync"
)

// Meta は出力結果の補足情報です。ジョブ状態にもそのまま載せます。
type Meta struct {
	Title          string `json:"title"`
	TotalQuestions int    `json:"totalQuestions"`
	TotalPoints    int    `json:"totalPoints"`
	Pages          int    `json:"pages"`
}

// Result は PDF 出力の成果を表します。
type Result struct {
	JobID          string        `json:"jobId"`
	Operation      OperationType `json:"operation"`
	SessionID      string        `json:"-"`
	OutputPath     string        `json:"outputPath"`
	OutputFilename string        `json:"outputFilename"`
	OutputSize     int64         `json:"outputSize"`
	Meta           Meta          `json:"meta"`

	jobDir      string
	remove      func(string) error
	cleanupOnce sync.Once
	cleanupErr  error
}

// Cleanup は作業ディレクトリを削除します。何度呼んでも削除は1回だけです。
func (r *Result) Cleanup() error {
	if r == nil || r.remove == nil {
		return nil
	}
	r.cleanupOnce.Do(func() {
		r.cleanupErr = r.remove(r.jobDir)
	})
	return r.cleanupErr
}
