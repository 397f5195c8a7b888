package jobs

import (
	"time"

	"github.com/yourusername/exam-forge/internal/export"
)

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "done"
	StatusFailed    Status = "error"
)

// Finished は完了または失敗で、これ以上状態が変わらないかを返します。
func (s Status) Finished() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ProgressInfo は進捗の補足情報を表します。Stage は queued, load, layout, encode, write, completed のいずれかです。
type ProgressInfo struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record は出力ジョブの現在状態を表します。SessionID はジョブを作成したセッションで、
// 状態の参照はそのセッションにだけ許します。
type Record struct {
	JobID       string       `json:"jobId"`
	SessionID   string       `json:"sessionId,omitempty"`
	Operation   string       `json:"operation"`
	Status      Status       `json:"status"`
	Progress    ProgressInfo `json:"progress"`
	DownloadURL string       `json:"downloadUrl,omitempty"`
	Meta        *export.Meta `json:"meta,omitempty"`
	Error       *ErrorInfo   `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}
