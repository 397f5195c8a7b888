// Package export は試験用紙の PDF 出力をジョブとして実行します。
//
// PrepareExport がレイアウトを確定してジョブ作業領域にマニフェストを書き、
// RunJob がマニフェストから PDF を生成して out/ に保存します。
// 同期出力でも非同期ジョブでも同じ手順を通ります。
package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/exam-forge/internal/exam"
	"github.com/yourusername/exam-forge/internal/render"
	"github.com/yourusername/exam-forge/internal/storage"
)

// Service はエクスポートジョブの準備と実行を提供します。
type Service struct {
	storage       *storage.Local
	logger        *log.Logger
	expireMinutes int
	now           func() time.Time
	encode        func(*render.Layout) ([]byte, error)
}

// NewService は Service を作成します。expireMinutes 経過した作業領域は自動で削除されます。
func NewService(store *storage.Local, expireMinutes int, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("storage is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		storage:       store,
		logger:        logger,
		expireMinutes: expireMinutes,
		now:           time.Now,
		encode:        render.Render,
	}, nil
}

// PrepareExport は Exam のスナップショットからレイアウトを確定し、ジョブとして保存します。
func (s *Service) PrepareExport(ctx context.Context, sessionID string, e exam.Exam, ts time.Time) (*JobManifest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ws, err := s.storage.CreateWorkspace()
	if err != nil {
		return nil, fmt.Errorf("ジョブ作業領域の作成に失敗しました: %w", err)
	}

	layout := render.NewLayout(e, ts)
	manifest := &JobManifest{
		JobID:          ws.JobID,
		Operation:      OperationExport,
		SessionID:      sessionID,
		Filename:       layout.Filename,
		TotalQuestions: layout.TotalQuestions,
		Layout:         layout,
		CreatedAt:      s.now().UTC(),
	}
	if err := writeManifest(ws.Dir, manifest); err != nil {
		_ = s.storage.Remove(ws.Dir)
		return nil, fmt.Errorf("ジョブマニフェストの保存に失敗しました: %w", err)
	}
	s.storage.ExpireAfter(ws.Dir, s.expireMinutes)
	return manifest, nil
}

// DiscardJob はジョブの作業領域を削除します。
func (s *Service) DiscardJob(jobID string) error {
	ws, err := s.storage.Open(jobID)
	if err != nil {
		return err
	}
	return s.storage.Remove(ws.Dir)
}
