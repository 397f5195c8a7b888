package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yourusername/exam-forge/internal/render"
)

// outputFilename は作業領域内での成果物のファイル名です。ダウンロード時の名前は manifest.Filename を使います。
const outputFilename = "exam.pdf"

// RunJob はジョブIDに対応する PDF 出力を実行します。
// 失敗した場合は作業領域を削除し、途中までの成果物は残しません。
func (s *Service) RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	ws, err := s.storage.Open(jobID)
	if err != nil {
		return nil, err
	}

	result, runErr := s.execute(ctx, ws.Dir, ws.OutDir, reporter)
	if runErr != nil {
		var renderErr *render.Error
		if errors.As(runErr, &renderErr) {
			s.logger.Printf("render failed job=%s: %v", jobID, runErr)
		}
		if cleanupErr := s.storage.Remove(ws.Dir); cleanupErr != nil {
			runErr = fmt.Errorf("%w (ワークスペースの削除にも失敗しました: %v)", runErr, cleanupErr)
		}
		return nil, runErr
	}
	return result, nil
}

func (s *Service) execute(ctx context.Context, jobDir, outDir string, reporter ProgressReporter) (*Result, error) {
	manifest, err := loadManifest(jobDir)
	if err != nil {
		return nil, err
	}
	if manifest.Operation != OperationExport {
		return nil, fmt.Errorf("unsupported operation: %s", manifest.Operation)
	}
	if manifest.Layout == nil {
		return nil, fmt.Errorf("manifest has no layout")
	}
	reportProgress(reporter, "layout", progressLayout)

	// 生成は取り消せないため、呼び出し元が待つのをやめても最後まで走る
	layout := manifest.Layout
	future := render.Go(func() ([]byte, error) {
		return s.encode(layout)
	})
	select {
	case <-future.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	data, err := future.Wait()
	if err != nil {
		return nil, err
	}
	reportProgress(reporter, "encode", progressEncode)

	outputPath := filepath.Join(outDir, outputFilename)
	if err := os.WriteFile(outputPath, data, 0o640); err != nil {
		return nil, fmt.Errorf("PDFの保存に失敗しました: %w", err)
	}
	reportProgress(reporter, "write", progressWrite)

	return &Result{
		JobID:          manifest.JobID,
		Operation:      manifest.Operation,
		SessionID:      manifest.SessionID,
		OutputPath:     outputPath,
		OutputFilename: manifest.Filename,
		OutputSize:     int64(len(data)),
		Meta: Meta{
			Title:          layout.Title,
			TotalQuestions: layout.TotalQuestions,
			TotalPoints:    layout.TotalPoints,
			Pages:          layout.PageCount(),
		},
		jobDir: jobDir,
		remove: s.storage.Remove,
	}, nil
}
