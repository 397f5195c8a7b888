package export

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/yourusername/exam-forge/internal/render"
	"github.com/yourusername/exam-forge/internal/storage"
)

const manifestFilename = "manifest.json"

// OperationType はジョブの種別です。
type OperationType string

// OperationExport は試験用紙の PDF 出力です。
const OperationExport OperationType = "export"

// JobManifest はジョブに必要な情報を保持します。Layout は準備時点のスナップショットで、
// 以後のエディタ操作の影響を受けません。
type JobManifest struct {
	JobID          string         `json:"jobId"`
	Operation      OperationType  `json:"operation"`
	SessionID      string         `json:"sessionId"`
	Filename       string         `json:"filename"`
	TotalQuestions int            `json:"totalQuestions"`
	Layout         *render.Layout `json:"layout"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func writeManifest(jobDir string, manifest *JobManifest) error {
	if manifest == nil {
		return fmt.Errorf("manifest is nil")
	}
	if err := storage.WriteJSON(filepath.Join(jobDir, manifestFilename), manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func loadManifest(jobDir string) (*JobManifest, error) {
	var manifest JobManifest
	if err := storage.ReadJSON(filepath.Join(jobDir, manifestFilename), &manifest); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return &manifest, nil
}
