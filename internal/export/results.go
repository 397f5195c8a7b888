package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// OpenResultFile はジョブIDに対応する成果物ファイルを開き、Result 情報とファイルハンドルを返します。
func (s *Service) OpenResultFile(jobID string) (*Result, *os.File, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, nil, fmt.Errorf("jobID is required")
	}

	ws, err := s.storage.Open(jobID)
	if err != nil {
		return nil, nil, notFound(err)
	}
	manifest, err := loadManifest(ws.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, notFound(err)
		}
		return nil, nil, err
	}

	outputPath := filepath.Join(ws.OutDir, outputFilename)
	file, err := os.Open(outputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, notFound(err)
		}
		return nil, nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	result := &Result{
		JobID:          jobID,
		Operation:      manifest.Operation,
		SessionID:      manifest.SessionID,
		OutputPath:     outputPath,
		OutputFilename: manifest.Filename,
		OutputSize:     info.Size(),
		jobDir:         ws.Dir,
		remove:         s.storage.Remove,
	}
	if manifest.Layout != nil {
		result.Meta = Meta{
			Title:          manifest.Layout.Title,
			TotalQuestions: manifest.Layout.TotalQuestions,
			TotalPoints:    manifest.Layout.TotalPoints,
			Pages:          manifest.Layout.PageCount(),
		}
	}
	return result, file, nil
}

func notFound(err error) error {
	return newError(CodeJobNotFound, "ジョブの成果物が見つかりませんでした。", err)
}
