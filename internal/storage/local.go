// Package storage はジョブ作業ディレクトリを扱うローカルストレージを提供します。
//
// 保存先のレイアウト:
//
//	<root>/<jobID>/manifest.json
//	<root>/<jobID>/out/<成果物>
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCleanupMinutes は有効期限が未設定のときに使う自動削除までの分数です。
const DefaultCleanupMinutes = 10

// ErrInvalidJobID はジョブIDの形式が不正なときに返されます。
var ErrInvalidJobID = errors.New("invalid job id")

// Local はローカルファイルシステム上にジョブ作業領域を作成します。
type Local struct {
	root string
}

// Workspace は1ジョブ分の作業ディレクトリです。
type Workspace struct {
	JobID  string
	Dir    string
	OutDir string
}

// NewLocal は root 配下を作業領域とする Local を作成します。
func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Local{root: root}, nil
}

// Root は作業領域のルートディレクトリを返します。
func (l *Local) Root() string {
	return l.root
}

// CreateWorkspace は新しいジョブIDを払い出し、作業ディレクトリを作成します。
func (l *Local) CreateWorkspace() (Workspace, error) {
	jobID := uuid.NewString()
	ws := l.workspaceFor(jobID)
	if err := os.MkdirAll(ws.OutDir, 0o750); err != nil {
		_ = os.RemoveAll(ws.Dir)
		return Workspace{}, fmt.Errorf("failed to create workspace: %w", err)
	}
	return ws, nil
}

// Open は既存ジョブの作業ディレクトリを返します。
// ジョブIDは UUID 形式のみ受け付け、root の外を指すパスは作りません。
func (l *Local) Open(jobID string) (Workspace, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return Workspace{}, ErrInvalidJobID
	}
	return l.workspaceFor(jobID), nil
}

func (l *Local) workspaceFor(jobID string) Workspace {
	dir := filepath.Join(l.root, jobID)
	return Workspace{
		JobID:  jobID,
		Dir:    dir,
		OutDir: filepath.Join(dir, "out"),
	}
}

// Remove は作業ディレクトリを削除します。存在しない場合は何もしません。
func (l *Local) Remove(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ExpireAfter は指定時間後に作業ディレクトリを削除するタイマーを仕掛けます。
func (l *Local) ExpireAfter(dir string, minutes int) *time.Timer {
	if minutes <= 0 {
		minutes = DefaultCleanupMinutes
	}
	return time.AfterFunc(time.Duration(minutes)*time.Minute, func() {
		_ = l.Remove(dir)
	})
}

// WriteJSON は v をインデント付き JSON で path に書き出します。
func WriteJSON(path string, v any) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ReadJSON は path の JSON を v に読み込みます。
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
