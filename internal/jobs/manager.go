// Package jobs は非同期ジョブ管理機能を提供します。
//
// ジョブは Asynq で実行し、状態（queued, running, done, error）と進捗は Redis に保存します。
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/yourusername/exam-forge/internal/config"
	"github.com/yourusername/exam-forge/internal/export"
	"github.com/yourusername/exam-forge/internal/render"
)

const (
	taskTypeExport = "exam:export"
	queueExport    = "export"
)

// Runner はキューから取り出したジョブを実行します。
type Runner interface {
	RunJob(ctx context.Context, jobID string, reporter export.ProgressReporter) (*export.Result, error)
}

// Manager はジョブの投入と状態管理を担います。
type Manager struct {
	cfg    *config.Config
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  *Store
	runner Runner
	logger *log.Logger
}

// TaskPayload は出力ジョブのペイロードです。
type TaskPayload struct {
	JobID     string               `json:"jobId"`
	SessionID string               `json:"sessionId"`
	Operation export.OperationType `json:"operation"`
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, runner Runner, store *Store, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				queueExport: 1,
			},
		},
	)

	if logger == nil {
		logger = log.Default()
	}
	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:    cfg,
		client: client,
		server: server,
		mux:    mux,
		store:  store,
		runner: runner,
		logger: logger,
	}
	mux.HandleFunc(taskTypeExport, manager.handleExportTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			m.logger.Printf("asynq server stopped with error: %v", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	if err := m.client.Close(); err != nil {
		return err
	}
	return m.store.Close()
}

// Enqueue はジョブをキューに投入します。
func (m *Manager) Enqueue(ctx context.Context, payload *TaskPayload) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("payload is nil")
	}
	if payload.JobID == "" {
		return "", fmt.Errorf("payload.JobID is required")
	}

	record := &Record{
		JobID:     payload.JobID,
		SessionID: payload.SessionID,
		Operation: string(payload.Operation),
		Status:    StatusQueued,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "queued",
		},
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(taskTypeExport, body, asynq.Queue(queueExport))
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(1))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// UpdateProgress は進捗を保存します。
func (m *Manager) UpdateProgress(ctx context.Context, jobID string, percent int, stage string) {
	if err := m.store.UpdateProgress(ctx, jobID, ProgressInfo{
		Percent: percent,
		Stage:   stage,
	}); err != nil {
		m.logger.Printf("failed to update progress job=%s: %v", jobID, err)
	}
}

// GetRecord はジョブ情報を取得します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

func (m *Manager) handleExportTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}

	if err := m.store.Upsert(ctx, &Record{
		JobID:     payload.JobID,
		SessionID: payload.SessionID,
		Operation: string(payload.Operation),
		Status:    StatusRunning,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "load",
		},
	}); err != nil {
		return err
	}

	result, err := m.runner.RunJob(ctx, payload.JobID, func(stage string, percent int) {
		_ = m.store.UpdateProgress(ctx, payload.JobID, ProgressInfo{
			Stage:   stage,
			Percent: percent,
		})
	})
	if err != nil {
		m.logger.Printf("export job failed job=%s session=%s: %v", payload.JobID, payload.SessionID, err)
		if markErr := m.failJobWithError(ctx, payload.JobID, err); markErr != nil {
			return markErr
		}
		// 失敗したジョブは再試行しない
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return m.finishJob(ctx, payload.JobID, result)
}

func (m *Manager) finishJob(ctx context.Context, jobID string, result *export.Result) error {
	if result == nil {
		return fmt.Errorf("result is nil")
	}
	meta := result.Meta
	if err := m.store.MarkDone(ctx, jobID, m.buildDownloadURL(result), &meta); err != nil {
		return err
	}
	return nil
}

func (m *Manager) failJobWithError(ctx context.Context, jobID string, err error) error {
	return m.store.MarkFailed(ctx, jobID, errorInfoFor(err))
}

// errorInfoFor はジョブ状態に載せるエラー情報です。内部エラーの詳細は利用者に見せません。
func errorInfoFor(err error) *ErrorInfo {
	var (
		renderErr *render.Error
		apiErr    *export.Error
	)
	switch {
	case errors.As(err, &renderErr):
		return &ErrorInfo{Code: renderErr.Code, Message: "PDFの生成に失敗しました。"}
	case errors.As(err, &apiErr):
		return &ErrorInfo{Code: apiErr.Code, Message: apiErr.Message}
	default:
		return &ErrorInfo{Code: export.CodeInternal, Message: "ジョブの実行中にエラーが発生しました。"}
	}
}

func (m *Manager) buildDownloadURL(result *export.Result) string {
	return downloadURL(m.cfg.JobResultBaseURL, result)
}

// downloadURL はダウンロード用のURLです。base は /api/jobs に相当する公開URLで、空なら相対パスを返します。
func downloadURL(base string, result *export.Result) string {
	if base == "" {
		base = "/api/jobs"
	}
	return fmt.Sprintf("%s/%s/download", strings.TrimRight(base, "/"), url.PathEscape(result.JobID))
}
