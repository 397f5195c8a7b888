package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-forge/internal/auth"
	"github.com/yourusername/exam-forge/internal/exam"
	"github.com/yourusername/exam-forge/internal/render"
)

// JobRunner はジョブを実行できるサービスが実装します。
type JobRunner interface {
	RunJob(ctx context.Context, jobID string, reporter ProgressReporter) (*Result, error)
	DiscardJob(jobID string) error
}

// ExportService は出力ジョブの準備と実行を提供します。
type ExportService interface {
	JobRunner
	PrepareExport(ctx context.Context, sessionID string, e exam.Exam, ts time.Time) (*JobManifest, error)
}

// ResultOpener は完了済みジョブの成果物を開きます。
type ResultOpener interface {
	OpenResultFile(jobID string) (*Result, *os.File, error)
}

// ExamSource はセッションの確定済み Exam を返します。
type ExamSource interface {
	Snapshot(sessionID string) exam.Exam
}

// JobScheduler はジョブを非同期キューに投入するためのインターフェースです。
type JobScheduler interface {
	Schedule(ctx context.Context, sessionID, jobID string) error
}

// HandlerOptions は同期/非同期切り替えのための設定です。
type HandlerOptions struct {
	Scheduler               JobScheduler
	AsyncThresholdQuestions int
	Logger                  *log.Logger
	Now                     func() time.Time
}

// ExportHandler は POST /api/exam/export のハンドラーを返します。
// 設問数が閾値を超え、スケジューラーが設定されていれば 202 とジョブIDを返します。
// それ以外はその場で PDF を生成して返します。
func ExportHandler(svc ExportService, exams ExamSource, opts HandlerOptions) gin.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		sess, ok := auth.CurrentSession(c)
		if !ok {
			respondUnauthorized(c)
			return
		}

		snapshot := exams.Snapshot(sess.ID)
		manifest, err := svc.PrepareExport(c.Request.Context(), sess.ID, snapshot, now())
		if err != nil {
			respondWithError(c, err)
			return
		}

		if shouldProcessAsync(manifest, opts) {
			if err := opts.Scheduler.Schedule(c.Request.Context(), sess.ID, manifest.JobID); err != nil {
				if cleanupErr := svc.DiscardJob(manifest.JobID); cleanupErr != nil {
					err = fmt.Errorf("%w (cleanup failed: %v)", err, cleanupErr)
				}
				logger.Printf("failed to schedule export job=%s session=%s: %v", manifest.JobID, sess.ID, err)
				respondWithError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"jobId": manifest.JobID})
			return
		}

		result, err := svc.RunJob(c.Request.Context(), manifest.JobID, nil)
		if err != nil {
			var renderErr *render.Error
			if errors.As(err, &renderErr) {
				logger.Printf("export failed job=%s session=%s: %v", manifest.JobID, sess.ID, err)
			}
			respondWithError(c, err)
			return
		}
		defer result.Cleanup()

		if err := streamResult(c, result); err != nil {
			respondWithError(c, err)
		}
	}
}

// DownloadHandler は GET /api/jobs/:id/download のハンドラーを返します。
// 他のセッションが作成したジョブは存在しないものとして扱います。
func DownloadHandler(svc ResultOpener) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := auth.CurrentSession(c)
		if !ok {
			respondUnauthorized(c)
			return
		}
		jobID := strings.TrimSpace(c.Param("id"))
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    CodeInvalidInput,
				"message": "jobId を指定してください。",
			})
			return
		}

		result, file, err := svc.OpenResultFile(jobID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		defer file.Close()

		if result.SessionID != sess.ID {
			respondWithError(c, notFound(nil))
			return
		}

		setDownloadHeaders(c, result)
		c.DataFromReader(http.StatusOK, result.OutputSize, render.MimeType, file, nil)
	}
}

func shouldProcessAsync(manifest *JobManifest, opts HandlerOptions) bool {
	if manifest == nil || opts.Scheduler == nil {
		return false
	}
	return opts.AsyncThresholdQuestions > 0 && manifest.TotalQuestions > opts.AsyncThresholdQuestions
}

func respondWithError(c *gin.Context, err error) {
	var (
		apiErr    *Error
		renderErr *render.Error
	)
	switch {
	case errors.As(err, &renderErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    renderErr.Code,
			"message": "PDFの生成に失敗しました。もう一度お試しください。",
		})
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		if apiErr.Code == CodeJobNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    CodeRequestCanceled,
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    CodeInternal,
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func respondUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":       "UNAUTHORIZED",
		"message":    "ログインが必要です",
		"redirectTo": auth.UnauthenticatedEntry,
	})
}

func streamResult(c *gin.Context, result *Result) error {
	file, err := os.Open(result.OutputPath)
	if err != nil {
		return fmt.Errorf("出力結果の読み込みに失敗しました: %w", err)
	}
	defer file.Close()

	setDownloadHeaders(c, result)
	c.DataFromReader(http.StatusOK, result.OutputSize, render.MimeType, file, nil)
	return nil
}

func setDownloadHeaders(c *gin.Context, result *Result) {
	encodedName := url.PathEscape(result.OutputFilename)
	plainName := strings.NewReplacer(`"`, "_", `\`, "_").Replace(result.OutputFilename)
	c.Header("Content-Type", render.MimeType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", plainName, encodedName))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Job-Id", result.JobID)
}
