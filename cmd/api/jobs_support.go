package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/exam-forge/internal/auth"
	"github.com/yourusername/exam-forge/internal/config"
	"github.com/yourusername/exam-forge/internal/export"
	"github.com/yourusername/exam-forge/internal/jobs"
)

const redisPingTimeout = 2 * time.Second

type exportJobScheduler struct {
	manager *jobs.Manager
}

func (s *exportJobScheduler) Schedule(ctx context.Context, sessionID, jobID string) error {
	_, err := s.manager.Enqueue(ctx, &jobs.TaskPayload{
		JobID:     jobID,
		SessionID: sessionID,
		Operation: export.OperationExport,
	})
	return err
}

// setupJobs は非同期出力用のジョブマネージャーを作成します。
// 無効化されている場合や Redis に接続できない場合は nil を返し、出力は同期処理だけになります。
func setupJobs(cfg *config.Config, runner jobs.Runner, logger *log.Logger) *jobs.Manager {
	if !cfg.AsyncExportEnabled {
		logger.Printf("async export disabled by config")
		return nil
	}
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		logger.Printf("async export disabled: invalid QUEUE_REDIS_URL: %v", err)
		return nil
	}

	redisClient := redis.NewClient(opt)
	ttlMinutes := cfg.JobExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 10
	}
	store := jobs.NewStore(redisClient, time.Duration(ttlMinutes)*time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		logger.Printf("async export disabled: redis unreachable: %v", err)
		_ = store.Close()
		return nil
	}

	manager, err := jobs.NewManager(cfg, runner, store, logger)
	if err != nil {
		logger.Printf("async export disabled: %v", err)
		_ = store.Close()
		return nil
	}
	return manager
}

func jobStatusHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if strings.TrimSpace(jobID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "jobId を指定してください。",
			})
			return
		}

		record, err := manager.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブ情報の取得に失敗しました。",
			})
			return
		}
		sess, _ := auth.CurrentSession(c)
		if record == nil || record.SessionID != sess.ID {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
			return
		}

		payload := gin.H{
			"jobId":     record.JobID,
			"operation": record.Operation,
			"status":    record.Status,
			"finished":  record.Status.Finished(),
			"progress": gin.H{
				"percent": record.Progress.Percent,
				"stage":   record.Progress.Stage,
				"message": record.Progress.Message,
			},
			"updatedAt": record.UpdatedAt,
			"expiresAt": record.ExpiresAt,
		}
		if record.DownloadURL != "" {
			payload["downloadUrl"] = record.DownloadURL
		}
		if record.Meta != nil {
			payload["meta"] = record.Meta
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}
