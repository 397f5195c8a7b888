// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-forge/internal/auth"
	"github.com/yourusername/exam-forge/internal/config"
	"github.com/yourusername/exam-forge/internal/exam"
	"github.com/yourusername/exam-forge/internal/export"
	"github.com/yourusername/exam-forge/internal/storage"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 開発モードで秘密鍵が未設定なら、起動ごとの一時的な鍵を使う
	if cfg.SessionSecret == "" {
		secret, err := auth.GenerateSecret()
		if err != nil {
			log.Fatalf("Failed to generate session secret: %v", err)
		}
		cfg.SessionSecret = secret
		log.Printf("SESSION_SECRET is not set; using a temporary secret (sessions end on restart)")
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// セッションストアの設定（クッキー署名鍵は必須）
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンやダウンロード名を読み取れるように公開
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token", "Content-Disposition", "X-Job-Id"}
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	shutdown, err := setupRoutes(router, cfg)
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}
	defer shutdown()

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "exam-forge-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループと認証・エディタ・出力の配線を行います。戻り値で後片付けをします。
func setupRoutes(router *gin.Engine, cfg *config.Config) (func(), error) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	logger := log.Default()

	users, err := auth.OpenUserStore(cfg.UsersDBPath)
	if err != nil {
		return nil, err
	}
	signal := auth.NewSignal()
	authManager := auth.NewManager(cfg, auth.NewGateway(users, cfg.MinPasswordLength), signal, logger)

	// サインアウトしたセッションの編集内容は破棄する
	exams := exam.NewStore(logger)
	unwatch := exams.Watch(signal)
	// 放置されたセッションも期限が来たらサインアウト扱いにする
	stopSweeper := authManager.StartSweeper(time.Duration(cfg.SessionSweepSecs) * time.Second)

	localStorage, err := storage.NewLocal(cfg.WorkDir)
	if err != nil {
		stopSweeper()
		unwatch()
		users.Close()
		return nil, err
	}
	exportService, err := export.NewService(localStorage, cfg.JobExpireMinutes, logger)
	if err != nil {
		stopSweeper()
		unwatch()
		users.Close()
		return nil, err
	}

	exportOpts := export.HandlerOptions{
		AsyncThresholdQuestions: cfg.AsyncThresholdQuestions,
		Logger:                  logger,
	}
	jobManager := setupJobs(cfg, exportService, logger)
	if jobManager != nil {
		exportOpts.Scheduler = &exportJobScheduler{manager: jobManager}
		jobManager.StartWorkers()
	}

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			// サインアップ・ログイン時はセッション未生成なので CSRF 検証は不要
			authRoutes.POST("/signup", authManager.Signup)
			authRoutes.POST("/login", authManager.Login)
			authRoutes.POST("/logout",
				authManager.RequireLogin(),
				authManager.VerifyCSRF(),
				authManager.Logout,
			)
			authRoutes.GET("/me", authManager.Me)
		}

		protected := api.Group("")
		protected.Use(authManager.RequireLogin(), authManager.VerifyCSRF())
		{
			exam.NewHandler(exams).Register(protected)
			protected.POST("/exam/export", export.ExportHandler(exportService, exams, exportOpts))
			protected.GET("/jobs/:id/download", export.DownloadHandler(exportService))
			if jobManager != nil {
				protected.GET("/jobs/:id", jobStatusHandler(jobManager))
			}
		}
	}

	return func() {
		stopSweeper()
		unwatch()
		if jobManager != nil {
			_ = jobManager.Shutdown(context.Background())
		}
		if err := users.Close(); err != nil {
			logger.Printf("failed to close user store: %v", err)
		}
	}, nil
}
