// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// 認証設定
	SessionSecret     string // セッション署名・IDトークン署名用の秘密鍵
	UsersDBPath       string // アカウント保存用SQLiteファイルのパス
	TokenIssuer       string // IDトークンの発行者
	TokenTTLMinutes   int    // IDトークンの有効期限（分）
	MinPasswordLength int    // サインアップ時のパスワード最小長
	SessionSweepSecs  int    // 放置セッションを掃除する間隔（秒）

	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// エクスポート設定
	WorkDir                 string // ジョブ作業ディレクトリのルート
	JobExpireMinutes        int    // ジョブ成果物の有効期限（分）
	AsyncThresholdQuestions int    // 同期処理から非同期へ切り替える設問数の閾値

	// ジョブ/キュー設定
	AsyncExportEnabled bool   // 非同期エクスポートを使うかどうか
	QueueRedisURL      string // Asynq用Redis接続URL
	JobResultBaseURL   string // 結果ファイル取得用のベースURL
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		UsersDBPath:       getEnv("USERS_DB_PATH", "users.db"),
		TokenIssuer:       getEnv("TOKEN_ISSUER", "exam-forge"),
		TokenTTLMinutes:   getEnvAsInt("TOKEN_TTL_MINUTES", 60),
		MinPasswordLength: getEnvAsInt("MIN_PASSWORD_LENGTH", 6),
		SessionSweepSecs:  getEnvAsInt("SESSION_SWEEP_SECONDS", 60),

		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		WorkDir:                 getEnv("WORK_DIR", filepath.Join(os.TempDir(), "exam-forge")),
		JobExpireMinutes:        getEnvAsInt("JOB_EXPIRE_MINUTES", 10),
		AsyncThresholdQuestions: getEnvAsInt("ASYNC_THRESHOLD_QUESTIONS", 50),

		AsyncExportEnabled: getEnvAsBool("ASYNC_EXPORT_ENABLED", true),
		QueueRedisURL:      getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		JobResultBaseURL:   getEnv("JOB_RESULT_BASE_URL", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	// ローカル開発では秘密鍵は任意（起動時に一時的な鍵を使う）
	if c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.UsersDBPath == "" {
			return fmt.Errorf("USERS_DB_PATH is required in release mode")
		}
	}
	if c.MinPasswordLength < 1 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be positive")
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
