package config

import (
	"os"
	"testing"
)

// chdir changes into dir for the duration of the test (equivalent of t.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"PORT", "GIN_MODE", "SESSION_SECRET", "MIN_PASSWORD_LENGTH", "ASYNC_THRESHOLD_QUESTIONS", "ASYNC_EXPORT_ENABLED", "SESSION_SWEEP_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "debug" {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
	if cfg.MinPasswordLength != 6 || cfg.AsyncThresholdQuestions != 50 || !cfg.AsyncExportEnabled || cfg.SessionSweepSecs != 60 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GIN_MODE", "debug")
	t.Setenv("JOB_EXPIRE_MINUTES", "ten")
	t.Setenv("ASYNC_EXPORT_ENABLED", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.JobExpireMinutes != 10 {
		t.Fatalf("JobExpireMinutes = %d, want 10", cfg.JobExpireMinutes)
	}
	if !cfg.AsyncExportEnabled {
		t.Fatal("invalid bool should fall back to true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "debug without secret", cfg: Config{GinMode: "debug", MinPasswordLength: 6}},
		{name: "release without secret", cfg: Config{GinMode: "release", UsersDBPath: "users.db", MinPasswordLength: 6}, wantErr: true},
		{name: "release with secret", cfg: Config{GinMode: "release", SessionSecret: "s", UsersDBPath: "users.db", MinPasswordLength: 6}},
		{name: "non-positive password length", cfg: Config{GinMode: "debug", MinPasswordLength: 0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
