package database

import (
	"context"
	"testing"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
)

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect(context.Background(), Config{}, logging.NewDiscardLogger()); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://tutor@localhost/tutor?sslmode=disable")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "7")
	t.Setenv("DATABASE_CONN_MAX_LIFETIME", "90s")

	cfg := ConfigFromEnv()
	if cfg.URL == "" {
		t.Fatal("expected URL from env")
	}
	if cfg.MaxOpenConns != 7 {
		t.Fatalf("MaxOpenConns = %d, want 7", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 5 {
		t.Fatalf("MaxIdleConns = %d, want default 5", cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != 90*time.Second {
		t.Fatalf("ConnMaxLifetime = %v, want 90s", cfg.ConnMaxLifetime)
	}
}
