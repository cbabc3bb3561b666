package bootstrap

import (
	"context"
	"testing"

	appconfig "github.com/frontdeskhq/receptionist-platform/internal/config"
	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

func TestBuildRedisClientNilWhenUnconfigured(t *testing.T) {
	cfg := &appconfig.Config{RedisAddr: "  "}

	if client := BuildRedisClient(context.Background(), cfg, logging.New("error"), false); client != nil {
		t.Fatalf("expected nil client when redis addr is empty")
	}
}

func TestBuildRedisClientWithoutVerify(t *testing.T) {
	cfg := &appconfig.Config{RedisAddr: "localhost:6379"}

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), false)
	if client == nil {
		t.Fatalf("expected client when redis addr is set")
	}
	_ = client.Close()
}

func TestBuildDBPoolRequiresConfig(t *testing.T) {
	if _, err := BuildDBPool(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := BuildDBPool(context.Background(), &appconfig.Config{}); err == nil {
		t.Fatalf("expected error for empty database url")
	}
}

func TestBuildEmailSenderFallsBackToStub(t *testing.T) {
	cfg := &appconfig.Config{NotifyFromEmail: ""}

	sender := BuildEmailSender(nil, cfg, logging.New("error"))
	if sender == nil {
		t.Fatalf("expected stub sender")
	}
}
