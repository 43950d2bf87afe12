package server

import (
	"testing"
	"time"
)

// TestDefaultConfig verifies the built-in defaults used when nothing is
// configured.
func TestDefaultConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Port = %q, want :8080", cfg.Port)
	}
	if cfg.MaxMessageSize != 64*1024 {
		t.Errorf("MaxMessageSize = %d, want %d", cfg.MaxMessageSize, 64*1024)
	}
	if cfg.RoomMailboxSize != 256 {
		t.Errorf("RoomMailboxSize = %d, want 256", cfg.RoomMailboxSize)
	}
	if cfg.ImageTransferTTL != 2*time.Minute {
		t.Errorf("ImageTransferTTL = %v, want 2m", cfg.ImageTransferTTL)
	}
	if cfg.ImageSweepInterval != 30*time.Second {
		t.Errorf("ImageSweepInterval = %v, want 30s", cfg.ImageSweepInterval)
	}
}

// TestNewConfigFromEnv verifies environment overrides, including the room
// and image-transfer knobs.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("ROOM_MAILBOX_SIZE", "32")
	t.Setenv("IMAGE_TRANSFER_TTL", "45")
	t.Setenv("IMAGE_SWEEP_INTERVAL", "5")

	cfg := NewConfigFromEnv()

	if cfg.Port != ":9090" {
		t.Errorf("Port = %q, want :9090", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "http://a.example" {
		t.Errorf("AllowedOrigins = %v, want the two trimmed origins", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("MaxMessageSize = %d, want 1024", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 3 {
		t.Errorf("RateLimit.Burst = %d, want 3", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("RateLimit.RefillInterval = %v, want 2s", cfg.RateLimit.RefillInterval)
	}
	if cfg.RoomMailboxSize != 32 {
		t.Errorf("RoomMailboxSize = %d, want 32", cfg.RoomMailboxSize)
	}
	if cfg.ImageTransferTTL != 45*time.Second {
		t.Errorf("ImageTransferTTL = %v, want 45s", cfg.ImageTransferTTL)
	}
	if cfg.ImageSweepInterval != 5*time.Second {
		t.Errorf("ImageSweepInterval = %v, want 5s", cfg.ImageSweepInterval)
	}
}

// TestEnvOverridesIgnoreGarbage verifies that unparsable values fall back to
// defaults instead of breaking startup.
func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")
	t.Setenv("ROOM_MAILBOX_SIZE", "-5")
	t.Setenv("IMAGE_TRANSFER_TTL", "0")

	cfg := NewConfigFromEnv()

	if cfg.MaxMessageSize != 64*1024 {
		t.Errorf("MaxMessageSize = %d, want default", cfg.MaxMessageSize)
	}
	if cfg.RoomMailboxSize != 256 {
		t.Errorf("RoomMailboxSize = %d, want default", cfg.RoomMailboxSize)
	}
	if cfg.ImageTransferTTL != 2*time.Minute {
		t.Errorf("ImageTransferTTL = %v, want default", cfg.ImageTransferTTL)
	}
}

// TestSetConfigSanitizesZeroValues verifies that SetConfig repairs invalid
// values rather than letting a zero-size mailbox or TTL through.
func TestSetConfigSanitizesZeroValues(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{})
	cfg := currentConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Port = %q, want :8080", cfg.Port)
	}
	if cfg.RoomMailboxSize != 256 {
		t.Errorf("RoomMailboxSize = %d, want 256", cfg.RoomMailboxSize)
	}
	if cfg.ImageTransferTTL != 2*time.Minute {
		t.Errorf("ImageTransferTTL = %v, want 2m", cfg.ImageTransferTTL)
	}
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("RateLimit.Burst = %d, want 10", cfg.RateLimit.Burst)
	}
}
