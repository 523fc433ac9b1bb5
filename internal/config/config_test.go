package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if cfg.Client.PollInterval != time.Second {
		t.Errorf("Expected 1s poll interval, got %s", cfg.Client.PollInterval)
	}
	if cfg.Client.SpeakingInterval != 100*time.Millisecond {
		t.Errorf("Expected 100ms speaking interval, got %s", cfg.Client.SpeakingInterval)
	}
	if cfg.Client.SpeakingThreshold != 30 {
		t.Errorf("Expected speaking threshold 30, got %v", cfg.Client.SpeakingThreshold)
	}
	if len(cfg.Client.ICEServers) != 2 {
		t.Errorf("Expected 2 default ICE servers, got %v", cfg.Client.ICEServers)
	}
	if cfg.Signaling.StrictSender {
		t.Error("Expected strict sender off by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := "port: 9090\nsignaling:\n  strict_sender: true\nclient:\n  transport: push\n"
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("CHORUS_CLIENT_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if !cfg.Signaling.StrictSender {
		t.Error("Expected strict sender from file")
	}
	if cfg.Client.Transport != TransportPush {
		t.Errorf("Expected push transport, got %s", cfg.Client.Transport)
	}
	if cfg.Client.PollInterval != 250*time.Millisecond {
		t.Errorf("Expected env override 250ms, got %s", cfg.Client.PollInterval)
	}
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	v := viper.New()
	v.Set("client.transport", "carrier-pigeon")
	if _, err := LoadWith(v); err == nil {
		t.Error("Expected error for unknown transport")
	}
}
