package config_test

import (
	"strings"
	"testing"

	"github.com/budecosystem/waav-gateway/internal/config"
)

func TestValidate_DuplicateProviderNames(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
providers:
  stt:
    - name: deepgram
    - name: deepgram
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate provider names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: "verbose"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_RequiresAListenAddress(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    - name: deepgram
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error when neither listen_addr nor grpc_addr is set, got nil")
	}
	if !strings.Contains(err.Error(), "listen_addr") {
		t.Errorf("error should mention listen_addr, got: %v", err)
	}
}

func TestValidate_HealthStoreIntervalWithoutDSN(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
health_store:
  snapshot_interval: 30s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for snapshot_interval without dsn, got nil")
	}
	if !strings.Contains(err.Error(), "health_store") {
		t.Errorf("error should mention health_store, got: %v", err)
	}
}

func TestValidate_DuplicatePipelineNames(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
pipelines:
  - name: default
    document: "pipelines/default.yaml"
  - name: default
    document: "pipelines/other.yaml"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate pipeline names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_PipelineRequiresDocument(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
pipelines:
  - name: default
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing pipeline document, got nil")
	}
	if !strings.Contains(err.Error(), "document") {
		t.Errorf("error should mention document, got: %v", err)
	}
}

func TestValidate_WellFormedConfigIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  grpc_addr: ":9090"
  log_level: "info"
providers:
  stt:
    - name: deepgram
      api_key: "secret"
  tts:
    - name: elevenlabs
plugins:
  dirs:
    - "/etc/waav/plugins"
pipelines:
  - name: default
    document: "pipelines/default.yaml"
health_store:
  dsn: "postgres://localhost/waav"
  snapshot_interval: 30s
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" || len(cfg.Providers.STT) != 1 || cfg.Providers.STT[0].Name != "deepgram" {
		t.Fatalf("unexpected parsed config: %+v", cfg)
	}
}

func TestValidate_MultipleErrorsAreJoined(t *testing.T) {
	t.Parallel()
	yaml := `
pipelines:
  - document: "a.yaml"
  - document: "b.yaml"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "listen_addr") || !strings.Contains(errStr, "name is required") {
		t.Errorf("expected both listen_addr and pipeline name errors, got: %v", err)
	}
}
