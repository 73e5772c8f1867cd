// Package config provides the configuration schema, loader, and file
// watcher for the gateway server.
package config

import "time"

// Config is the root configuration structure for the gateway.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Plugins     PluginsConfig     `yaml:"plugins"`
	Pipelines   []PipelineConfig  `yaml:"pipelines"`
	HealthStore HealthStoreConfig `yaml:"health_store"`
}

// ServerConfig holds network and logging settings for the gateway's HTTP
// and gRPC listeners.
type ServerConfig struct {
	// ListenAddr is the TCP address the WebSocket/HTTP endpoint listens on
	// (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// GRPCAddr is read from grpc_addr. The gateway starts no gRPC listener
	// on it; grpc_endpoint nodes are outbound clients that take their
	// target from their own node config.
	GRPCAddr string `yaml:"grpc_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is a validated slog verbosity setting.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the known log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ProvidersConfig declares the plugins to instantiate and register at
// startup, grouped by capability. Each entry's Name selects a factory
// previously registered in the [pkg/registry.Registry] under that
// capability (built-in plugins are registered explicitly at startup; dynamic
// plugins are discovered from [PluginsConfig.Dirs]).
type ProvidersConfig struct {
	STT       []ProviderEntry `yaml:"stt"`
	TTS       []ProviderEntry `yaml:"tts"`
	Realtime  []ProviderEntry `yaml:"realtime"`
	Processor []ProviderEntry `yaml:"processor"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. It maps directly onto [pkg/registry.PluginConfig].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g.,
	// "deepgram", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// PluginsConfig controls discovery of dynamically loaded plugins.
type PluginsConfig struct {
	// Dirs lists directories scanned at startup for dynamic plugin
	// manifests/shared objects, in addition to the statically linked
	// built-in plugins.
	Dirs []string `yaml:"dirs"`
}

// PipelineConfig names one DAG document the gateway should compile and
// make available for stream execution.
type PipelineConfig struct {
	// Name is the pipeline's unique identifier, referenced by the
	// endpoint that selects which graph to run for an incoming stream.
	Name string `yaml:"name"`

	// Document is the filesystem path to the pipeline's DAG YAML
	// document.
	Document string `yaml:"document"`
}

// HealthStoreConfig configures the optional PostgreSQL-backed plugin
// health snapshot sink (see [pkg/healthstore]). Leave DSN empty to run
// without persisted health history.
type HealthStoreConfig struct {
	DSN              string        `yaml:"dsn"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}
