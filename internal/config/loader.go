package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns
// a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Server.ListenAddr == "" && cfg.Server.GRPCAddr == "" {
		errs = append(errs, errors.New("server: at least one of listen_addr or grpc_addr must be set"))
	}

	validateProviderEntries(&errs, "providers.stt", cfg.Providers.STT)
	validateProviderEntries(&errs, "providers.tts", cfg.Providers.TTS)
	validateProviderEntries(&errs, "providers.realtime", cfg.Providers.Realtime)
	validateProviderEntries(&errs, "providers.processor", cfg.Providers.Processor)

	if len(cfg.Providers.STT) == 0 && len(cfg.Providers.Realtime) == 0 {
		slog.Warn("no stt or realtime provider configured; inbound audio pipelines will have nothing to transcribe with")
	}

	if cfg.HealthStore.DSN == "" && cfg.HealthStore.SnapshotInterval > 0 {
		errs = append(errs, errors.New("health_store.snapshot_interval is set but health_store.dsn is empty"))
	}

	pipelineNamesSeen := make(map[string]int, len(cfg.Pipelines))
	for i, p := range cfg.Pipelines {
		prefix := fmt.Sprintf("pipelines[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if prev, ok := pipelineNamesSeen[p.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of pipelines[%d]", prefix, p.Name, prev))
		} else {
			pipelineNamesSeen[p.Name] = i
		}
		if p.Document == "" {
			errs = append(errs, fmt.Errorf("%s.document is required", prefix))
		}
	}

	return errors.Join(errs...)
}

// validateProviderEntries checks a capability's provider list for
// duplicate names and required fields, appending any failures to errs.
func validateProviderEntries(errs *[]error, prefix string, entries []ProviderEntry) {
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		fieldPrefix := fmt.Sprintf("%s[%d]", prefix, i)
		if e.Name == "" {
			*errs = append(*errs, fmt.Errorf("%s.name is required", fieldPrefix))
			continue
		}
		if prev, ok := seen[e.Name]; ok {
			*errs = append(*errs, fmt.Errorf("%s.name %q is a duplicate of %s[%d]", fieldPrefix, e.Name, prefix, prev))
		}
		seen[e.Name] = i
	}
}
