// Package registry implements the gateway's process-wide plugin registry:
// a capability lookup that maps provider ids (with aliases) to factories
// for built-in providers and for dynamically loaded shared-library
// plugins, with per-plugin health accounting.
//
// The registry stores four capability maps — STT, TTS, realtime, and
// audio-processor — each keyed by lowercase provider id. It owns no
// provider instances, only factories and metadata; instantiation happens
// on demand via the Create* methods, and every factory invocation is
// wrapped in a panic guard so a misbehaving plugin cannot crash the
// process.
//
// Registration happens two ways: compile-time built-ins call Register*
// directly during gateway startup, and LoadDynamicPlugins scans configured
// directories for shared libraries following the platform naming
// convention, verifies each plugin's gateway-version requirement, and
// registers its capabilities.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"plugin"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/budecosystem/waav-gateway/pkg/provider/processor"
	"github.com/budecosystem/waav-gateway/pkg/provider/realtime"
	"github.com/budecosystem/waav-gateway/pkg/provider/stt"
	"github.com/budecosystem/waav-gateway/pkg/provider/tts"
)

// GatewayVersion is the running gateway's semantic version, checked against
// every dynamically loaded plugin's declared gateway-version requirement.
const GatewayVersion = "1.0.0"

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested id (after alias resolution).
var ErrProviderNotRegistered = errors.New("registry: provider not registered")

// ErrFactoryPanic wraps a recovered panic from a provider factory. The
// original provider error kind is preserved by the caller's Create* method;
// this sentinel lets callers detect that a panic, not a regular error,
// produced the failure.
var ErrFactoryPanic = errors.New("registry: provider factory panicked")

// Language identifies a spoken language a provider supports.
type Language struct {
	Code string // BCP-47 code, e.g. "en-US"
	Name string // human-readable name, e.g. "English (US)"
}

// Metadata describes a registered provider for discovery and diagnostics.
type Metadata struct {
	ID             string
	DisplayName    string
	Description    string
	Version        string
	Features       []string
	Languages      []Language
	Models         []string
	Aliases        []string
	RequiredConfig []string
	OptionalConfig []string
}

// Status summarizes a provider entry's health.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Health is a point-in-time snapshot of a provider entry's call counters.
type Health struct {
	Status        Status
	CallCount     uint64
	ErrorCount    uint64
	ErrorRate     float64
	UptimeSeconds float64
	IdleSeconds   float64
	LastError     string
}

// entry tracks per-provider health counters behind its own mutex so that
// concurrent factory invocations across different capability types never
// contend on the registry's top-level lock.
type entry struct {
	mu sync.Mutex

	meta         Metadata
	registeredAt time.Time
	lastActivity time.Time
	callCount    uint64
	errorCount   uint64
	lastErr      string
}

func newEntry(meta Metadata) *entry {
	now := time.Now()
	return &entry{meta: meta, registeredAt: now, lastActivity: now}
}

func (e *entry) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callCount++
	e.lastActivity = time.Now()
}

func (e *entry) recordFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callCount++
	e.errorCount++
	e.lastErr = err.Error()
	e.lastActivity = time.Now()
}

func (e *entry) health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errorRate float64
	if e.callCount > 0 {
		errorRate = float64(e.errorCount) / float64(e.callCount)
	}

	status := StatusHealthy
	switch {
	case e.callCount > 0 && e.errorCount == e.callCount:
		status = StatusUnhealthy
	case errorRate > 0.1:
		status = StatusDegraded
	}

	now := time.Now()
	return Health{
		Status:        status,
		CallCount:     e.callCount,
		ErrorCount:    e.errorCount,
		ErrorRate:     errorRate,
		UptimeSeconds: now.Sub(e.registeredAt).Seconds(),
		IdleSeconds:   now.Sub(e.lastActivity).Seconds(),
		LastError:     e.lastErr,
	}
}

// PluginConfig is the opaque configuration blob passed to a factory. It
// mirrors the per-entry configuration block the gateway's YAML config
// exposes for each provider slot.
type PluginConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Options map[string]any
}

// Entry is a read-only, caller-facing snapshot combining a provider's
// metadata, registration type, and current health — the shape the plugin
// discovery endpoints serialize to JSON.
type Entry struct {
	Metadata Metadata
	Type     string // "stt", "tts", "realtime", or "processor"
	Dynamic  bool
	Health   Health
}

type sttFactory func(PluginConfig) (stt.Provider, error)
type ttsFactory func(PluginConfig) (tts.Provider, error)
type realtimeFactory func(PluginConfig) (realtime.Provider, error)
type processorFactory func(PluginConfig) (processor.Engine, error)

type registration[F any] struct {
	factory F
	entry   *entry
	dynamic bool
}

// Registry is the process-wide plugin capability lookup. It is safe for
// concurrent use: registration happens mostly at startup while lookups
// happen continuously on the request path, so reads never block on
// unrelated writes once guarded by the RWMutex.
type Registry struct {
	mu sync.RWMutex

	stt       map[string]*registration[sttFactory]
	tts       map[string]*registration[ttsFactory]
	realtime  map[string]*registration[realtimeFactory]
	processor map[string]*registration[processorFactory]

	// aliases maps a lowercase alias to its canonical lowercase id, scoped
	// per capability type to avoid cross-capability collisions.
	aliases map[string]map[string]string
}

// New returns an empty, ready-to-use Registry.
func New() *Registry {
	return &Registry{
		stt:       make(map[string]*registration[sttFactory]),
		tts:       make(map[string]*registration[ttsFactory]),
		realtime:  make(map[string]*registration[realtimeFactory]),
		processor: make(map[string]*registration[processorFactory]),
		aliases: map[string]map[string]string{
			"stt":       {},
			"tts":       {},
			"realtime":  {},
			"processor": {},
		},
	}
}

func (r *Registry) registerAliases(capability, id string, aliases []string) {
	id = strings.ToLower(id)
	m := r.aliases[capability]
	m[id] = id
	for _, a := range aliases {
		m[strings.ToLower(a)] = id
	}
}

func (r *Registry) resolve(capability, name string) (string, bool) {
	canonical, ok := r.aliases[capability][strings.ToLower(name)]
	return canonical, ok
}

// RegisterSTT registers a built-in STT provider factory under id, with the
// given metadata and aliases. Subsequent calls with the same id overwrite
// the previous registration.
func (r *Registry) RegisterSTT(id string, meta Metadata, factory func(PluginConfig) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta.ID = strings.ToLower(id)
	r.registerAliases("stt", id, meta.Aliases)
	r.stt[meta.ID] = &registration[sttFactory]{factory: factory, entry: newEntry(meta)}
}

// RegisterTTS registers a built-in TTS provider factory under id.
func (r *Registry) RegisterTTS(id string, meta Metadata, factory func(PluginConfig) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta.ID = strings.ToLower(id)
	r.registerAliases("tts", id, meta.Aliases)
	r.tts[meta.ID] = &registration[ttsFactory]{factory: factory, entry: newEntry(meta)}
}

// RegisterRealtime registers a built-in realtime (speech-to-speech) provider
// factory under id.
func (r *Registry) RegisterRealtime(id string, meta Metadata, factory func(PluginConfig) (realtime.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta.ID = strings.ToLower(id)
	r.registerAliases("realtime", id, meta.Aliases)
	r.realtime[meta.ID] = &registration[realtimeFactory]{factory: factory, entry: newEntry(meta)}
}

// RegisterProcessor registers a built-in audio-processor engine factory
// under id.
func (r *Registry) RegisterProcessor(id string, meta Metadata, factory func(PluginConfig) (processor.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta.ID = strings.ToLower(id)
	r.registerAliases("processor", id, meta.Aliases)
	r.processor[meta.ID] = &registration[processorFactory]{factory: factory, entry: newEntry(meta)}
}

// CreateSTT resolves name (case-insensitively, following aliases) and
// invokes the registered factory. Every invocation is wrapped in a panic
// guard and records success or failure on the provider's health entry.
func (r *Registry) CreateSTT(cfg PluginConfig) (p stt.Provider, err error) {
	r.mu.RLock()
	canonical, ok := r.resolve("stt", cfg.Name)
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, cfg.Name)
	}
	reg := r.stt[canonical]
	r.mu.RUnlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: stt/%q: %v", ErrFactoryPanic, canonical, rec)
			reg.entry.recordFailure(err)
		}
	}()
	p, err = reg.factory(cfg)
	if err != nil {
		reg.entry.recordFailure(err)
		return nil, err
	}
	reg.entry.recordSuccess()
	return p, nil
}

// CreateTTS resolves name and invokes the registered TTS factory.
func (r *Registry) CreateTTS(cfg PluginConfig) (p tts.Provider, err error) {
	r.mu.RLock()
	canonical, ok := r.resolve("tts", cfg.Name)
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, cfg.Name)
	}
	reg := r.tts[canonical]
	r.mu.RUnlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: tts/%q: %v", ErrFactoryPanic, canonical, rec)
			reg.entry.recordFailure(err)
		}
	}()
	p, err = reg.factory(cfg)
	if err != nil {
		reg.entry.recordFailure(err)
		return nil, err
	}
	reg.entry.recordSuccess()
	return p, nil
}

// CreateRealtime resolves name and invokes the registered realtime factory.
func (r *Registry) CreateRealtime(cfg PluginConfig) (p realtime.Provider, err error) {
	r.mu.RLock()
	canonical, ok := r.resolve("realtime", cfg.Name)
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: realtime/%q", ErrProviderNotRegistered, cfg.Name)
	}
	reg := r.realtime[canonical]
	r.mu.RUnlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: realtime/%q: %v", ErrFactoryPanic, canonical, rec)
			reg.entry.recordFailure(err)
		}
	}()
	p, err = reg.factory(cfg)
	if err != nil {
		reg.entry.recordFailure(err)
		return nil, err
	}
	reg.entry.recordSuccess()
	return p, nil
}

// CreateProcessor resolves name and invokes the registered audio-processor
// engine factory.
func (r *Registry) CreateProcessor(cfg PluginConfig) (p processor.Engine, err error) {
	r.mu.RLock()
	canonical, ok := r.resolve("processor", cfg.Name)
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: processor/%q", ErrProviderNotRegistered, cfg.Name)
	}
	reg := r.processor[canonical]
	r.mu.RUnlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: processor/%q: %v", ErrFactoryPanic, canonical, rec)
			reg.entry.recordFailure(err)
		}
	}()
	p, err = reg.factory(cfg)
	if err != nil {
		reg.entry.recordFailure(err)
		return nil, err
	}
	reg.entry.recordSuccess()
	return p, nil
}

// Snapshot returns a read-only projection of every registered entry across
// all four capability maps, suitable for serving the plugin discovery
// endpoints.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.stt)+len(r.tts)+len(r.realtime)+len(r.processor))
	for _, reg := range r.stt {
		out = append(out, Entry{Metadata: reg.entry.meta, Type: "stt", Dynamic: reg.dynamic, Health: reg.entry.health()})
	}
	for _, reg := range r.tts {
		out = append(out, Entry{Metadata: reg.entry.meta, Type: "tts", Dynamic: reg.dynamic, Health: reg.entry.health()})
	}
	for _, reg := range r.realtime {
		out = append(out, Entry{Metadata: reg.entry.meta, Type: "realtime", Dynamic: reg.dynamic, Health: reg.entry.health()})
	}
	for _, reg := range r.processor {
		out = append(out, Entry{Metadata: reg.entry.meta, Type: "processor", Dynamic: reg.dynamic, Health: reg.entry.health()})
	}
	return out
}

// Lookup returns the Entry for a single provider id within a capability
// type ("stt", "tts", "realtime", "processor"), following alias
// resolution. ok is false if the capability type or id is unknown.
func (r *Registry) Lookup(capability, id string) (e Entry, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, found := r.resolve(capability, id)
	if !found {
		return Entry{}, false
	}
	switch capability {
	case "stt":
		reg := r.stt[canonical]
		return Entry{Metadata: reg.entry.meta, Type: "stt", Dynamic: reg.dynamic, Health: reg.entry.health()}, true
	case "tts":
		reg := r.tts[canonical]
		return Entry{Metadata: reg.entry.meta, Type: "tts", Dynamic: reg.dynamic, Health: reg.entry.health()}, true
	case "realtime":
		reg := r.realtime[canonical]
		return Entry{Metadata: reg.entry.meta, Type: "realtime", Dynamic: reg.dynamic, Health: reg.entry.health()}, true
	case "processor":
		reg := r.processor[canonical]
		return Entry{Metadata: reg.entry.meta, Type: "processor", Dynamic: reg.dynamic, Health: reg.entry.health()}, true
	default:
		return Entry{}, false
	}
}

// Plugin is the stable ABI contract a dynamically loaded shared library
// must satisfy. A plugin `.so` built with `go build -buildmode=plugin` must
// export a package-level symbol named "Plugin" implementing this
// interface.
type Plugin interface {
	// PluginManifest returns the plugin's identity and host-version
	// requirement, checked before Register is ever called.
	PluginManifest() Manifest

	// Register installs the plugin's capabilities (one or more of STT,
	// TTS, realtime, or processor) into r. Called once, after the manifest
	// check succeeds.
	Register(r *Registry) error
}

// Manifest conveys a dynamically loaded plugin's identity, advertised
// capabilities, and the gateway-version range it was built against.
type Manifest struct {
	ID                string
	Name              string
	Description       string
	Capabilities      []string
	GatewayVersionReq string // semver constraint, e.g. ">= 1.0.0, < 2.0.0"
}

// pluginSymbolName is the exported symbol every dynamic plugin must define.
const pluginSymbolName = "Plugin"

// LoadDynamicPlugins scans each directory in dirs for shared libraries
// matching the platform naming convention
// (libwaav_plugin_<name>.{so|dylib} or waav_plugin_<name>.dll), verifies
// each plugin's gateway-version requirement against GatewayVersion, and
// registers its capabilities. Called once during gateway startup; dynamic
// libraries are never unloaded at runtime.
//
// Only .so is actually loadable via Go's plugin package (Linux-only). The
// .dylib and .dll naming conventions are still recognized so that
// misconfigured plugin directories produce a descriptive
// "unsupported on this platform" error rather than being silently skipped.
func (r *Registry) LoadDynamicPlugins(dirs []string) error {
	for _, dir := range dirs {
		found, accepted, rejected := 0, 0, 0
		entries, err := readPluginDir(dir)
		if err != nil {
			return fmt.Errorf("registry: scan plugin directory %q: %w", dir, err)
		}
		for _, path := range entries {
			name, kind, ok := matchPluginFilename(path)
			if !ok {
				continue
			}
			found++
			if err := r.loadDynamicPlugin(path, name, kind); err != nil {
				rejected++
				slog.Warn("dynamic plugin rejected", "path", path, "error", err)
				continue
			}
			accepted++
		}
		slog.Info("plugin directory scanned", "dir", dir, "found", found, "accepted", accepted, "rejected", rejected)
	}
	return nil
}

type pluginKind int

const (
	pluginKindSO pluginKind = iota
	pluginKindDylib
	pluginKindDLL
)

func (r *Registry) loadDynamicPlugin(path, name string, kind pluginKind) error {
	if kind != pluginKindSO {
		return fmt.Errorf("registry: plugin %q: %s plugins unsupported on %s, only .so is loadable via Go's plugin package", name, pluginKindLabel(kind), runtime.GOOS)
	}

	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("registry: open plugin %q: %w", path, err)
	}
	sym, err := p.Lookup(pluginSymbolName)
	if err != nil {
		return fmt.Errorf("registry: plugin %q missing exported %q symbol: %w", path, pluginSymbolName, err)
	}
	impl, ok := sym.(Plugin)
	if !ok {
		return fmt.Errorf("registry: plugin %q's %q symbol does not implement registry.Plugin", path, pluginSymbolName)
	}

	manifest := impl.PluginManifest()
	if err := checkGatewayVersion(manifest); err != nil {
		return fmt.Errorf("registry: plugin %q: %w", manifest.ID, err)
	}

	if err := impl.Register(r); err != nil {
		return fmt.Errorf("registry: plugin %q: register: %w", manifest.ID, err)
	}
	r.markDynamic(manifest)
	return nil
}

// markDynamic flags the registrations a just-loaded plugin made as dynamic,
// so discovery responses and Snapshot can distinguish built-in from
// runtime-loaded providers.
func (r *Registry) markDynamic(manifest Manifest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := strings.ToLower(manifest.ID)
	if reg, ok := r.stt[id]; ok {
		reg.dynamic = true
	}
	if reg, ok := r.tts[id]; ok {
		reg.dynamic = true
	}
	if reg, ok := r.realtime[id]; ok {
		reg.dynamic = true
	}
	if reg, ok := r.processor[id]; ok {
		reg.dynamic = true
	}
}

// checkGatewayVersion validates manifest.GatewayVersionReq (a semver
// constraint) against GatewayVersion.
func checkGatewayVersion(manifest Manifest) error {
	if manifest.GatewayVersionReq == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(manifest.GatewayVersionReq)
	if err != nil {
		return fmt.Errorf("invalid gateway version requirement %q: %w", manifest.GatewayVersionReq, err)
	}
	running, err := semver.NewVersion(GatewayVersion)
	if err != nil {
		return fmt.Errorf("invalid running gateway version %q: %w", GatewayVersion, err)
	}
	if !constraint.Check(running) {
		return fmt.Errorf("requires gateway version %s, running %s", manifest.GatewayVersionReq, GatewayVersion)
	}
	return nil
}

func pluginKindLabel(kind pluginKind) string {
	switch kind {
	case pluginKindDylib:
		return "dylib"
	case pluginKindDLL:
		return "dll"
	default:
		return "so"
	}
}
