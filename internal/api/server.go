// Package api exposes the plugin registry as a read-only HTTP discovery
// surface: callers list and inspect registered STT/TTS/realtime/processor
// providers without reaching into process internals, per spec.md §6.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/budecosystem/waav-gateway/pkg/registry"
)

// Server projects a *registry.Registry onto the plugin discovery routes.
// It holds no state of its own and is safe for concurrent use.
type Server struct {
	reg *registry.Registry
}

// New builds a discovery Server over reg.
func New(reg *registry.Registry) *Server {
	return &Server{reg: reg}
}

// Register mounts the discovery routes on r:
//
//	GET /plugins              all providers, grouped by type
//	GET /plugins/stt          stt providers only
//	GET /plugins/tts          tts providers only
//	GET /plugins/realtime     realtime providers only
//	GET /plugins/processors   processor providers only
//	GET /plugins/{id}         a single provider by id or alias
//	GET /plugins/{id}/health  a single provider's health snapshot
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/plugins", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/plugins/stt", s.handleListType("stt")).Methods(http.MethodGet)
	r.HandleFunc("/plugins/tts", s.handleListType("tts")).Methods(http.MethodGet)
	r.HandleFunc("/plugins/realtime", s.handleListType("realtime")).Methods(http.MethodGet)
	r.HandleFunc("/plugins/processors", s.handleListType("processor")).Methods(http.MethodGet)
	r.HandleFunc("/plugins/{id}/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/plugins/{id}", s.handleGet).Methods(http.MethodGet)
}

// providerInfo is the JSON shape spec.md §6 names for one provider entry.
type providerInfo struct {
	ID             string         `json:"id"`
	DisplayName    string         `json:"display_name"`
	Type           string         `json:"type"`
	Description    string         `json:"description"`
	Version        string         `json:"version"`
	Features       []string       `json:"features"`
	Languages      []languageInfo `json:"languages"`
	Models         []string       `json:"models"`
	Aliases        []string       `json:"aliases"`
	RequiredConfig []string       `json:"required_config"`
	OptionalConfig []string       `json:"optional_config"`
	Health         healthInfo     `json:"health"`
}

type languageInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// healthInfo mirrors registry.Health, dropping LastError (no endpoint,
// /health included, serializes it) and
// treating the metrics block as present only once at least one call has
// been recorded, per spec.md §6's "optional metrics" wording.
type healthInfo struct {
	Status  string       `json:"status"`
	Metrics *metricsInfo `json:"metrics,omitempty"`
}

type metricsInfo struct {
	CallCount     uint64  `json:"call_count"`
	ErrorCount    uint64  `json:"error_count"`
	ErrorRate     float64 `json:"error_rate"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	IdleSeconds   float64 `json:"idle_seconds"`
}

func toProviderInfo(e registry.Entry) providerInfo {
	langs := make([]languageInfo, len(e.Metadata.Languages))
	for i, l := range e.Metadata.Languages {
		langs[i] = languageInfo{Code: l.Code, Name: l.Name}
	}
	info := providerInfo{
		ID:             e.Metadata.ID,
		DisplayName:    e.Metadata.DisplayName,
		Type:           e.Type,
		Description:    e.Metadata.Description,
		Version:        e.Metadata.Version,
		Features:       e.Metadata.Features,
		Languages:      langs,
		Models:         e.Metadata.Models,
		Aliases:        e.Metadata.Aliases,
		RequiredConfig: e.Metadata.RequiredConfig,
		OptionalConfig: e.Metadata.OptionalConfig,
		Health:         toHealthInfo(e.Health),
	}
	return info
}

func toHealthInfo(h registry.Health) healthInfo {
	info := healthInfo{Status: string(h.Status)}
	if h.CallCount > 0 {
		info.Metrics = &metricsInfo{
			CallCount:     h.CallCount,
			ErrorCount:    h.ErrorCount,
			ErrorRate:     h.ErrorRate,
			UptimeSeconds: h.UptimeSeconds,
			IdleSeconds:   h.IdleSeconds,
		}
	}
	return info
}

// listFilter is the set of optional query-param filters spec.md §6 names
// for the list endpoints: language, feature, model.
type listFilter struct {
	language string
	feature  string
	model    string
}

func parseListFilter(r *http.Request) listFilter {
	q := r.URL.Query()
	return listFilter{
		language: q.Get("language"),
		feature:  q.Get("feature"),
		model:    q.Get("model"),
	}
}

func (f listFilter) matches(e registry.Entry) bool {
	if f.language != "" && !hasLanguage(e.Metadata.Languages, f.language) {
		return false
	}
	if f.feature != "" && !containsFold(e.Metadata.Features, f.feature) {
		return false
	}
	if f.model != "" && !containsFold(e.Metadata.Models, f.model) {
		return false
	}
	return true
}

func hasLanguage(langs []registry.Language, code string) bool {
	for _, l := range langs {
		if strings.EqualFold(l.Code, code) {
			return true
		}
	}
	return false
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// listResponse is /plugins' grouped-by-type body.
type listResponse struct {
	STT        []providerInfo `json:"stt"`
	TTS        []providerInfo `json:"tts"`
	Realtime   []providerInfo `json:"realtime"`
	Processors []providerInfo `json:"processors"`
	Total      int            `json:"total"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter := parseListFilter(r)
	resp := listResponse{}
	for _, e := range s.reg.Snapshot() {
		if !filter.matches(e) {
			continue
		}
		info := toProviderInfo(e)
		switch e.Type {
		case "stt":
			resp.STT = append(resp.STT, info)
		case "tts":
			resp.TTS = append(resp.TTS, info)
		case "realtime":
			resp.Realtime = append(resp.Realtime, info)
		case "processor":
			resp.Processors = append(resp.Processors, info)
		}
		resp.Total++
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListType(capability string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := parseListFilter(r)
		out := make([]providerInfo, 0)
		for _, e := range s.reg.Snapshot() {
			if e.Type != capability || !filter.matches(e) {
				continue
			}
			out = append(out, toProviderInfo(e))
		}
		writeJSON(w, http.StatusOK, struct {
			Providers []providerInfo `json:"providers"`
			Total     int            `json:"total"`
		}{Providers: out, Total: len(out)})
	}
}

// findByID returns the registry entry whose canonical id or any alias
// equals id, scanning every capability type since the route carries no
// type hint.
func (s *Server) findByID(id string) (registry.Entry, bool) {
	for _, e := range s.reg.Snapshot() {
		if e.Metadata.ID == id {
			return e, true
		}
		for _, alias := range e.Metadata.Aliases {
			if alias == id {
				return e, true
			}
		}
	}
	return registry.Entry{}, false
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	e, ok := s.findByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no provider registered under id "+id)
		return
	}
	writeJSON(w, http.StatusOK, toProviderInfo(e))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	e, ok := s.findByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no provider registered under id "+id)
		return
	}
	writeJSON(w, http.StatusOK, toHealthInfo(e.Health))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: message})
}
