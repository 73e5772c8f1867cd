package main

import (
	"fmt"
	"sync"

	"github.com/budecosystem/waav-gateway/internal/config"
	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/executor"
	"github.com/budecosystem/waav-gateway/pkg/nodes"
	"github.com/budecosystem/waav-gateway/pkg/registry"
)

// pipeline bundles a compiled graph with the executor that walks it.
type pipeline struct {
	name  string
	graph *dag.CompiledGraph
	exec  *executor.Executor
}

// compilePipelines loads and compiles every pipeline document cfg names,
// keyed by pipeline name. A failure to load or compile any one pipeline
// aborts startup — a gateway with a broken pipeline definition has no
// sensible degraded mode to fall back to.
func compilePipelines(cfg *config.Config, reg *registry.Registry) (map[string]*pipeline, error) {
	factories := nodes.Factories(reg)

	pipelines := make(map[string]*pipeline, len(cfg.Pipelines))
	for _, pc := range cfg.Pipelines {
		doc, err := dag.LoadDocument(pc.Document)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: load %q: %w", pc.Name, pc.Document, err)
		}
		graph, err := dag.Compile(doc, factories)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: compile: %w", pc.Name, err)
		}
		pipelines[pc.Name] = &pipeline{
			name:  pc.Name,
			graph: graph,
			exec:  executor.New(graph),
		}
	}
	return pipelines, nil
}

// pipelineSet holds the gateway's active pipelines behind a mutex, so a
// config hot-reload (see config.Watcher in main.go) can swap individual
// pipelines in place while ingress and the metrics bridge keep reading from
// the same set.
type pipelineSet struct {
	mu     sync.RWMutex
	byName map[string]*pipeline
}

func newPipelineSet(initial map[string]*pipeline) *pipelineSet {
	return &pipelineSet{byName: initial}
}

// get returns the pipeline registered under name, if any.
func (s *pipelineSet) get(name string) (*pipeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byName[name]
	return p, ok
}

// snapshot returns a point-in-time copy of the name→pipeline map, safe for
// the caller to range over without holding the set's lock.
func (s *pipelineSet) snapshot() map[string]*pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*pipeline, len(s.byName))
	for k, v := range s.byName {
		out[k] = v
	}
	return out
}

// reload recompiles the pipelines diff marks as added or document-changed,
// and drops the ones it marks as removed, swapping each into the set
// atomically. Pipelines diff doesn't mention are left untouched — this is
// what lets a config edit change one pipeline's document without
// recompiling (and momentarily blocking) every other pipeline.
func (s *pipelineSet) reload(cfg *config.Config, reg *registry.Registry, diff config.ConfigDiff) error {
	if !diff.PipelinesChanged {
		return nil
	}

	factories := nodes.Factories(reg)

	byName := make(map[string]config.PipelineConfig, len(cfg.Pipelines))
	for _, pc := range cfg.Pipelines {
		byName[pc.Name] = pc
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pd := range diff.PipelineChanges {
		if pd.Removed {
			delete(s.byName, pd.Name)
			continue
		}

		pc, ok := byName[pd.Name]
		if !ok {
			continue
		}
		doc, err := dag.LoadDocument(pc.Document)
		if err != nil {
			return fmt.Errorf("pipeline %q: load %q: %w", pc.Name, pc.Document, err)
		}
		graph, err := dag.Compile(doc, factories)
		if err != nil {
			return fmt.Errorf("pipeline %q: compile: %w", pc.Name, err)
		}
		s.byName[pc.Name] = &pipeline{name: pc.Name, graph: graph, exec: executor.New(graph)}
	}
	return nil
}
