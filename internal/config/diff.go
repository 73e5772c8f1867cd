package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PipelinesChanged bool
	PipelineChanges  []PipelineDiff
}

// PipelineDiff describes what changed for a single named pipeline between
// two configs.
type PipelineDiff struct {
	Name            string
	DocumentChanged bool
	Added           bool
	Removed         bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without a process restart:
// the log level and which DAG documents back each named pipeline. Server
// listen addresses, provider registrations, and the health store
// connection all require a restart to take effect.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldPipelines := make(map[string]*PipelineConfig, len(old.Pipelines))
	for i := range old.Pipelines {
		oldPipelines[old.Pipelines[i].Name] = &old.Pipelines[i]
	}
	newPipelines := make(map[string]*PipelineConfig, len(new.Pipelines))
	for i := range new.Pipelines {
		newPipelines[new.Pipelines[i].Name] = &new.Pipelines[i]
	}

	for name, oldP := range oldPipelines {
		newP, exists := newPipelines[name]
		if !exists {
			d.PipelineChanges = append(d.PipelineChanges, PipelineDiff{Name: name, Removed: true})
			d.PipelinesChanged = true
			continue
		}
		if oldP.Document != newP.Document {
			d.PipelineChanges = append(d.PipelineChanges, PipelineDiff{Name: name, DocumentChanged: true})
			d.PipelinesChanged = true
		}
	}

	for name := range newPipelines {
		if _, exists := oldPipelines[name]; !exists {
			d.PipelineChanges = append(d.PipelineChanges, PipelineDiff{Name: name, Added: true})
			d.PipelinesChanged = true
		}
	}

	return d
}
