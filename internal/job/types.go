// Package job provides the job model consumed by the session runtime:
// environments, steps, and their script actions. These types map to YAML
// job files loaded by the CLI; the session core itself never reads YAML.
package job

import "time"

// Template represents a decoded job with already-resolved parameter values.
// Structural validation happens at load time (see Validate); the session
// runtime trusts the structure but still checks placeholder resolvability
// per action.
type Template struct {
	Name         string            `yaml:"name"`
	Parameters   map[string]string `yaml:"parameters,omitempty"`
	Environments []Environment     `yaml:"environments,omitempty"`
	Steps        []Step            `yaml:"steps"`
}

// Environment is a named, stackable set of environment-variable exports
// plus optional enter/exit scripts. Immutable once entered.
type Environment struct {
	Name      string            `yaml:"name"`
	Variables map[string]string `yaml:"variables,omitempty"`
	OnEnter   *ScriptAction     `yaml:"on_enter,omitempty"`
	OnExit    *ScriptAction     `yaml:"on_exit,omitempty"`
}

// Step describes one unit of job work. Each entry in TaskParameterSets
// yields one task run of OnRun with that set bound to the Task.Param
// namespace. An empty list means a single run with no task parameters.
type Step struct {
	Name              string              `yaml:"name"`
	TaskParameterSets []map[string]string `yaml:"task_parameter_sets,omitempty"`
	OnRun             ScriptAction        `yaml:"on_run"`
}

// ScriptAction describes one command to run. Command and Args may contain
// {{Param.X}} and {{Task.Param.Y}} placeholders.
type ScriptAction struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`

	// Timeout is a Go duration string ("30s", "5m"). Empty means no timeout.
	Timeout string `yaml:"timeout,omitempty"`

	// RunAsUser names the OS user the action must run as.
	// Empty means the hosting process's user.
	RunAsUser string `yaml:"run_as_user,omitempty"`
}

// TimeoutDuration parses the Timeout field. Returns zero for an empty
// timeout.
func (s *ScriptAction) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Timeout)
}
