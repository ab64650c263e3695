package job

import "fmt"

// Validate validates a parsed Template, checking that all fields contain
// valid values. It validates:
//   - The job has a name and at least one step
//   - Environment and step names are non-empty and unique
//   - Every script action has a command
//   - Timeout strings are parseable Go durations
//
// Returns nil if the template is valid, or an error with a clear message
// indicating which field is invalid.
func Validate(tpl *Template) error {
	if tpl.Name == "" {
		return fmt.Errorf("name: must not be empty")
	}
	if len(tpl.Steps) == 0 {
		return fmt.Errorf("steps: at least one step is required")
	}

	envNames := make(map[string]bool, len(tpl.Environments))
	for i, env := range tpl.Environments {
		if env.Name == "" {
			return fmt.Errorf("environments[%d].name: must not be empty", i)
		}
		if envNames[env.Name] {
			return fmt.Errorf("environments[%d].name: duplicate name %q", i, env.Name)
		}
		envNames[env.Name] = true
		if env.OnEnter != nil {
			if err := validateAction(env.OnEnter, fmt.Sprintf("environments[%d].on_enter", i)); err != nil {
				return err
			}
		}
		if env.OnExit != nil {
			if err := validateAction(env.OnExit, fmt.Sprintf("environments[%d].on_exit", i)); err != nil {
				return err
			}
		}
	}

	stepNames := make(map[string]bool, len(tpl.Steps))
	for i, step := range tpl.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d].name: must not be empty", i)
		}
		if stepNames[step.Name] {
			return fmt.Errorf("steps[%d].name: duplicate name %q", i, step.Name)
		}
		stepNames[step.Name] = true
		if err := validateAction(&step.OnRun, fmt.Sprintf("steps[%d].on_run", i)); err != nil {
			return err
		}
	}

	return nil
}

// validateAction checks a single script action under the given field path.
func validateAction(a *ScriptAction, field string) error {
	if a.Command == "" {
		return fmt.Errorf("%s.command: must not be empty", field)
	}
	if _, err := a.TimeoutDuration(); err != nil {
		return fmt.Errorf("%s.timeout: invalid duration %q: %v", field, a.Timeout, err)
	}
	return nil
}
