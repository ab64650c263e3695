package session

import (
	"regexp"
	"strings"

	"github.com/amarsjac/openjd-sessions/internal/job"
	"github.com/amarsjac/openjd-sessions/internal/launcher"
)

// placeholderRe matches {{ ... }} placeholders in command text.
var placeholderRe = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// expand substitutes {{Param.X}} and {{Task.Param.Y}} placeholders in s
// against the job and task parameter values. Any placeholder without a
// value is an UnresolvedParameterError; it is never left as literal text
// or replaced with an empty string. Pure text expansion, no shell
// re-interpretation of the result.
func expand(s string, jobParams, taskParams map[string]string) (string, error) {
	var unresolved string
	out := placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.TrimSpace(m[2 : len(m)-2])
		if v, ok := lookupParam(name, jobParams, taskParams); ok {
			return v
		}
		if unresolved == "" {
			unresolved = name
		}
		return m
	})
	if unresolved != "" {
		return "", &UnresolvedParameterError{Placeholder: unresolved}
	}
	return out, nil
}

// lookupParam resolves a placeholder name in its namespace.
func lookupParam(name string, jobParams, taskParams map[string]string) (string, bool) {
	if rest, ok := strings.CutPrefix(name, "Task.Param."); ok {
		v, ok := taskParams[rest]
		return v, ok
	}
	if rest, ok := strings.CutPrefix(name, "Param."); ok {
		v, ok := jobParams[rest]
		return v, ok
	}
	return "", false
}

// resolveCommand turns a script action plus the current parameter and
// environment context into a concrete command for the launcher. Produced
// fresh per action and never mutated afterwards.
func resolveCommand(script job.ScriptAction, jobParams, taskParams, overlay map[string]string, dir, defaultUser string) (launcher.Command, error) {
	program, err := expand(script.Command, jobParams, taskParams)
	if err != nil {
		return launcher.Command{}, err
	}

	args := make([]string, len(script.Args))
	for i, a := range script.Args {
		args[i], err = expand(a, jobParams, taskParams)
		if err != nil {
			return launcher.Command{}, err
		}
	}

	user := script.RunAsUser
	if user == "" {
		user = defaultUser
	}

	return launcher.Command{
		Program:   program,
		Args:      args,
		Env:       overlay,
		Dir:       dir,
		RunAsUser: user,
	}, nil
}
