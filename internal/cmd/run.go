package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/amarsjac/openjd-sessions/internal/job"
	"github.com/amarsjac/openjd-sessions/internal/session"
	"github.com/amarsjac/openjd-sessions/internal/term"
)

var (
	flagSessionID string
	flagWorkRoot  string
	flagAsUser    string
)

var runCmd = &cobra.Command{
	Use:   "run <job-file>",
	Short: "Execute a job file as one session",
	Long: `Execute a job file: enter its environments in order, run every
step's tasks (one run per task parameter set), and exit the environments
in reverse order.

Environments entered before a failure are still exited, so OS-level side
effects are released even when the job fails. Interrupting with Ctrl-C
cancels the running action and unwinds the same way.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagSessionID, "session-id", "", "session identifier (default: derived from time)")
	runCmd.Flags().StringVar(&flagWorkRoot, "work-root", "", "root directory for session artifacts (default: temp dir)")
	runCmd.Flags().StringVar(&flagAsUser, "as-user", "", "OS user to run actions as when a script declares none")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	tpl, err := job.Load(args[0])
	if err != nil {
		return err
	}

	sessionID := flagSessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("openjd-%d", time.Now().Unix())
	}
	workRoot := flagWorkRoot
	if workRoot == "" {
		workRoot, err = os.MkdirTemp("", "openjd-")
		if err != nil {
			return fmt.Errorf("create work root: %w", err)
		}
	}

	terminal := make(chan session.ActionStatus, 16)
	s, err := session.New(session.Config{
		ID:          sessionID,
		Parameters:  tpl.Parameters,
		Callback:    reportStatus(terminal),
		WorkingRoot: workRoot,
		DefaultUser: flagAsUser,
	})
	if err != nil {
		return err
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
			term.Warn("interrupt received; canceling current action")
			s.Cancel()
		}
	}()

	term.Printf("session %s: job %q (%s)\n", sessionID, tpl.Name, s.Dir())
	jobErr := driveJob(s, tpl, terminal)

	if closeErr := s.Close(); closeErr != nil && jobErr == nil {
		jobErr = closeErr
	}
	if jobErr != nil {
		return jobErr
	}
	term.Success("session %s: job %q succeeded", sessionID, tpl.Name)
	return nil
}

// driveJob brackets the steps with environment enter/exit. Environments
// that were entered are always exited, in reverse order, even after a
// failure or cancellation.
func driveJob(s *session.Session, tpl *job.Template, terminal <-chan session.ActionStatus) error {
	var entered []session.EnvironmentID
	defer func() {
		for i := len(entered) - 1; i >= 0; i-- {
			env := tpl.Environments[i]
			if err := s.ExitEnvironment(entered[i]); err != nil {
				term.Error("exit environment %s: %v", env.Name, err)
				continue
			}
			if env.OnExit != nil {
				<-terminal
			}
		}
	}()

	for _, env := range tpl.Environments {
		id, err := s.EnterEnvironment(env)
		if err != nil {
			return fmt.Errorf("enter environment %s: %w", env.Name, err)
		}
		if env.OnEnter == nil {
			entered = append(entered, id)
			continue
		}
		st := <-terminal
		if st.State != session.StateSucceeded {
			return fmt.Errorf("enter environment %s: %s (%s)", env.Name, st.State, st.FailMessage)
		}
		entered = append(entered, id)
	}

	for _, step := range tpl.Steps {
		paramSets := step.TaskParameterSets
		if len(paramSets) == 0 {
			paramSets = []map[string]string{nil}
		}
		for i, taskParams := range paramSets {
			if err := s.RunTask(step.OnRun, taskParams); err != nil {
				return fmt.Errorf("step %s task %d: %w", step.Name, i, err)
			}
			st := <-terminal
			if st.State != session.StateSucceeded {
				return fmt.Errorf("step %s task %d: %s (%s)", step.Name, i, st.State, st.FailMessage)
			}
		}
	}

	return nil
}

// reportStatus prints every transition and forwards terminal ones to the
// driver. It runs on the session's notification goroutine, so it only
// hands off and formats.
func reportStatus(terminal chan<- session.ActionStatus) session.Callback {
	return func(sessionID string, st session.ActionStatus) {
		switch {
		case st.State == session.StateSucceeded:
			term.Success("  %s %s", st.Kind, st.State)
		case st.State.Terminal():
			term.Fail("  %s %s %s", st.Kind, st.State, st.FailMessage)
		case st.Progress != nil:
			term.Printf("  %s %d%% %s\n", st.Kind, *st.Progress, st.StatusMessage)
		case st.StatusMessage != "":
			term.Printf("  %s %s\n", st.Kind, st.StatusMessage)
		default:
			term.Printf("  %s %s\n", st.Kind, st.State)
		}
		if st.State.Terminal() {
			terminal <- st
		}
	}
}
