// Package cmd implements the CLI commands for openjd.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/amarsjac/openjd-sessions/internal/olog"
	"github.com/amarsjac/openjd-sessions/internal/term"
	"github.com/amarsjac/openjd-sessions/internal/version"
)

var (
	flagDebug   bool
	flagSilent  bool
	flagLogFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "openjd",
	Short: "Render-job session runtime",
	Long: `Openjd executes render-job sessions: it enters and exits job
environments, runs parameterized tasks as OS processes, and reports
their progress through an embedded status protocol.

Job files are YAML documents describing environments, steps, and their
script actions with already-resolved parameter values.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		term.SetSilent(flagSilent)
		logPath := flagLogFile
		if logPath == "" {
			logPath = olog.DefaultLogPath()
		}
		return olog.Configure(logPath, flagDebug, flagSilent)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagSilent, "silent", false, "suppress normal output")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "operational log path (default: XDG state dir)")
}

// Execute runs the root command and returns any error.
func Execute() error {
	defer func() { _ = olog.Close() }()
	return rootCmd.Execute()
}
