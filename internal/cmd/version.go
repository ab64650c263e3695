package cmd

import (
	"github.com/spf13/cobra"

	"github.com/amarsjac/openjd-sessions/internal/term"
	"github.com/amarsjac/openjd-sessions/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the openjd version",
	Run: func(cmd *cobra.Command, args []string) {
		term.Println("openjd", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
