// Package advisor wires the CLI: the advise command runs the full pipeline,
// the stages command lists the configured stages.
package advisor

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   rootCommandUse,
	Short: rootCommandShort,
}

func init() {
	rootCmd.AddCommand(newAdviseCommand())
	rootCmd.AddCommand(newStagesCommand())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
