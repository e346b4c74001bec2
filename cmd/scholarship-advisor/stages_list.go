package advisor

import (
	"fmt"

	"github.com/spf13/cobra"
)

type stagesCommandOptions struct {
	includeDisabled bool
	configPath      string
}

func newStagesCommand() *cobra.Command {
	options := &stagesCommandOptions{configPath: defaultConfigPath}

	command := &cobra.Command{
		Use:   stagesCommandUse,
		Short: stagesCommandShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStagesCommand(cmd, *options)
		},
	}

	command.Flags().BoolVar(&options.includeDisabled, allFlagName, false, allFlagUsage)
	command.Flags().StringVar(&options.configPath, configFlagName, defaultConfigPath, configFlagUsage)

	return command
}

func runStagesCommand(command *cobra.Command, options stagesCommandOptions) error {
	rootConfiguration, err := loadRootConfiguration(options.configPath)
	if err != nil {
		return err
	}

	for _, stageConfiguration := range rootConfiguration.Stages {
		if !options.includeDisabled && !stageConfiguration.Enabled {
			continue
		}

		stageStateLabel := enabledStateLabel
		if !stageConfiguration.Enabled {
			stageStateLabel = disabledStateLabel
		}

		outputWriter := command.OutOrStdout()
		_, writeErr := fmt.Fprintf(outputWriter, "%s\t(%s, model=%s)\n", stageConfiguration.Name, stageStateLabel, dashIfEmpty(stageConfiguration.Model))
		if writeErr != nil {
			return fmt.Errorf("write stage listing: %w", writeErr)
		}
	}

	return nil
}

func dashIfEmpty(value string) string {
	if value == "" {
		return dashPlaceholder
	}
	return value
}
