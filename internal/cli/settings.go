package cli

import (
	"github.com/spf13/cobra"

	"github.com/raysh454/regress/internal/settings"
)

var (
	settingsDisable   bool
	settingsShortForm bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings [document_id]",
	Short: "Show or change per-document detection settings",
	Long: `Without flags, print the document's settings. Flags that are given are
merged into the stored settings; the rest keep their current value.

Examples:
  regress settings 42
  regress settings 42 --disable
  regress settings 42 --short-form=false`,
	Args: cobra.ExactArgs(1),
	RunE: runSettings,
}

func init() {
	settingsCmd.Flags().BoolVar(&settingsDisable, "disable", false, "Disable detection for the document")
	settingsCmd.Flags().BoolVar(&settingsShortForm, "short-form", false, "Mark the document as short-form (skips word count checks)")
	rootCmd.AddCommand(settingsCmd)
}

func runSettings(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var update settings.Update
	if cmd.Flags().Changed("disable") {
		update.DetectionDisabled = &settingsDisable
	}
	if cmd.Flags().Changed("short-form") {
		update.IsShortForm = &settingsShortForm
	}

	if update.DetectionDisabled == nil && update.IsShortForm == nil {
		current, err := a.Settings.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), current)
	}

	merged, err := settings.Merge(cmd.Context(), a.Settings, args[0], update)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), merged)
}
