package cli

import (
	"github.com/spf13/cobra"

	"github.com/raysh454/regress/internal/model"
)

// trackedDocument is one row of the list output.
type trackedDocument struct {
	DocumentID string         `json:"document_id"`
	Latest     *model.Metrics `json:"latest,omitempty"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents with recorded history and their newest snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ids, err := a.Store.Documents(cmd.Context())
		if err != nil {
			return err
		}
		out := make([]trackedDocument, 0, len(ids))
		for _, id := range ids {
			latest, err := a.Store.Latest(cmd.Context(), id)
			if err != nil {
				return err
			}
			out = append(out, trackedDocument{DocumentID: id, Latest: latest})
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
