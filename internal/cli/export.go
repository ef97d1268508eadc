package cli

import (
	"time"

	"pagecraft/internal/backup"

	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "export <family>",
		Short: "Write a normalized JSON snapshot of a family to the export sink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg.Export
			if to != "" {
				cfg.Driver = to
			}
			sink, err := backup.Open(cmd.Context(), cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			res, err := backup.Export(cmd.Context(), st, sink, args[0], time.Now())
			if err != nil {
				return writeErr(cmd, err)
			}
			app.logger.Info().Str("family", res.FamilyID).Str("location", res.Location).Msg("snapshot exported")
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Export driver (fs|s3); overrides config")
	return cmd
}
