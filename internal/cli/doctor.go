package cli

import (
	"pagecraft/internal/reconcile"

	"github.com/spf13/cobra"
)

func newDoctorCmd(app *App) *cobra.Command {
	var (
		fail bool
		fix  bool
	)

	cmd := &cobra.Command{
		Use:   "doctor <family>",
		Short: "Check ordering invariants (dangling parents, cycles, order gaps)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := st.Fetch(cmd.Context(), args[0])
			_ = st.Close()
			if err != nil {
				return writeErr(cmd, err)
			}

			report := reconcile.Inspect(items)
			meta := map[string]any{
				"items":    len(items),
				"dangling": len(report.Dangling),
				"gaps":     len(report.Gaps),
				"ok":       report.OK(),
			}
			env := map[string]any{"data": report, "meta": meta}

			if fix && !report.OK() && report.Structural == "" {
				c, st, err := app.openCoordinator(cmd.Context(), args[0], nil)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer st.Close()
				out, err := c.Normalize(cmd.Context())
				if err != nil {
					return writeErr(cmd, err)
				}
				if out.Err != nil {
					return writeErr(cmd, out.Err)
				}
				meta["fixed"] = len(out.Writes)
				meta["session"] = out.SessionID
			} else if !report.OK() {
				env["_hints"] = []string{"pagecraft doctor " + args[0] + " --fix"}
			}

			if err := writeOut(cmd, app, env); err != nil {
				return err
			}
			if fail && !report.OK() && meta["fixed"] == nil {
				return errDoctorIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Commit the normalized ordering (dangling parents become roots)")
	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with non-zero status if issues remain")
	return cmd
}
