package cli

import (
	"strings"

	"pagecraft/internal/model"

	"github.com/spf13/cobra"
)

func newContainersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "containers",
		Aliases: []string{"container"},
		Short:   "Manage sibling scopes (menus, page columns)",
	}

	var label string
	addCmd := &cobra.Command{
		Use:   "add <family> <container-id>",
		Short: "Register (or relabel) a container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			c := model.Container{ID: strings.TrimSpace(args[1]), FamilyID: strings.TrimSpace(args[0]), Label: strings.TrimSpace(label)}
			if err := st.PutContainer(cmd.Context(), c); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   c,
				"_hints": []string{"pagecraft items add " + c.FamilyID + " --container " + c.ID},
			})
		},
	}
	addCmd.Flags().StringVar(&label, "label", "", "Display label")

	listCmd := &cobra.Command{
		Use:   "list <family>",
		Short: "List containers of a family",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			cs, err := st.Containers(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": cs,
				"meta": map[string]any{"count": len(cs)},
			})
		},
	}

	cmd.AddCommand(addCmd)
	cmd.AddCommand(listCmd)
	return cmd
}
