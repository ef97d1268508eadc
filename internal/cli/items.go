package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pagecraft/internal/forest"
	"pagecraft/internal/model"
	"pagecraft/internal/move"
	"pagecraft/internal/mutate"

	"github.com/spf13/cobra"
)

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item"},
		Short:   "Ordered items: add, list, move, delete",
	}

	cmd.AddCommand(newItemsAddCmd(app))
	cmd.AddCommand(newItemsListCmd(app))
	cmd.AddCommand(newItemsTreeCmd(app))
	cmd.AddCommand(newItemsMoveCmd(app))
	cmd.AddCommand(newItemsDeleteCmd(app))
	return cmd
}

func newItemsAddCmd(app *App) *cobra.Command {
	var (
		id        string
		container string
		parent    string
		kind      string
		payload   string
	)
	cmd := &cobra.Command{
		Use:   "add <family>",
		Short: "Append an item as the last sibling of its group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(container) == "" {
				return writeErr(cmd, errors.New("missing --container"))
			}
			var raw json.RawMessage
			if p := strings.TrimSpace(payload); p != "" {
				if !json.Valid([]byte(p)) {
					return writeErr(cmd, errors.New("--payload must be valid JSON"))
				}
				raw = json.RawMessage(p)
			}

			c, st, err := app.openCoordinator(cmd.Context(), args[0], nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			if !hasContainer(c.Containers(), container) {
				return writeErr(cmd, errNotFound("container", container))
			}
			out, err := c.Create(cmd.Context(), model.OrderedItem{
				ID:          strings.TrimSpace(id),
				ContainerID: strings.TrimSpace(container),
				ParentID:    model.StringPtr(parent),
				Kind:        model.ItemKind(strings.TrimSpace(kind)),
				Payload:     raw,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			if out.Err != nil {
				return writeErr(cmd, out.Err)
			}
			var created model.OrderedItem
			for _, w := range out.Writes {
				if w.Op == model.WriteCreate {
					created = w.Item
				}
			}
			return writeOut(cmd, app, map[string]any{
				"data": created,
				"meta": map[string]any{"session": out.SessionID, "writes": len(out.Writes)},
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Item id (default: generated)")
	cmd.Flags().StringVar(&container, "container", "", "Container id (required)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent item id (default: root)")
	cmd.Flags().StringVar(&kind, "kind", string(model.ItemKindMenuItem), "Item kind (menu_item|section|block|widget)")
	cmd.Flags().StringVar(&payload, "payload", "", "Opaque JSON payload")
	return cmd
}

func newItemsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <family>",
		Short: "List items in display order (normalized)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, st, err := app.openCoordinator(cmd.Context(), args[0], nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			items := c.Items()
			meta := map[string]any{"count": len(items)}
			env := map[string]any{"data": items, "meta": meta}
			if d := c.Dangling(); len(d) > 0 {
				meta["dangling"] = d
				env["_hints"] = []string{"pagecraft doctor " + c.FamilyID() + " --fix"}
			}
			return writeOut(cmd, app, env)
		},
	}
}

type treeNode struct {
	ID       string          `json:"id"`
	Kind     model.ItemKind  `json:"kind,omitempty"`
	Order    int             `json:"order"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Children []*treeNode     `json:"children,omitempty"`
}

type containerTree struct {
	ID    string      `json:"id"`
	Label string      `json:"label,omitempty"`
	Items []*treeNode `json:"items"`
}

func newItemsTreeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <family>",
		Short: "Show items as a nested forest per container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, st, err := app.openCoordinator(cmd.Context(), args[0], nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			trees, err := buildTrees(c.Items(), c.Containers())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": trees})
		},
	}
}

// buildTrees nests items per container. Registered containers come first (even when
// empty), then any container only referenced by items.
func buildTrees(items []model.OrderedItem, containers []model.Container) ([]*containerTree, error) {
	f, err := forest.Build(items)
	if err != nil {
		return nil, err
	}
	byContainer := map[string]*containerTree{}
	var out []*containerTree
	get := func(id, label string) *containerTree {
		if ct, ok := byContainer[id]; ok {
			return ct
		}
		ct := &containerTree{ID: id, Label: label, Items: []*treeNode{}}
		byContainer[id] = ct
		out = append(out, ct)
		return ct
	}
	for _, c := range containers {
		get(c.ID, c.Label)
	}

	nodes := map[*forest.Node]*treeNode{}
	f.Walk(func(n *forest.Node, parent *forest.Node) bool {
		tn := &treeNode{ID: n.Item.ID, Kind: n.Item.Kind, Order: n.Item.Order, Payload: n.Item.Payload}
		nodes[n] = tn
		if parent == nil {
			ct := get(n.Item.ContainerID, "")
			ct.Items = append(ct.Items, tn)
		} else {
			p := nodes[parent]
			p.Children = append(p.Children, tn)
		}
		return true
	})
	return out, nil
}

func newItemsMoveCmd(app *App) *cobra.Command {
	var (
		over      string
		offset    int
		threshold int
		maxDepth  int
	)
	cmd := &cobra.Command{
		Use:   "move <family> <active-id>",
		Short: "Apply a drag gesture: drop <active-id> over an item or container",
		Long: strings.TrimSpace(`
Drops the active item (with its subtree) onto --over. --offset is the horizontal drag
distance: at or beyond +threshold the item nests under its new predecessor, at or
beyond -threshold it moves up one level. --over may name a container to append there.
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(over) == "" {
				return writeErr(cmd, errors.New("missing --over"))
			}
			if cmd.Flags().Changed("threshold") {
				app.cfg.Engine.NestThreshold = threshold
			}
			if cmd.Flags().Changed("max-depth") {
				app.cfg.Engine.MaxDepth = maxDepth
			}

			c, st, err := app.openCoordinator(cmd.Context(), args[0], nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			out, err := c.Move(cmd.Context(), move.Gesture{ActiveID: args[1], OverID: over, LateralOffset: offset})
			if err != nil {
				return writeErr(cmd, err)
			}
			if out.Err != nil {
				return writeErr(cmd, out.Err)
			}
			meta := map[string]any{
				"session": out.SessionID,
				"state":   out.State,
				"writes":  len(out.Writes),
			}
			if out.Move != nil {
				meta["kind"] = out.Move.Kind
				meta["degraded"] = out.Move.Degraded
				meta["affectedContainers"] = out.Move.AffectedContainers
			}
			env := map[string]any{"data": out.Items, "meta": meta}
			if out.Move != nil && out.Move.Degraded {
				env["_hints"] = []string{fmt.Sprintf("requested placement was refused; item kept as %s", out.Move.Kind)}
			}
			return writeOut(cmd, app, env)
		},
	}
	cmd.Flags().StringVar(&over, "over", "", "Drop target item id or container id (required)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Lateral drag offset (positive nests, negative un-nests)")
	cmd.Flags().IntVar(&threshold, "threshold", move.DefaultThreshold, "Nesting threshold; overrides config")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum forest depth (0 = unlimited); overrides config")
	return cmd
}

func newItemsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <family> <item-id>",
		Aliases: []string{"rm"},
		Short:   "Delete an item and every descendant",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, st, err := app.openCoordinator(cmd.Context(), args[0], nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			out, err := c.Delete(cmd.Context(), args[1])
			var nf mutate.NotFoundError
			if errors.As(err, &nf) {
				return writeErr(cmd, errNotFound("item", args[1]))
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			if out.Err != nil {
				return writeErr(cmd, out.Err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"removed": out.Removed},
				"meta": map[string]any{"session": out.SessionID, "writes": len(out.Writes)},
			})
		},
	}
}

func hasContainer(cs []model.Container, id string) bool {
	id = strings.TrimSpace(id)
	for _, c := range cs {
		if c.ID == id {
			return true
		}
	}
	return false
}
