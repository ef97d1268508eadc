package tui

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"pagecraft/internal/model"
)

var (
	mdRendererMu sync.Mutex
	// Keyed by style and wrap width. WithAutoStyle can block on terminal queries, so
	// the style is picked up front and renderers are reused.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}
	style := markdownStyle()
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			mdRendererMu.Unlock()
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	mdRendererMu.Unlock()

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// markdownStyle: PAGECRAFT_TUI_MD_STYLE wins, then the detected background.
func markdownStyle() string {
	switch v := strings.ToLower(strings.TrimSpace(os.Getenv("PAGECRAFT_TUI_MD_STYLE"))); v {
	case "dark", "light", "notty", "ascii", "dracula", "tokyo-night", "pink":
		return v
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// itemMarkdown describes an item for the detail pane. The payload is shown verbatim
// as a JSON block; a "description" string field is rendered as markdown above it.
func itemMarkdown(it model.OrderedItem, depth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", itemLabel(it))
	fmt.Fprintf(&b, "- **id** `%s`\n", it.ID)
	if it.Kind != "" {
		fmt.Fprintf(&b, "- **kind** %s\n", it.Kind)
	}
	fmt.Fprintf(&b, "- **container** `%s`\n", it.ContainerID)
	if p := it.Parent(); p != "" {
		fmt.Fprintf(&b, "- **parent** `%s`\n", p)
	}
	fmt.Fprintf(&b, "- **order** %d, **depth** %d\n", it.Order, depth)

	if len(it.Payload) > 0 {
		var fields map[string]any
		if json.Unmarshal(it.Payload, &fields) == nil {
			if d, ok := fields["description"].(string); ok && strings.TrimSpace(d) != "" {
				b.WriteString("\n" + strings.TrimSpace(d) + "\n")
			}
		}
		pretty, err := json.MarshalIndent(json.RawMessage(it.Payload), "", "  ")
		if err != nil {
			pretty = it.Payload
		}
		b.WriteString("\n```json\n" + string(pretty) + "\n```\n")
	}
	return b.String()
}

// itemLabel prefers payload "label", then "title", then the id.
func itemLabel(it model.OrderedItem) string {
	if len(it.Payload) > 0 {
		var fields map[string]any
		if json.Unmarshal(it.Payload, &fields) == nil {
			for _, k := range []string{"label", "title", "name"} {
				if s, ok := fields[k].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return it.ID
}
