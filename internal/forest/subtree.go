package forest

import (
	"strings"

	"pagecraft/internal/model"
)

// Descendants returns rootID followed by all of its transitive descendants within the
// same container, in pre-order. It uses an explicit stack so deep or wide trees don't
// grow the call stack, and a seen-set so malformed (cyclic) input terminates.
//
// Returns nil when rootID is not present.
func Descendants(items []model.OrderedItem, rootID string) []string {
	rootID = strings.TrimSpace(rootID)
	container := ""
	found := false
	for i := range items {
		if items[i].ID == rootID {
			container = items[i].ContainerID
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	children := map[string][]string{}
	for i := range items {
		if items[i].ContainerID != container {
			continue
		}
		if pid := items[i].Parent(); pid != "" {
			children[pid] = append(children[pid], items[i].ID)
		}
	}

	out := []string{}
	seen := map[string]bool{}
	stack := []string{rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		ch := children[id]
		for i := len(ch) - 1; i >= 0; i-- {
			stack = append(stack, ch[i])
		}
	}
	return out
}

// IsDescendant reports whether candidateID lies strictly below ancestorID.
func IsDescendant(items []model.OrderedItem, ancestorID, candidateID string) bool {
	candidateID = strings.TrimSpace(candidateID)
	for _, id := range Descendants(items, ancestorID) {
		if id == candidateID && id != strings.TrimSpace(ancestorID) {
			return true
		}
	}
	return false
}
