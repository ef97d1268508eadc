package forest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStructural matches any *StructuralError via errors.Is.
var ErrStructural = errors.New("structural error")

type StructuralKind string

const (
	KindCycle       StructuralKind = "cycle"
	KindDuplicateID StructuralKind = "duplicate_id"
	KindMissingID   StructuralKind = "missing_id"
	KindCrossFamily StructuralKind = "cross_family"
)

// StructuralError reports a candidate state that would violate acyclicity or id
// uniqueness. It is never applied: callers discard the candidate and keep prior state.
type StructuralError struct {
	Kind StructuralKind
	IDs  []string
	Msg  string
}

func (e *StructuralError) Error() string {
	var b strings.Builder
	b.WriteString("structural error: ")
	b.WriteString(string(e.Kind))
	if len(e.IDs) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.IDs, ", "))
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

// DanglingReference is a non-fatal warning: ItemID declares ParentID, which does not
// resolve within the item's container. The item is treated as a root.
type DanglingReference struct {
	ItemID      string `json:"itemId"`
	ParentID    string `json:"parentId"`
	ContainerID string `json:"containerId"`
}

func (d DanglingReference) String() string {
	return fmt.Sprintf("item %s: parent %s not found in container %s", d.ItemID, d.ParentID, d.ContainerID)
}
