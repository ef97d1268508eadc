// Package reconcile restores contiguous sibling order after structural edits. Every
// path goes through forest.Build and Flatten; nothing here renumbers by hand.
package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"pagecraft/internal/forest"
	"pagecraft/internal/model"
)

var (
	ErrNotFound      = errors.New("item not found")
	ErrUnknownParent = errors.New("parent not found in container")
)

// Reconcile treats the candidate's sequence as authoritative: an item listed earlier
// sorts before its later siblings regardless of its stale Order value. This covers the
// source and target groups of a transfer in one pass.
func Reconcile(candidate []model.OrderedItem) ([]model.OrderedItem, error) {
	provisional := model.CloneItems(candidate)
	for i := range provisional {
		provisional[i].Order = i
	}
	f, err := forest.Build(provisional)
	if err != nil {
		return nil, err
	}
	return f.Flatten(), nil
}

// Normalize orders siblings by their existing Order values and compacts every group.
// Dangling parents are normalized to roots and returned.
func Normalize(items []model.OrderedItem) ([]model.OrderedItem, []forest.DanglingReference, error) {
	f, err := forest.Build(items)
	if err != nil {
		return nil, nil, err
	}
	return f.Flatten(), f.Dangling, nil
}

// CascadeDelete removes id and its descendants within the same container, then
// compacts what remains. It returns the remaining items and the removed ids in
// pre-order.
func CascadeDelete(items []model.OrderedItem, id string) ([]model.OrderedItem, []string, error) {
	id = strings.TrimSpace(id)
	removed := forest.Descendants(items, id)
	if len(removed) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	gone := make(map[string]bool, len(removed))
	for _, r := range removed {
		gone[r] = true
	}
	remaining := make([]model.OrderedItem, 0, len(items)-len(removed))
	for _, it := range items {
		if !gone[it.ID] {
			remaining = append(remaining, it)
		}
	}
	out, _, err := Normalize(remaining)
	if err != nil {
		return nil, nil, err
	}
	return out, removed, nil
}

// Append adds it as the last child of its parent (or last root of its container).
func Append(items []model.OrderedItem, it model.OrderedItem) ([]model.OrderedItem, error) {
	it.ID = strings.TrimSpace(it.ID)
	if it.ID == "" {
		return nil, &forest.StructuralError{Kind: forest.KindMissingID, Msg: "item without id"}
	}
	it.ParentID = model.StringPtr(it.Parent())
	key := it.SiblingKey()
	count := 0
	parentOK := it.IsRoot()
	for _, x := range items {
		if x.ID == it.ID {
			return nil, &forest.StructuralError{Kind: forest.KindDuplicateID, IDs: []string{it.ID}}
		}
		if x.SiblingKey() == key {
			count++
		}
		if !parentOK && x.ID == key.ParentID && x.ContainerID == it.ContainerID {
			parentOK = true
		}
	}
	if !parentOK {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParent, key.ParentID)
	}
	it.Order = count
	out := model.CloneItems(items)
	return append(out, it), nil
}

// Gap describes a sibling group whose order values are not exactly 0..n-1.
type Gap struct {
	ContainerID string `json:"containerId"`
	ParentID    string `json:"parentId,omitempty"`
	Orders      []int  `json:"orders"`
}

type Report struct {
	Dangling   []forest.DanglingReference `json:"dangling"`
	Gaps       []Gap                      `json:"gaps"`
	Structural string                     `json:"structural,omitempty"`
}

func (r Report) OK() bool {
	return len(r.Dangling) == 0 && len(r.Gaps) == 0 && r.Structural == ""
}

// Inspect reports every invariant violation in items without changing them.
func Inspect(items []model.OrderedItem) Report {
	r := Report{Dangling: []forest.DanglingReference{}, Gaps: []Gap{}}
	f, err := forest.Build(items)
	if err != nil {
		r.Structural = err.Error()
	} else {
		r.Dangling = append(r.Dangling, f.Dangling...)
	}

	groups := map[model.SiblingKey][]int{}
	var keys []model.SiblingKey
	for _, it := range items {
		k := it.SiblingKey()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], it.Order)
	}
	for _, k := range keys {
		orders := append([]int(nil), groups[k]...)
		sort.Ints(orders)
		for i, o := range orders {
			if o != i {
				r.Gaps = append(r.Gaps, Gap{ContainerID: k.ContainerID, ParentID: k.ParentID, Orders: orders})
				break
			}
		}
	}
	return r
}
