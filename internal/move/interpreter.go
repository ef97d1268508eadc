// Package move turns a drag gesture into a candidate flat list. It decides between
// reorder, nest, un-nest and cross-container transfer but never renumbers order; the
// reconcile package does that.
package move

import (
	"errors"
	"fmt"
	"strings"

	"pagecraft/internal/forest"
	"pagecraft/internal/model"
)

// DefaultThreshold is the lateral offset (in presentation units) at which a drag
// starts nesting or un-nesting.
const DefaultThreshold = 40

var (
	ErrUnknownItem   = errors.New("unknown item")
	ErrUnknownTarget = errors.New("unknown drop target")
)

type Kind string

const (
	KindNoop     Kind = "noop"
	KindReorder  Kind = "reorder"
	KindNest     Kind = "nest"
	KindUnnest   Kind = "unnest"
	KindTransfer Kind = "transfer"
	KindAppend   Kind = "append"
)

// Gesture is one completed drag. OverID names an item, or a container when the drop
// landed on an empty container.
type Gesture struct {
	ActiveID      string `json:"activeId"`
	OverID        string `json:"overId"`
	LateralOffset int    `json:"lateralOffset"`
}

type Result struct {
	// Items is the candidate list in display order. Order values are stale until
	// reconciled.
	Items []model.OrderedItem `json:"items"`
	Kind  Kind                `json:"kind"`

	// Degraded is set when the requested nest, un-nest or transfer was refused and
	// the gesture fell back to a plain reorder (or nothing).
	Degraded bool `json:"degraded,omitempty"`

	ActiveID           string   `json:"activeId"`
	ParentID           *string  `json:"parentId,omitempty"`
	ContainerID        string   `json:"containerId"`
	AffectedContainers []string `json:"affectedContainers"`
}

type Interpreter struct {
	// Threshold <= 0 means DefaultThreshold.
	Threshold int
	// MaxDepth limits how many levels a forest may have; 0 means unlimited.
	MaxDepth int
}

func (in Interpreter) threshold() int {
	if in.Threshold <= 0 {
		return DefaultThreshold
	}
	return in.Threshold
}

// Interpret applies g to items and returns the candidate list. items may be in any
// order; display order is the forest's pre-order.
func (in Interpreter) Interpret(items []model.OrderedItem, containers []model.Container, g Gesture) (Result, error) {
	activeID := strings.TrimSpace(g.ActiveID)
	overID := strings.TrimSpace(g.OverID)
	if activeID == "" {
		return Result{}, ErrUnknownItem
	}

	f, err := forest.Build(items)
	if err != nil {
		return Result{}, err
	}
	flat := f.Flatten()
	byID := make(map[string]model.OrderedItem, len(flat))
	for _, it := range flat {
		byID[it.ID] = it
	}
	active, ok := byID[activeID]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownItem, activeID)
	}

	subtree := map[string]bool{}
	for _, id := range forest.Descendants(flat, activeID) {
		subtree[id] = true
	}

	over, isItem := byID[overID]
	if !isItem {
		c, ok := resolveContainer(flat, containers, overID)
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownTarget, overID)
		}
		if c.FamilyID != "" && c.FamilyID != active.FamilyID {
			return Result{}, crossFamily(active, c.ID, c.FamilyID)
		}
		return appendTo(flat, subtree, active, c.ID), nil
	}
	if over.FamilyID != active.FamilyID {
		return Result{}, crossFamily(active, over.ID, over.FamilyID)
	}
	if overID != activeID && subtree[overID] {
		// Dropping an item into its own subtree can't be honored.
		return Result{
			Items:              flat,
			Kind:               KindNoop,
			Degraded:           true,
			ActiveID:           activeID,
			ParentID:           model.StringPtr(active.Parent()),
			ContainerID:        active.ContainerID,
			AffectedContainers: []string{active.ContainerID},
		}, nil
	}

	// The subtree travels with the active item; indices are taken without it.
	list := make([]model.OrderedItem, 0, len(flat))
	var tail []model.OrderedItem
	for _, it := range flat {
		if subtree[it.ID] && it.ID != activeID {
			tail = append(tail, it)
			continue
		}
		list = append(list, it)
	}
	oldIndex, newIndex := indexOf(list, activeID), indexOf(list, overID)
	moved := arrayMove(list, oldIndex, newIndex)

	depths := map[string]int{}
	height := 0
	f.Walk(func(n *forest.Node, _ *forest.Node) bool {
		depths[n.Item.ID] = n.Depth
		return true
	})
	for id := range subtree {
		if h := depths[id] - depths[activeID]; h > height {
			height = h
		}
	}

	target := over.ContainerID
	transfer := target != active.ContainerID
	base := active.Parent()
	degraded := false
	if transfer {
		// over is outside the subtree, so its parent is too.
		base = over.Parent()
		if base != "" && !in.fits(depths[base]+1, height) {
			base, degraded = "", true
		}
	}

	parent := base
	kind := KindReorder
	t := in.threshold()
	switch {
	case g.LateralOffset >= t:
		if newIndex > 0 && in.canNest(moved[newIndex-1], activeID, target, subtree, depths, height) {
			parent = moved[newIndex-1].ID
			kind = KindNest
		} else {
			degraded = true
		}
	case g.LateralOffset <= -t:
		if base != "" && !subtree[byID[base].Parent()] {
			parent = byID[base].Parent()
			kind = KindUnnest
		} else {
			degraded = true
		}
	}

	if transfer {
		kind = KindTransfer
	} else if kind == KindReorder && oldIndex == newIndex {
		kind = KindNoop
	}

	out := make([]model.OrderedItem, 0, len(flat))
	for _, it := range moved {
		if it.ID != activeID {
			out = append(out, it)
			continue
		}
		it.ParentID = model.StringPtr(parent)
		it.ContainerID = target
		out = append(out, it)
		for _, d := range tail {
			d.ContainerID = target
			out = append(out, d)
		}
	}

	affected := []string{active.ContainerID}
	if target != active.ContainerID {
		affected = append(affected, target)
	}
	return Result{
		Items:              out,
		Kind:               kind,
		Degraded:           degraded,
		ActiveID:           activeID,
		ParentID:           model.StringPtr(parent),
		ContainerID:        target,
		AffectedContainers: affected,
	}, nil
}

// canNest reports whether prev may become the active item's parent.
func (in Interpreter) canNest(prev model.OrderedItem, activeID, container string, subtree map[string]bool, depths map[string]int, height int) bool {
	if prev.ID == activeID || subtree[prev.ID] {
		return false
	}
	if prev.ContainerID != container {
		return false
	}
	return in.fits(depths[prev.ID]+1, height)
}

// fits reports whether a subtree of the given height rooted at depth stays within MaxDepth.
func (in Interpreter) fits(depth, height int) bool {
	return in.MaxDepth <= 0 || depth+height < in.MaxDepth
}

func appendTo(flat []model.OrderedItem, subtree map[string]bool, active model.OrderedItem, containerID string) Result {
	out := make([]model.OrderedItem, 0, len(flat))
	var moving []model.OrderedItem
	for _, it := range flat {
		if !subtree[it.ID] {
			out = append(out, it)
			continue
		}
		it.ContainerID = containerID
		if it.ID == active.ID {
			it.ParentID = nil
		}
		moving = append(moving, it)
	}
	out = append(out, moving...)

	affected := []string{active.ContainerID}
	if containerID != active.ContainerID {
		affected = append(affected, containerID)
	}
	return Result{
		Items:              out,
		Kind:               KindAppend,
		ActiveID:           active.ID,
		ContainerID:        containerID,
		AffectedContainers: affected,
	}
}

func resolveContainer(flat []model.OrderedItem, containers []model.Container, id string) (model.Container, bool) {
	if id == "" {
		return model.Container{}, false
	}
	for _, c := range containers {
		if strings.TrimSpace(c.ID) == id {
			return c, true
		}
	}
	for _, it := range flat {
		if it.ContainerID == id {
			return model.Container{ID: id, FamilyID: it.FamilyID}, true
		}
	}
	return model.Container{}, false
}

func crossFamily(active model.OrderedItem, targetID, targetFamily string) error {
	return &forest.StructuralError{
		Kind: forest.KindCrossFamily,
		IDs:  []string{active.ID, targetID},
		Msg:  fmt.Sprintf("cannot move from family %q to %q", active.FamilyID, targetFamily),
	}
}

func indexOf(list []model.OrderedItem, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func arrayMove(list []model.OrderedItem, from, to int) []model.OrderedItem {
	out := make([]model.OrderedItem, 0, len(list))
	for i, it := range list {
		if i != from {
			out = append(out, it)
		}
	}
	out = append(out, model.OrderedItem{})
	copy(out[to+1:], out[to:])
	out[to] = list[from]
	return out
}
