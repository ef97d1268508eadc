package backup

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"pagecraft/internal/forest"
	"pagecraft/internal/model"
	"pagecraft/internal/store"
)

const snapshotVersion = 1

// Entry is one item of a snapshot in display order, with normalized order and depth.
type Entry struct {
	model.OrderedItem
	Depth int `json:"depth"`
}

type Snapshot struct {
	Version    int                        `json:"version"`
	FamilyID   string                     `json:"familyId"`
	TakenAt    time.Time                  `json:"takenAt"`
	Containers []model.Container          `json:"containers"`
	Items      []Entry                    `json:"items"`
	Dangling   []forest.DanglingReference `json:"dangling,omitempty"`
	Events     []model.Event              `json:"events,omitempty"`
}

// Take reads familyID from st and returns it as a normalized forest snapshot. Up to
// eventLimit recent audit events are included; 0 skips them.
func Take(ctx context.Context, st store.Store, familyID string, eventLimit int, now time.Time) (Snapshot, error) {
	familyID = strings.TrimSpace(familyID)
	items, err := st.Fetch(ctx, familyID)
	if err != nil {
		return Snapshot{}, err
	}
	containers, err := st.Containers(ctx, familyID)
	if err != nil {
		return Snapshot{}, err
	}
	f, err := forest.Build(items)
	if err != nil {
		return Snapshot{}, err
	}
	flat := f.Flatten()
	depths := make([]int, 0, len(flat))
	f.Walk(func(n *forest.Node, _ *forest.Node) bool {
		depths = append(depths, n.Depth)
		return true
	})
	entries := make([]Entry, len(flat))
	for i := range flat {
		entries[i] = Entry{OrderedItem: flat[i], Depth: depths[i]}
	}

	snap := Snapshot{
		Version:    snapshotVersion,
		FamilyID:   familyID,
		TakenAt:    now.UTC(),
		Containers: containers,
		Items:      entries,
		Dangling:   f.Dangling,
	}
	if eventLimit > 0 {
		if snap.Events, err = st.Events(ctx, familyID, eventLimit); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}

// Key is the object key for a snapshot: <family>/<utc timestamp>.json, with the
// family id made path-safe.
func Key(familyID string, at time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, familyID)
	return safe + "/" + at.UTC().Format("20060102T150405.000Z") + ".json"
}

type Result struct {
	FamilyID string `json:"familyId"`
	Driver   string `json:"driver"`
	Location string `json:"location"`
	Items    int    `json:"items"`
	Dangling int    `json:"dangling"`
}

// Export takes a snapshot and writes it to sink.
func Export(ctx context.Context, st store.Store, sink Sink, familyID string, now time.Time) (Result, error) {
	snap, err := Take(ctx, st, familyID, 100, now)
	if err != nil {
		return Result{}, err
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Result{}, err
	}
	loc, err := sink.Put(ctx, Key(snap.FamilyID, snap.TakenAt), append(b, '\n'), "application/json")
	if err != nil {
		return Result{}, err
	}
	return Result{
		FamilyID: snap.FamilyID,
		Driver:   sink.Driver(),
		Location: loc,
		Items:    len(snap.Items),
		Dangling: len(snap.Dangling),
	}, nil
}
