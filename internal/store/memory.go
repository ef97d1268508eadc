package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pagecraft/internal/model"
)

// Memory is an in-process Store. Batches are applied to a copy and swapped in, so a
// failed batch leaves no trace. FailNext queues errors for upcoming commits.
type Memory struct {
	mu         sync.Mutex
	items      map[string]model.OrderedItem
	containers map[string]model.Container
	events     []model.Event
	batches    []Batch
	failures   []error
	now        func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		items:      map[string]model.OrderedItem{},
		containers: map[string]model.Container{},
		now:        time.Now,
	}
}

// Seed inserts items directly, bypassing batches and events.
func (m *Memory) Seed(items ...model.OrderedItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.items[it.ID] = it.Clone()
	}
}

// FailNext makes the next CommitBatch return err without applying anything.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
}

// Batches returns every successfully committed batch, oldest first.
func (m *Memory) Batches() []Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Batch(nil), m.batches...)
}

func (m *Memory) Fetch(ctx context.Context, familyID string) ([]model.OrderedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	familyID = strings.TrimSpace(familyID)
	out := []model.OrderedItem{}
	for _, it := range m.items {
		if it.FamilyID == familyID {
			out = append(out, it.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Containers(ctx context.Context, familyID string) ([]model.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Container{}
	for _, c := range m.containers {
		if c.FamilyID == strings.TrimSpace(familyID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PutContainer(ctx context.Context, c model.Container) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.FamilyID) == "" {
		return fmt.Errorf("put container: missing id or family")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[c.ID] = c
	return nil
}

func (m *Memory) CommitBatch(ctx context.Context, b Batch) error {
	if err := validateBatch(b); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return err
	}

	now := m.now().UTC()
	next := make(map[string]model.OrderedItem, len(m.items))
	for k, v := range m.items {
		next[k] = v
	}
	for _, w := range b.Writes {
		cur, exists := next[w.ID]
		if exists && cur.FamilyID != b.FamilyID {
			exists = false
		}
		switch w.Op {
		case model.WriteCreate:
			if _, taken := next[w.ID]; taken {
				return fmt.Errorf("create %s: %w", w.ID, ErrConflict)
			}
			it := w.Item.Clone()
			it.ID, it.FamilyID = w.ID, b.FamilyID
			if it.CreatedAt.IsZero() {
				it.CreatedAt = now
			}
			if it.UpdatedAt.IsZero() {
				it.UpdatedAt = now
			}
			next[w.ID] = it
		case model.WriteMove:
			if !exists {
				return fmt.Errorf("move %s: %w", w.ID, ErrNotFound)
			}
			cur.ContainerID = w.Item.ContainerID
			cur.ParentID = model.StringPtr(w.Item.Parent())
			cur.Order = w.Item.Order
			cur.UpdatedAt = now
			next[w.ID] = cur
		case model.WriteDelete:
			if !exists {
				return fmt.Errorf("delete %s: %w", w.ID, ErrNotFound)
			}
			delete(next, w.ID)
		}
	}

	m.items = next
	m.batches = append(m.batches, Batch{FamilyID: b.FamilyID, SessionID: b.SessionID, Writes: append([]model.Write(nil), b.Writes...)})
	m.events = append(m.events, model.Event{
		ID:        newEventID(),
		TS:        now,
		FamilyID:  b.FamilyID,
		SessionID: b.SessionID,
		Type:      eventTypeBatch,
		Writes:    len(b.Writes),
	})
	return nil
}

func (m *Memory) Events(ctx context.Context, familyID string, limit int) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Event{}
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].FamilyID != strings.TrimSpace(familyID) {
			continue
		}
		out = append(out, m.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
