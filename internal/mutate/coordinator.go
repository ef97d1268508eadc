// Package mutate owns a family's item list for the duration of a reordering session:
// optimistic apply, diff against the persisted snapshot, one atomic batch, rollback on
// failure.
package mutate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pagecraft/internal/forest"
	"pagecraft/internal/model"
	"pagecraft/internal/move"
	"pagecraft/internal/reconcile"
	"pagecraft/internal/store"
)

type State string

const (
	StateIdle       State = "idle"
	StateApplied    State = "applied"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
)

// Outcome is the settled result of one session. Err is a *CommitError when the batch
// failed and the visible state was rolled back.
type Outcome struct {
	SessionID string              `json:"sessionId"`
	State     State               `json:"state"`
	Writes    []model.Write       `json:"writes"`
	Items     []model.OrderedItem `json:"items"`
	Err       error               `json:"-"`

	Move     *move.Result               `json:"move,omitempty"`
	Removed  []string                   `json:"removed,omitempty"`
	Dangling []forest.DanglingReference `json:"dangling,omitempty"`
}

func (o Outcome) OK() bool { return o.Err == nil }

type Options struct {
	Interpreter move.Interpreter
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
	// Metrics may be nil.
	Metrics *Metrics
	Now     func() time.Time
}

type Coordinator struct {
	mu    sync.Mutex
	st    store.Store
	fam   string
	opts  Options
	log   zerolog.Logger
	state State

	session   string
	persisted []model.OrderedItem
	current   []model.OrderedItem
	// before is the visible state when the open session was applied.
	before     []model.OrderedItem
	containers []model.Container
	dangling   []forest.DanglingReference
}

// Open loads familyID from st. The visible state is the normalized forest; the
// persisted snapshot keeps the stored values so the first diff repairs any drift.
func Open(ctx context.Context, st store.Store, familyID string, opts Options) (*Coordinator, error) {
	familyID = strings.TrimSpace(familyID)
	items, err := st.Fetch(ctx, familyID)
	if err != nil {
		return nil, err
	}
	containers, err := st.Containers(ctx, familyID)
	if err != nil {
		return nil, err
	}
	visible, dangling, err := reconcile.Normalize(items)
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	lg := zerolog.Nop()
	if opts.Logger != nil {
		lg = *opts.Logger
	}
	c := &Coordinator{
		st:         st,
		fam:        familyID,
		opts:       opts,
		log:        lg.With().Str("family", familyID).Logger(),
		state:      StateIdle,
		persisted:  model.CloneItems(items),
		current:    visible,
		containers: containers,
		dangling:   dangling,
	}
	for _, d := range dangling {
		c.log.Warn().Str("item", d.ItemID).Str("parent", d.ParentID).Msg("dangling parent normalized to root")
	}
	return c, nil
}

func (c *Coordinator) FamilyID() string { return c.fam }

// Items returns a copy of the visible state in display order.
func (c *Coordinator) Items() []model.OrderedItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneItems(c.current)
}

// Persisted returns a copy of the last-known-persisted snapshot.
func (c *Coordinator) Persisted() []model.OrderedItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneItems(c.persisted)
}

func (c *Coordinator) Containers() []model.Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Container(nil), c.containers...)
}

func (c *Coordinator) Dangling() []forest.DanglingReference {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]forest.DanglingReference(nil), c.dangling...)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Apply replaces the visible state immediately and opens a session. The caller must
// Commit before starting another one.
func (c *Coordinator) Apply(next []model.OrderedItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateApplied {
		return ErrSessionInFlight
	}
	c.session = uuid.NewString()
	c.before = c.current
	c.current = model.CloneItems(next)
	c.state = StateApplied
	if c.opts.Metrics != nil {
		c.opts.Metrics.InFlight.Set(1)
	}
	c.log.Debug().Str("session", c.session).Int("items", len(next)).Msg("session applied")
	return nil
}

// Commit submits the minimal diff as one batch. On failure the visible state reverts
// to what it was before Apply and the Outcome carries a *CommitError.
func (c *Coordinator) Commit(ctx context.Context) Outcome {
	c.mu.Lock()
	if c.state != StateApplied {
		out := Outcome{State: c.state, Items: model.CloneItems(c.current), Err: ErrNoSession}
		c.mu.Unlock()
		return out
	}
	session := c.session
	writes := Diff(c.persisted, c.current)
	c.mu.Unlock()

	var err error
	start := c.opts.Now()
	if len(writes) > 0 {
		err = c.st.CommitBatch(ctx, store.Batch{FamilyID: c.fam, SessionID: session, Writes: writes})
	}
	elapsed := c.opts.Now().Sub(start)

	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.opts.Metrics
	if m != nil {
		m.InFlight.Set(0)
		if len(writes) > 0 {
			m.CommitSeconds.Observe(elapsed.Seconds())
		}
	}
	if err != nil {
		c.current = c.before
		c.before = nil
		c.state = StateRolledBack
		cerr := &CommitError{FamilyID: c.fam, SessionID: session, Writes: len(writes), Err: err}
		if m != nil {
			m.Sessions.WithLabelValues(string(StateRolledBack)).Inc()
		}
		c.log.Error().Err(err).Str("session", session).Int("writes", len(writes)).Msg("commit failed; rolled back")
		return Outcome{SessionID: session, State: StateRolledBack, Writes: writes, Items: model.CloneItems(c.current), Err: cerr}
	}

	c.persisted = model.CloneItems(c.current)
	c.before = nil
	c.state = StateCommitted
	if m != nil {
		m.Sessions.WithLabelValues(string(StateCommitted)).Inc()
		m.Writes.Add(float64(len(writes)))
	}
	c.log.Info().Str("session", session).Int("writes", len(writes)).Dur("elapsed", elapsed).Msg("session committed")
	return Outcome{SessionID: session, State: StateCommitted, Writes: writes, Items: model.CloneItems(c.current)}
}

// snapshot returns the visible state for a new edit, or ErrSessionInFlight.
func (c *Coordinator) snapshot() ([]model.OrderedItem, []model.Container, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateApplied {
		return nil, nil, ErrSessionInFlight
	}
	return model.CloneItems(c.current), append([]model.Container(nil), c.containers...), nil
}

// Move interprets g, reconciles and commits. Structural errors leave state untouched
// and are returned directly; commit failures come back in the Outcome.
func (c *Coordinator) Move(ctx context.Context, g move.Gesture) (Outcome, error) {
	res, err := c.ApplyMove(g)
	if err != nil {
		return Outcome{}, err
	}
	out := c.Commit(ctx)
	out.Move = &res
	return out, nil
}

// ApplyMove is the optimistic half of Move: the reconciled result becomes visible and
// the session stays open until Commit.
func (c *Coordinator) ApplyMove(g move.Gesture) (move.Result, error) {
	items, containers, err := c.snapshot()
	if err != nil {
		return move.Result{}, err
	}
	res, err := c.opts.Interpreter.Interpret(items, containers, g)
	if err != nil {
		c.log.Debug().Err(err).Str("active", g.ActiveID).Str("over", g.OverID).Msg("gesture rejected")
		return move.Result{}, err
	}
	next, err := reconcile.Reconcile(res.Items)
	if err != nil {
		return move.Result{}, err
	}
	if err := c.Apply(next); err != nil {
		return move.Result{}, err
	}
	res.Items = nil
	return res, nil
}

// Delete removes id and its subtree in one batch.
func (c *Coordinator) Delete(ctx context.Context, id string) (Outcome, error) {
	removed, err := c.ApplyDelete(id)
	if err != nil {
		return Outcome{}, err
	}
	out := c.Commit(ctx)
	out.Removed = removed
	return out, nil
}

// ApplyDelete is the optimistic half of Delete. It returns the removed ids in
// pre-order.
func (c *Coordinator) ApplyDelete(id string) ([]string, error) {
	items, _, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	next, removed, err := reconcile.CascadeDelete(items, id)
	if errors.Is(err, reconcile.ErrNotFound) {
		return nil, NotFoundError{Kind: "item", ID: id}
	}
	if err != nil {
		return nil, err
	}
	if err := c.Apply(next); err != nil {
		return nil, err
	}
	return removed, nil
}

// Create appends it as the last sibling in its group. A blank ID is generated.
func (c *Coordinator) Create(ctx context.Context, it model.OrderedItem) (Outcome, error) {
	items, _, err := c.snapshot()
	if err != nil {
		return Outcome{}, err
	}
	if it.FamilyID == "" {
		it.FamilyID = c.fam
	}
	if it.FamilyID != c.fam {
		return Outcome{}, &forest.StructuralError{Kind: forest.KindCrossFamily, IDs: []string{it.ID}, Msg: "item belongs to family " + it.FamilyID}
	}
	if strings.TrimSpace(it.ContainerID) == "" {
		return Outcome{}, NotFoundError{Kind: "container", ID: ""}
	}
	if strings.TrimSpace(it.ID) == "" {
		id, err := store.NewID("item")
		if err != nil {
			return Outcome{}, err
		}
		it.ID = id
	}
	now := c.opts.Now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now
	next, err := reconcile.Append(items, it)
	if err != nil {
		return Outcome{}, err
	}
	next, err = reconcile.Reconcile(next)
	if err != nil {
		return Outcome{}, err
	}
	if err := c.Apply(next); err != nil {
		return Outcome{}, err
	}
	return c.Commit(ctx), nil
}

// Normalize commits the compacted form of the visible state (doctor --fix).
func (c *Coordinator) Normalize(ctx context.Context) (Outcome, error) {
	items, _, err := c.snapshot()
	if err != nil {
		return Outcome{}, err
	}
	next, dangling, err := reconcile.Normalize(items)
	if err != nil {
		return Outcome{}, err
	}
	if err := c.Apply(next); err != nil {
		return Outcome{}, err
	}
	out := c.Commit(ctx)
	c.mu.Lock()
	out.Dangling = append(append([]forest.DanglingReference(nil), c.dangling...), dangling...)
	if out.OK() {
		c.dangling = nil
	}
	c.mu.Unlock()
	return out, nil
}

// Diff lists the writes that turn persisted into next: create for new ids, move when
// order, parent or container changed, delete for vanished ids. Payload-only changes
// produce nothing.
func Diff(persisted, next []model.OrderedItem) []model.Write {
	prev := make(map[string]model.OrderedItem, len(persisted))
	for _, it := range persisted {
		prev[it.ID] = it
	}
	seen := make(map[string]bool, len(next))
	writes := []model.Write{}
	for _, it := range next {
		seen[it.ID] = true
		old, ok := prev[it.ID]
		if !ok {
			writes = append(writes, model.Write{Op: model.WriteCreate, ID: it.ID, Item: it.Clone()})
			continue
		}
		if old.Order != it.Order || !model.SameParent(old.ParentID, it.ParentID) || old.ContainerID != it.ContainerID {
			writes = append(writes, model.Write{Op: model.WriteMove, ID: it.ID, Item: it.Clone()})
		}
	}
	for _, it := range persisted {
		if !seen[it.ID] {
			writes = append(writes, model.Write{Op: model.WriteDelete, ID: it.ID})
		}
	}
	return writes
}
