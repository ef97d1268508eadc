package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"pagecraft/internal/model"
)

// surrealStore keeps items, containers and events as documents. A batch is a single
// Query RPC wrapped in BEGIN/COMMIT TRANSACTION, so SurrealDB applies it atomically.
type surrealStore struct {
	db *surrealdb.DB
}

type surrealItem struct {
	ID          *models.RecordID `json:"id,omitempty"`
	ItemID      string           `json:"item_id"`
	FamilyID    string           `json:"family_id"`
	ContainerID string           `json:"container_id"`
	ParentID    string           `json:"parent_id"`
	Ord         int              `json:"ord"`
	Kind        string           `json:"kind"`
	Payload     string           `json:"payload"`
	CreatedAtMs int64            `json:"created_at_unixms"`
	UpdatedAtMs int64            `json:"updated_at_unixms"`
}

type surrealContainer struct {
	ID          *models.RecordID `json:"id,omitempty"`
	ContainerID string           `json:"container_id"`
	FamilyID    string           `json:"family_id"`
	Label       string           `json:"label"`
}

type surrealEvent struct {
	ID         *models.RecordID `json:"id,omitempty"`
	EventID    string           `json:"event_id"`
	Seq        int64            `json:"seq"`
	FamilyID   string           `json:"family_id"`
	SessionID  string           `json:"session_id"`
	Type       string           `json:"type"`
	Writes     int              `json:"writes"`
	Payload    string           `json:"payload_json"`
	IssuedAtMs int64            `json:"issued_at_unixms"`
}

// OpenSurreal connects to cfg.URL (ws://host:8000/rpc or http://host:8000), signs in
// when credentials are set and selects the namespace/database.
func OpenSurreal(ctx context.Context, cfg SurrealConfig) (Store, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("open surrealdb: missing url")
	}
	db, err := surrealdb.FromEndpointURLString(ctx, strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}
	if cfg.User != "" && cfg.Pass != "" {
		if _, err := db.SignIn(ctx, surrealdb.Auth{
			Username: cfg.User,
			Password: cfg.Pass,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}
	ns, database := cfg.Namespace, cfg.Database
	if ns == "" {
		ns = "pagecraft"
	}
	if database == "" {
		database = "pagecraft"
	}
	if err := db.Use(ctx, ns, database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}
	return &surrealStore{db: db}, nil
}

func firstResult[T any](res *[]surrealdb.QueryResult[[]T]) []T {
	if res == nil || len(*res) == 0 {
		return []T{}
	}
	out := (*res)[0].Result
	if out == nil {
		return []T{}
	}
	return out
}

func (s *surrealStore) Fetch(ctx context.Context, familyID string) ([]model.OrderedItem, error) {
	res, err := surrealdb.Query[[]surrealItem](ctx, s.db,
		"SELECT * FROM item WHERE family_id = $family",
		map[string]any{"family": strings.TrimSpace(familyID)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}
	rows := firstResult(res)
	out := make([]model.OrderedItem, 0, len(rows))
	for _, r := range rows {
		it := model.OrderedItem{
			ID:          r.ItemID,
			FamilyID:    r.FamilyID,
			ContainerID: r.ContainerID,
			ParentID:    model.StringPtr(r.ParentID),
			Order:       r.Ord,
			Kind:        model.ItemKind(r.Kind),
			CreatedAt:   time.UnixMilli(r.CreatedAtMs).UTC(),
			UpdatedAt:   time.UnixMilli(r.UpdatedAtMs).UTC(),
		}
		if r.Payload != "" {
			it.Payload = json.RawMessage(r.Payload)
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *surrealStore) Containers(ctx context.Context, familyID string) ([]model.Container, error) {
	res, err := surrealdb.Query[[]surrealContainer](ctx, s.db,
		"SELECT * FROM container WHERE family_id = $family ORDER BY container_id",
		map[string]any{"family": strings.TrimSpace(familyID)})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	rows := firstResult(res)
	out := make([]model.Container, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Container{ID: r.ContainerID, FamilyID: r.FamilyID, Label: r.Label})
	}
	return out, nil
}

func (s *surrealStore) PutContainer(ctx context.Context, c model.Container) error {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.FamilyID) == "" {
		return fmt.Errorf("put container: missing id or family")
	}
	_, err := surrealdb.Query[any](ctx, s.db,
		"UPSERT type::thing('container', $id) CONTENT $doc",
		map[string]any{
			"id": c.ID,
			"doc": surrealContainer{
				ContainerID: strings.TrimSpace(c.ID),
				FamilyID:    strings.TrimSpace(c.FamilyID),
				Label:       c.Label,
			},
		})
	if err != nil {
		return fmt.Errorf("failed to put container: %w", err)
	}
	return nil
}

// CommitBatch builds one transaction. Moves and deletes THROW when the record is
// missing, which cancels the whole transaction.
func (s *surrealStore) CommitBatch(ctx context.Context, b Batch) error {
	if err := validateBatch(b); err != nil {
		return err
	}
	nowMs := time.Now().UTC().UnixMilli()
	payload, err := json.Marshal(summarize(b.Writes))
	if err != nil {
		return err
	}

	var q strings.Builder
	params := map[string]any{"family": b.FamilyID, "now": nowMs}
	q.WriteString("BEGIN TRANSACTION;\n")
	for i, w := range b.Writes {
		id := fmt.Sprintf("id%d", i)
		params[id] = w.ID
		switch w.Op {
		case model.WriteCreate:
			it := w.Item
			created, updated := it.CreatedAt.UnixMilli(), it.UpdatedAt.UnixMilli()
			if it.CreatedAt.IsZero() {
				created = nowMs
			}
			if it.UpdatedAt.IsZero() {
				updated = nowMs
			}
			params[fmt.Sprintf("doc%d", i)] = surrealItem{
				ItemID:      w.ID,
				FamilyID:    b.FamilyID,
				ContainerID: it.ContainerID,
				ParentID:    it.Parent(),
				Ord:         it.Order,
				Kind:        string(it.Kind),
				Payload:     string(it.Payload),
				CreatedAtMs: created,
				UpdatedAtMs: updated,
			}
			fmt.Fprintf(&q, "CREATE type::thing('item', $id%d) CONTENT $doc%d;\n", i, i)
		case model.WriteMove:
			params[fmt.Sprintf("c%d", i)] = w.Item.ContainerID
			params[fmt.Sprintf("p%d", i)] = w.Item.Parent()
			params[fmt.Sprintf("o%d", i)] = w.Item.Order
			fmt.Fprintf(&q, "LET $m%d = (UPDATE type::thing('item', $id%d) SET container_id = $c%d, parent_id = $p%d, ord = $o%d, updated_at_unixms = $now WHERE family_id = $family RETURN AFTER);\n", i, i, i, i, i)
			fmt.Fprintf(&q, "IF array::len($m%d) = 0 { THROW 'not found: ' + $id%d; };\n", i, i)
		case model.WriteDelete:
			fmt.Fprintf(&q, "LET $d%d = (DELETE type::thing('item', $id%d) WHERE family_id = $family RETURN BEFORE);\n", i, i)
			fmt.Fprintf(&q, "IF array::len($d%d) = 0 { THROW 'not found: ' + $id%d; };\n", i, i)
		}
	}
	evID := newEventID()
	params["evid"] = evID
	params["event"] = surrealEvent{
		EventID:    evID,
		Seq:        time.Now().UnixNano(),
		FamilyID:   b.FamilyID,
		SessionID:  b.SessionID,
		Type:       eventTypeBatch,
		Writes:     len(b.Writes),
		Payload:    string(payload),
		IssuedAtMs: nowMs,
	}
	q.WriteString("CREATE type::thing('event', $evid) CONTENT $event;\n")
	q.WriteString("COMMIT TRANSACTION;")

	if _, err := surrealdb.Query[any](ctx, s.db, q.String(), params); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("commit batch: %w: %v", ErrNotFound, err)
		}
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *surrealStore) Events(ctx context.Context, familyID string, limit int) ([]model.Event, error) {
	q := "SELECT * FROM event WHERE family_id = $family ORDER BY seq DESC"
	params := map[string]any{"family": strings.TrimSpace(familyID)}
	if limit > 0 {
		q += " LIMIT $limit"
		params["limit"] = limit
	}
	res, err := surrealdb.Query[[]surrealEvent](ctx, s.db, q, params)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	rows := firstResult(res)
	out := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Event{
			ID:        r.EventID,
			TS:        time.UnixMilli(r.IssuedAtMs).UTC(),
			FamilyID:  r.FamilyID,
			SessionID: r.SessionID,
			Type:      r.Type,
			Writes:    r.Writes,
		})
	}
	return out, nil
}

func (s *surrealStore) Close() error {
	return s.db.Close(context.Background())
}
