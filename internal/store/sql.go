package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pagecraft/internal/model"
)

// sqlStore implements Store over database/sql. SQLite and Postgres share the schema
// and statements; only placeholders differ.
type sqlStore struct {
	db       *sql.DB
	dollarPH bool
}

var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS containers (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_containers_family ON containers(family_id)`,
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		container_id TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		ord BIGINT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '',
		created_at_unixms BIGINT NOT NULL,
		updated_at_unixms BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_family ON items(family_id, container_id, parent_id, ord)`,
	`CREATE TABLE IF NOT EXISTS events (
		event_id TEXT PRIMARY KEY,
		seq BIGINT NOT NULL,
		family_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		type TEXT NOT NULL,
		writes BIGINT NOT NULL,
		payload_json TEXT NOT NULL,
		issued_at_unixms BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_family ON events(family_id, seq)`,
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, st := range schemaStmts {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// q rewrites ? placeholders to $n for Postgres.
func (s *sqlStore) q(query string) string {
	if !s.dollarPH {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Fetch(ctx context.Context, familyID string) ([]model.OrderedItem, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT
		id, family_id, container_id, parent_id, ord, kind, payload,
		created_at_unixms, updated_at_unixms
	FROM items
	WHERE family_id = ?
	ORDER BY container_id, parent_id, ord, id`), strings.TrimSpace(familyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.OrderedItem{}
	for rows.Next() {
		var (
			it                 model.OrderedItem
			parent, kind, body string
			ord                int64
			createdMs, updMs   int64
		)
		if err := rows.Scan(&it.ID, &it.FamilyID, &it.ContainerID, &parent, &ord, &kind, &body, &createdMs, &updMs); err != nil {
			return nil, err
		}
		it.ParentID = model.StringPtr(parent)
		it.Order = int(ord)
		it.Kind = model.ItemKind(kind)
		if body != "" {
			it.Payload = json.RawMessage(body)
		}
		it.CreatedAt = time.UnixMilli(createdMs).UTC()
		it.UpdatedAt = time.UnixMilli(updMs).UTC()
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *sqlStore) Containers(ctx context.Context, familyID string) ([]model.Container, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, family_id, label FROM containers WHERE family_id = ? ORDER BY id`), strings.TrimSpace(familyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Container{}
	for rows.Next() {
		var c model.Container
		if err := rows.Scan(&c.ID, &c.FamilyID, &c.Label); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqlStore) PutContainer(ctx context.Context, c model.Container) error {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.FamilyID) == "" {
		return fmt.Errorf("put container: missing id or family")
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO containers(id, family_id, label) VALUES(?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET family_id = excluded.family_id, label = excluded.label`),
		strings.TrimSpace(c.ID), strings.TrimSpace(c.FamilyID), c.Label)
	return err
}

func (s *sqlStore) CommitBatch(ctx context.Context, b Batch) error {
	if err := validateBatch(b); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	nowMs := time.Now().UTC().UnixMilli()
	for _, w := range b.Writes {
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
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO items(
				id, family_id, container_id, parent_id, ord, kind, payload,
				created_at_unixms, updated_at_unixms
			) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				w.ID, b.FamilyID, it.ContainerID, it.Parent(), it.Order, string(it.Kind), string(it.Payload),
				created, updated,
			); err != nil {
				return fmt.Errorf("create %s: %w", w.ID, err)
			}
		case model.WriteMove:
			res, err := tx.ExecContext(ctx, s.q(`UPDATE items
				SET container_id = ?, parent_id = ?, ord = ?, updated_at_unixms = ?
				WHERE id = ? AND family_id = ?`),
				w.Item.ContainerID, w.Item.Parent(), w.Item.Order, nowMs, w.ID, b.FamilyID)
			if err != nil {
				return fmt.Errorf("move %s: %w", w.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("move %s: %w", w.ID, ErrNotFound)
			}
		case model.WriteDelete:
			res, err := tx.ExecContext(ctx, s.q(`DELETE FROM items WHERE id = ? AND family_id = ?`), w.ID, b.FamilyID)
			if err != nil {
				return fmt.Errorf("delete %s: %w", w.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("delete %s: %w", w.ID, ErrNotFound)
			}
		}
	}

	payload, err := json.Marshal(summarize(b.Writes))
	if err != nil {
		return err
	}
	// seq orders events committed within the same millisecond.
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO events(
		event_id, seq, family_id, session_id, type, writes, payload_json, issued_at_unixms
	) VALUES(?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM events), ?, ?, ?, ?, ?, ?)`),
		newEventID(), b.FamilyID, b.SessionID, eventTypeBatch, len(b.Writes), string(payload), nowMs,
	); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return tx.Commit()
}

// Events returns the newest events first. limit == 0 means "all".
func (s *sqlStore) Events(ctx context.Context, familyID string, limit int) ([]model.Event, error) {
	q := `SELECT event_id, family_id, session_id, type, writes, issued_at_unixms
	FROM events
	WHERE family_id = ?
	ORDER BY seq DESC`
	args := []any{strings.TrimSpace(familyID)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.q(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var (
			ev     model.Event
			writes int64
			issued int64
		)
		if err := rows.Scan(&ev.ID, &ev.FamilyID, &ev.SessionID, &ev.Type, &writes, &issued); err != nil {
			return nil, err
		}
		ev.Writes = int(writes)
		ev.TS = time.UnixMilli(issued).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *sqlStore) Close() error { return s.db.Close() }

const eventTypeBatch = "batch.commit"

type writeSummary struct {
	Op model.WriteOp `json:"op"`
	ID string        `json:"id"`
}

func summarize(ws []model.Write) []writeSummary {
	out := make([]writeSummary, 0, len(ws))
	for _, w := range ws {
		out = append(out, writeSummary{Op: w.Op, ID: w.ID})
	}
	return out
}
