package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pagecraft/internal/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrBadDriver = errors.New("unknown store driver")
)

// Batch is one atomic commit: every write lands or none does. The store appends one
// audit event per batch in the same transaction.
type Batch struct {
	FamilyID  string        `json:"familyId"`
	SessionID string        `json:"sessionId"`
	Writes    []model.Write `json:"writes"`
}

// Store is the durable sink for ordered items. Fetch returns items in no particular
// order; callers normalize through the forest package.
type Store interface {
	Fetch(ctx context.Context, familyID string) ([]model.OrderedItem, error)
	Containers(ctx context.Context, familyID string) ([]model.Container, error)
	PutContainer(ctx context.Context, c model.Container) error
	CommitBatch(ctx context.Context, b Batch) error
	Events(ctx context.Context, familyID string, limit int) ([]model.Event, error)
	Close() error
}

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverSurreal  Driver = "surrealdb"
	DriverMemory   Driver = "memory"
)

func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	case "surrealdb", "surreal":
		return DriverSurreal, nil
	case "memory", "mem":
		return DriverMemory, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrBadDriver, s)
	}
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg StoreConfig) (Store, error) {
	d, err := ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	switch d {
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	case DriverSurreal:
		return OpenSurreal(ctx, cfg.Surreal)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return OpenSQLite(ctx, cfg.Dir)
	}
}

func validateBatch(b Batch) error {
	if strings.TrimSpace(b.FamilyID) == "" {
		return errors.New("batch: missing family id")
	}
	for i, w := range b.Writes {
		if strings.TrimSpace(w.ID) == "" {
			return fmt.Errorf("batch: write %d: missing id", i)
		}
		switch w.Op {
		case model.WriteCreate, model.WriteMove:
			if w.Item.ID != "" && w.Item.ID != w.ID {
				return fmt.Errorf("batch: write %d: item id %q does not match %q", i, w.Item.ID, w.ID)
			}
		case model.WriteDelete:
		default:
			return fmt.Errorf("batch: write %d: unknown op %q", i, w.Op)
		}
	}
	return nil
}
