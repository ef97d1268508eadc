package mutate

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionInFlight is returned when a new edit starts before the previous session
	// committed or rolled back.
	ErrSessionInFlight = errors.New("reordering session in flight")
	ErrNoSession       = errors.New("no applied session to commit")
)

// CommitError reports a rejected or failed batch. The coordinator has already rolled
// its visible state back to the last persisted snapshot when this is returned.
type CommitError struct {
	FamilyID  string
	SessionID string
	Writes    int
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed for %s (%d writes, rolled back): %v", e.FamilyID, e.Writes, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
