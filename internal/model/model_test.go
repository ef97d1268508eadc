package model

import (
	"encoding/json"
	"testing"
)

func TestClone_DoesNotShareParentOrPayload(t *testing.T) {
	pid := "p"
	it := OrderedItem{ID: "a", ContainerID: "menu1", ParentID: &pid, Payload: json.RawMessage(`{"label":"Home"}`)}

	cp := it.Clone()
	*cp.ParentID = "q"
	cp.Payload[2] = 'X'

	if it.Parent() != "p" {
		t.Fatalf("expected original parent p, got %q", it.Parent())
	}
	if string(it.Payload) != `{"label":"Home"}` {
		t.Fatalf("expected original payload untouched, got %s", it.Payload)
	}
}

func TestSameParent_NilAndEmptyAreRoot(t *testing.T) {
	empty := " "
	if !SameParent(nil, &empty) {
		t.Fatalf("expected nil and blank parent to compare equal")
	}
	a, b := "a", "b"
	if SameParent(&a, &b) {
		t.Fatalf("expected different parents to differ")
	}
}

func TestSiblingKey_RootsUseEmptyParent(t *testing.T) {
	it := OrderedItem{ID: "a", ContainerID: "menu1"}
	if k := it.SiblingKey(); k.ContainerID != "menu1" || k.ParentID != "" {
		t.Fatalf("unexpected key: %+v", k)
	}
	if StringPtr("  ") != nil {
		t.Fatalf("expected blank string to map to nil parent")
	}
}
