package model

import (
	"encoding/json"
	"strings"
	"time"
)

type ItemKind string

const (
	ItemKindMenuItem ItemKind = "menu_item"
	ItemKindSection  ItemKind = "section"
	ItemKindBlock    ItemKind = "block"
	ItemKindWidget   ItemKind = "widget"
)

// Container is a sibling scope: a menu, or one column of a page section.
type Container struct {
	ID       string `json:"id"`
	FamilyID string `json:"familyId"`
	Label    string `json:"label,omitempty"`
}

// OrderedItem is the shape shared by every orderable collection (menu items, page
// sections, section blocks, widget instances).
//
// Two items are siblings iff they share ContainerID and ParentID. Order is zero-based
// and contiguous within a sibling group.
type OrderedItem struct {
	ID          string `json:"id"`
	FamilyID    string `json:"familyId"`
	ContainerID string `json:"containerId"`

	ParentID *string `json:"parentId,omitempty"`
	Order    int     `json:"order"`

	Kind ItemKind `json:"kind,omitempty"`

	// Payload is owned by the surrounding feature (label/url for menu items, block layout
	// reference for page blocks). The engine never inspects it.
	Payload json.RawMessage `json:"payload,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Parent returns the parent id, or "" for roots.
func (it OrderedItem) Parent() string {
	if it.ParentID == nil {
		return ""
	}
	return strings.TrimSpace(*it.ParentID)
}

func (it OrderedItem) IsRoot() bool { return it.Parent() == "" }

// Clone returns a copy that shares no pointers with it.
func (it OrderedItem) Clone() OrderedItem {
	out := it
	if it.ParentID != nil {
		pid := *it.ParentID
		out.ParentID = &pid
	}
	if it.Payload != nil {
		out.Payload = append(json.RawMessage(nil), it.Payload...)
	}
	return out
}

func CloneItems(items []OrderedItem) []OrderedItem {
	if items == nil {
		return nil
	}
	out := make([]OrderedItem, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// SiblingKey identifies a sibling group.
type SiblingKey struct {
	ContainerID string
	ParentID    string // "" for roots
}

func (it OrderedItem) SiblingKey() SiblingKey {
	return SiblingKey{ContainerID: it.ContainerID, ParentID: it.Parent()}
}

// SameParent reports whether a and b name the same parent (nil and "" both mean root).
func SameParent(a, b *string) bool {
	pa, pb := "", ""
	if a != nil {
		pa = strings.TrimSpace(*a)
	}
	if b != nil {
		pb = strings.TrimSpace(*b)
	}
	return pa == pb
}

func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type WriteOp string

const (
	WriteCreate WriteOp = "create"
	WriteMove   WriteOp = "move"
	WriteDelete WriteOp = "delete"
)

// Write is one document write in an atomic batch.
//
// For WriteMove only Item.ContainerID, Item.ParentID and Item.Order are meaningful;
// the store must leave payload untouched. WriteCreate carries the full item.
type Write struct {
	Op   WriteOp     `json:"op"`
	ID   string      `json:"id"`
	Item OrderedItem `json:"item"`
}

// Event is an audit record appended alongside each committed batch.
type Event struct {
	ID        string    `json:"id"`
	TS        time.Time `json:"ts"`
	FamilyID  string    `json:"familyId"`
	SessionID string    `json:"sessionId"`
	Type      string    `json:"type"`
	Writes    int       `json:"writes"`
}
