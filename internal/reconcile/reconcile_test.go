package reconcile

import (
	"errors"
	"sort"
	"testing"

	"pagecraft/internal/forest"
	"pagecraft/internal/model"
	"pagecraft/internal/move"
)

func item(id, container, parent string, order int) model.OrderedItem {
	return model.OrderedItem{ID: id, FamilyID: "menu:main", ContainerID: container, ParentID: model.StringPtr(parent), Order: order}
}

func byID(items []model.OrderedItem) map[string]model.OrderedItem {
	out := map[string]model.OrderedItem{}
	for _, it := range items {
		out[it.ID] = it
	}
	return out
}

func assertContiguous(t *testing.T, items []model.OrderedItem) {
	t.Helper()
	groups := map[model.SiblingKey][]int{}
	for _, it := range items {
		groups[it.SiblingKey()] = append(groups[it.SiblingKey()], it.Order)
	}
	for k, orders := range groups {
		sort.Ints(orders)
		for i, o := range orders {
			if o != i {
				t.Fatalf("group %+v not contiguous: %v", k, orders)
			}
		}
	}
}

func menu1() []model.OrderedItem {
	return []model.OrderedItem{
		item("A", "menu1", "", 0),
		item("B", "menu1", "", 1),
		item("C", "menu1", "B", 0),
	}
}

func TestMenuScenario_PlainReorder(t *testing.T) {
	res, err := move.Interpreter{}.Interpret(menu1(), nil, move.Gesture{ActiveID: "A", OverID: "B"})
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	got, err := Reconcile(res.Items)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	m := byID(got)
	if m["B"].Order != 0 || !m["B"].IsRoot() {
		t.Fatalf("expected B(order0,root), got %+v", m["B"])
	}
	if m["A"].Order != 1 || !m["A"].IsRoot() {
		t.Fatalf("expected A(order1,root), got %+v", m["A"])
	}
	if m["C"].Order != 0 || m["C"].Parent() != "B" {
		t.Fatalf("expected C(order0,parent=B), got %+v", m["C"])
	}
}

func TestMenuScenario_NestBeyondThreshold(t *testing.T) {
	res, err := move.Interpreter{Threshold: 30}.Interpret(menu1(), nil, move.Gesture{ActiveID: "A", OverID: "B", LateralOffset: 31})
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	got, err := Reconcile(res.Items)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	m := byID(got)
	if m["B"].Order != 0 || !m["B"].IsRoot() {
		t.Fatalf("expected B(order0,root), got %+v", m["B"])
	}
	if m["A"].Order != 0 || m["A"].Parent() != "B" {
		t.Fatalf("expected A(order0,parent=B), got %+v", m["A"])
	}
	if m["C"].Order != 1 || m["C"].Parent() != "B" {
		t.Fatalf("expected C(order1,parent=B), got %+v", m["C"])
	}
}

func TestReconcile_TransferCompactsSourceAndExpandsTarget(t *testing.T) {
	items := []model.OrderedItem{
		item("a", "col0", "", 0),
		item("b", "col0", "", 1),
		item("c", "col0", "", 2),
		item("x", "col1", "", 0),
		item("y", "col1", "", 1),
	}
	res, err := move.Interpreter{}.Interpret(items, nil, move.Gesture{ActiveID: "b", OverID: "x"})
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	got, err := Reconcile(res.Items)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	assertContiguous(t, got)
	m := byID(got)
	if m["c"].Order != 1 || m["a"].Order != 0 {
		t.Fatalf("expected col0 compacted to a,c; got a=%d c=%d", m["a"].Order, m["c"].Order)
	}
	// Moving down lands after the drop target.
	if m["b"].ContainerID != "col1" || m["x"].Order != 0 || m["b"].Order != 1 || m["y"].Order != 2 {
		t.Fatalf("expected col1 = x,b,y; got %+v", got)
	}
}

func TestReconcile_RejectsCycleAndKeepsInput(t *testing.T) {
	candidate := []model.OrderedItem{item("a", "m", "b", 0), item("b", "m", "a", 0)}
	got, err := Reconcile(candidate)
	if !errors.Is(err, forest.ErrStructural) || got != nil {
		t.Fatalf("expected structural error and no output, got %v %v", got, err)
	}
	if candidate[0].Parent() != "b" || candidate[1].Order != 0 {
		t.Fatalf("expected candidate untouched, got %+v", candidate)
	}
}

func TestContiguity_AfterOperationSequence(t *testing.T) {
	items := []model.OrderedItem{
		item("a", "m", "", 0),
		item("b", "m", "", 1),
		item("c", "m", "", 2),
		item("d", "m", "", 3),
		item("e", "m", "", 4),
	}
	in := move.Interpreter{Threshold: 20}
	gestures := []move.Gesture{
		{ActiveID: "b", OverID: "b", LateralOffset: 25},  // nest b under a
		{ActiveID: "c", OverID: "c", LateralOffset: 25},  // nest c under b
		{ActiveID: "e", OverID: "a"},                     // reorder e to the top
		{ActiveID: "c", OverID: "c", LateralOffset: -25}, // un-nest c
		{ActiveID: "d", OverID: "b", LateralOffset: 25},  // nest d
	}
	for i, g := range gestures {
		res, err := in.Interpret(items, nil, g)
		if err != nil {
			t.Fatalf("gesture %d: %v", i, err)
		}
		items, err = Reconcile(res.Items)
		if err != nil {
			t.Fatalf("gesture %d reconcile: %v", i, err)
		}
		assertContiguous(t, items)
	}

	items, removed, err := CascadeDelete(items, "a")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertContiguous(t, items)
	if len(removed)+len(items) != 5 {
		t.Fatalf("expected every item either kept or removed, got removed=%v kept=%d", removed, len(items))
	}
}

func TestCascadeDelete_RemovesNPlusOne(t *testing.T) {
	items := []model.OrderedItem{
		item("r", "m", "", 0),
		item("p", "m", "", 1),
		item("c1", "m", "p", 0),
		item("c2", "m", "p", 1),
		item("g1", "m", "c1", 0),
		item("s", "m", "", 2),
	}
	got, removed, err := CascadeDelete(items, "p")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(removed) != 4 {
		t.Fatalf("expected p plus 3 descendants removed, got %v", removed)
	}
	gone := map[string]bool{}
	for _, id := range removed {
		gone[id] = true
	}
	for _, it := range got {
		if gone[it.Parent()] {
			t.Fatalf("item %s still references deleted parent %s", it.ID, it.Parent())
		}
	}
	m := byID(got)
	if len(got) != 2 || m["r"].Order != 0 || m["s"].Order != 1 {
		t.Fatalf("expected r,s compacted, got %+v", got)
	}

	if _, _, err := CascadeDelete(items, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppend_UsesSiblingCount(t *testing.T) {
	items := menu1()
	got, err := Append(items, item("D", "menu1", "B", 99))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if d := byID(got)["D"]; d.Order != 1 || d.Parent() != "B" {
		t.Fatalf("expected D as second child of B, got %+v", d)
	}
	got, err = Append(got, item("E", "menu1", "", 0))
	if err != nil {
		t.Fatalf("append root: %v", err)
	}
	if e := byID(got)["E"]; e.Order != 2 {
		t.Fatalf("expected E as third root, got %+v", e)
	}

	if _, err := Append(items, item("A", "menu1", "", 0)); !errors.Is(err, forest.ErrStructural) {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}
	if _, err := Append(items, item("Z", "menu1", "nope", 0)); !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("expected ErrUnknownParent, got %v", err)
	}
}

func TestNormalizeAndInspect(t *testing.T) {
	items := []model.OrderedItem{
		item("a", "m", "", 4),
		item("b", "m", "", 9),
		item("c", "m", "ghost", 0),
	}
	rep := Inspect(items)
	if rep.OK() || len(rep.Dangling) != 1 || len(rep.Gaps) != 1 {
		t.Fatalf("expected one dangling ref and one gap, got %+v", rep)
	}

	got, dangling, err := Normalize(items)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(dangling) != 1 || dangling[0].ItemID != "c" {
		t.Fatalf("unexpected dangling: %+v", dangling)
	}
	if rep := Inspect(got); !rep.OK() {
		t.Fatalf("expected normalized list to pass inspection, got %+v", rep)
	}
	m := byID(got)
	if m["a"].Order != 1 || m["b"].Order != 2 || m["c"].Order != 0 || !m["c"].IsRoot() {
		t.Fatalf("unexpected normalized orders: %+v", got)
	}

	bad := Inspect([]model.OrderedItem{item("x", "m", "y", 0), item("y", "m", "x", 0)})
	if bad.Structural == "" {
		t.Fatalf("expected structural problem to be reported")
	}
}
