package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"pagecraft/internal/model"
	"pagecraft/internal/mutate"
	"pagecraft/internal/store"
)

const fam = "menu:main"

func mk(id, container, parent string, order int) model.OrderedItem {
	return model.OrderedItem{ID: id, FamilyID: fam, ContainerID: container, ParentID: model.StringPtr(parent), Order: order, Kind: model.ItemKindMenuItem}
}

func newTestModel(t *testing.T, items ...model.OrderedItem) (appModel, *store.Memory) {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)
	setGlyphs(glyphSetASCII)

	ctx := context.Background()
	st := store.NewMemory()
	for _, c := range []model.Container{{ID: "menu1", FamilyID: fam, Label: "Header"}, {ID: "menu2", FamilyID: fam, Label: "Footer"}} {
		if err := st.PutContainer(ctx, c); err != nil {
			t.Fatalf("PutContainer: %v", err)
		}
	}
	st.Seed(items...)
	c, err := mutate.Open(ctx, st, fam, mutate.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return newAppModel(ctx, c, Options{Threshold: 40}), st
}

func press(t *testing.T, m appModel, keys ...tea.KeyMsg) (appModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var mAny tea.Model
		mAny, cmd = m.Update(k)
		m = mAny.(appModel)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// settle runs the pending commit command and feeds its result back.
func settle(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a commit command")
	}
	mAny, _ := m.Update(cmd())
	return mAny.(appModel)
}

func rowIDs(m appModel) string {
	parts := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		parts = append(parts, r.item.ID+":"+string(rune('0'+r.depth)))
	}
	return strings.Join(parts, ",")
}

func TestTab_NestsUnderPreviousSibling(t *testing.T) {
	m, st := newTestModel(t, mk("a", "menu1", "", 0), mk("b", "menu1", "", 1))

	m, _ = press(t, m, runes("j"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if got := rowIDs(m); got != "a:0,b:1" {
		t.Fatalf("nest must be visible before commit, got %s", got)
	}
	if !m.committing {
		t.Fatalf("expected committing")
	}
	m = settle(t, m, cmd)
	if m.committing || m.statusKind != statusOK {
		t.Fatalf("expected saved status, got %q", m.status)
	}
	if m.selectedID != "b" {
		t.Fatalf("cursor should follow b, got %s", m.selectedID)
	}
	got, _ := st.Fetch(context.Background(), fam)
	for _, it := range got {
		if it.ID == "b" && it.Parent() != "a" {
			t.Fatalf("b not persisted under a: %+v", it)
		}
	}

	// Shift+tab brings it back.
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m = settle(t, m, cmd)
	if got := rowIDs(m); got != "a:0,b:0" {
		t.Fatalf("expected un-nested, got %s", got)
	}
}

func TestNestAtTopIsReportedAsDegraded(t *testing.T) {
	m, _ := newTestModel(t, mk("a", "menu1", "", 0))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.statusKind != statusWarn {
		t.Fatalf("expected warning, got %q", m.status)
	}
	m = settle(t, m, cmd)
	if m.statusKind != statusWarn || !strings.Contains(m.status, "nest not possible") {
		t.Fatalf("warning should survive commit, got %q", m.status)
	}
}

func TestMoveUp_RollsBackWhenCommitFails(t *testing.T) {
	m, st := newTestModel(t, mk("a", "menu1", "", 0), mk("b", "menu1", "", 1))
	st.FailNext(errors.New("database is locked"))

	m, _ = press(t, m, runes("j"))
	m, cmd := press(t, m, runes("K"))
	if got := rowIDs(m); got != "b:0,a:0" {
		t.Fatalf("expected optimistic b,a, got %s", got)
	}

	// A second gesture while saving is refused.
	m2, cmd2 := press(t, m, runes("J"))
	if cmd2 != nil || m2.statusKind != statusWarn {
		t.Fatalf("expected in-flight refusal, got %q", m2.status)
	}

	m = settle(t, m, cmd)
	if got := rowIDs(m); got != "a:0,b:0" {
		t.Fatalf("expected revert to a,b, got %s", got)
	}
	if m.statusKind != statusError || !strings.Contains(m.status, "database is locked") {
		t.Fatalf("expected error status, got %q", m.status)
	}
	if len(st.Batches()) != 0 {
		t.Fatalf("nothing should be persisted")
	}
}

func TestMoveUp_AtTopOfGroupIsNoop(t *testing.T) {
	m, _ := newTestModel(t, mk("a", "menu1", "", 0), mk("a1", "menu1", "a", 0))
	m, _ = press(t, m, runes("j"))
	m, cmd := press(t, m, runes("K"))
	if cmd != nil {
		t.Fatalf("first child must not move over its parent")
	}
	if !strings.Contains(m.status, "already first") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	m, st := newTestModel(t, mk("a", "menu1", "", 0), mk("a1", "menu1", "a", 0), mk("b", "menu1", "", 1))

	m, cmd := press(t, m, runes("d"), runes("n"))
	if cmd != nil || len(m.rows) != 3 {
		t.Fatalf("delete should be cancelled")
	}

	m, cmd = press(t, m, runes("d"), runes("y"))
	if got := rowIDs(m); got != "b:0" {
		t.Fatalf("expected subtree gone, got %s", got)
	}
	m = settle(t, m, cmd)
	left, _ := st.Fetch(context.Background(), fam)
	if len(left) != 1 || left[0].ID != "b" {
		t.Fatalf("expected only b persisted, got %+v", left)
	}
	if m.selectedID != "b" {
		t.Fatalf("cursor should land on b, got %q", m.selectedID)
	}
}

func TestNextContainer_AppendsSubtree(t *testing.T) {
	m, st := newTestModel(t, mk("a", "menu1", "", 0), mk("a1", "menu1", "a", 0), mk("x", "menu2", "", 0))

	m, cmd := press(t, m, runes("]"))
	m = settle(t, m, cmd)
	got, _ := st.Fetch(context.Background(), fam)
	for _, it := range got {
		if (it.ID == "a" || it.ID == "a1") && it.ContainerID != "menu2" {
			t.Fatalf("%s should move to menu2: %+v", it.ID, it)
		}
		if it.ID == "a" && it.Order != 1 {
			t.Fatalf("a should follow x, order=%d", it.Order)
		}
	}
	if !strings.Contains(m.View(), "(empty)") {
		t.Fatalf("menu1 should render as empty:\n%s", m.View())
	}

	m, cmd = press(t, m, runes("]"))
	if cmd != nil {
		t.Fatalf("no container after menu2")
	}
}

func TestCopyID(t *testing.T) {
	var copied string
	old := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	defer func() { writeClipboard = old }()

	m, _ := newTestModel(t, mk("a", "menu1", "", 0))
	m, _ = press(t, m, runes("y"))
	if copied != "a" || !strings.Contains(m.status, "copied a") {
		t.Fatalf("expected id copied, got %q / %q", copied, m.status)
	}
}

func TestView_RendersContainersLabelsAndDetail(t *testing.T) {
	payload := `{"label":"Home","url":"/"}`
	a := mk("a", "menu1", "", 0)
	a.Payload = []byte(payload)
	m, _ := newTestModel(t, a, mk("a1", "menu1", "a", 0))
	mAny, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = mAny.(appModel)

	out := m.View()
	for _, want := range []string{"Header (menu1)", "Footer (menu2)", "> + Home", "    * a1", "(empty)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.showDetail {
		t.Fatalf("enter should open details")
	}
	if out := m.View(); !strings.Contains(out, "url") {
		t.Fatalf("expected payload in detail pane:\n%s", out)
	}
}
