package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliEnv struct {
	t   *testing.T
	cfg string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	cfg := t.TempDir()
	exports := filepath.Join(t.TempDir(), "exports")
	yml := "store:\n  driver: sqlite\nexport:\n  driver: fs\n  root: " + exports + "\n"
	if err := os.WriteFile(filepath.Join(cfg, "config.yaml"), []byte(yml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{t: t, cfg: cfg}
}

func (e *cliEnv) run(args ...string) []byte {
	e.t.Helper()
	out, errOut, err := runCLI(e.t, append([]string{"--config", e.cfg}, args...))
	if err != nil {
		e.t.Fatalf("%v: %v\nstderr:\n%s", args, err, string(errOut))
	}
	return out
}

func (e *cliEnv) runJSON(args ...string) map[string]any {
	e.t.Helper()
	out := e.run(args...)
	var v map[string]any
	if err := json.Unmarshal(out, &v); err != nil {
		e.t.Fatalf("unmarshal %v: %v\nstdout:\n%s", args, err, string(out))
	}
	return v
}

func itemIDs(t *testing.T, env map[string]any) string {
	t.Helper()
	data, ok := env["data"].([]any)
	if !ok {
		t.Fatalf("data is not a list: %#v", env["data"])
	}
	var ids []string
	for _, d := range data {
		ids = append(ids, d.(map[string]any)["id"].(string))
	}
	return strings.Join(ids, ",")
}

func seedMenu(e *cliEnv) {
	e.run("containers", "add", "menu:main", "menu1", "--label", "Header")
	e.run("containers", "add", "menu:main", "menu2", "--label", "Footer")
	e.run("items", "add", "menu:main", "--id", "a", "--container", "menu1", "--payload", `{"label":"Home"}`)
	e.run("items", "add", "menu:main", "--id", "b", "--container", "menu1")
	e.run("items", "add", "menu:main", "--id", "a1", "--container", "menu1", "--parent", "a")
}

func TestCLI_ContainersAddList(t *testing.T) {
	e := newCLIEnv(t)
	e.run("containers", "add", "menu:main", "menu1", "--label", "Header")

	v := e.runJSON("containers", "list", "menu:main")
	if got := itemIDs(t, v); got != "menu1" {
		t.Fatalf("containers = %q, want menu1", got)
	}
	if c := v["meta"].(map[string]any)["count"].(float64); c != 1 {
		t.Fatalf("count = %v, want 1", c)
	}
}

func TestCLI_ItemsAddListMove(t *testing.T) {
	e := newCLIEnv(t)
	seedMenu(e)

	v := e.runJSON("items", "list", "menu:main")
	if got := itemIDs(t, v); got != "a,a1,b" {
		t.Fatalf("list = %q, want a,a1,b", got)
	}

	v = e.runJSON("items", "move", "menu:main", "b", "--over", "a")
	meta := v["meta"].(map[string]any)
	if meta["kind"] != "reorder" || meta["degraded"] != false {
		t.Fatalf("meta = %#v", meta)
	}
	if meta["state"] != "committed" {
		t.Fatalf("state = %v, want committed", meta["state"])
	}

	v = e.runJSON("items", "list", "menu:main")
	if got := itemIDs(t, v); got != "b,a,a1" {
		t.Fatalf("after move = %q, want b,a,a1", got)
	}
}

func TestCLI_ItemsAddRejectsUnknownContainer(t *testing.T) {
	e := newCLIEnv(t)
	_, errOut, err := runCLI(t, []string{"--config", e.cfg, "items", "add", "menu:main", "--container", "nope"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(string(errOut), "container not found: nope") {
		t.Fatalf("stderr = %q", string(errOut))
	}
}

func TestCLI_ItemsTreeNestsChildren(t *testing.T) {
	e := newCLIEnv(t)
	seedMenu(e)

	v := e.runJSON("items", "tree", "menu:main")
	trees := v["data"].([]any)
	if len(trees) != 2 {
		t.Fatalf("containers = %d, want 2 (empty footer included)", len(trees))
	}
	header := trees[0].(map[string]any)
	if header["id"] != "menu1" || header["label"] != "Header" {
		t.Fatalf("header = %#v", header)
	}
	roots := header["items"].([]any)
	if len(roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(roots))
	}
	kids := roots[0].(map[string]any)["children"].([]any)
	if len(kids) != 1 || kids[0].(map[string]any)["id"] != "a1" {
		t.Fatalf("children of a = %#v", kids)
	}
	if items := trees[1].(map[string]any)["items"].([]any); len(items) != 0 {
		t.Fatalf("footer items = %d, want 0", len(items))
	}
}

func TestCLI_ItemsDeleteCascades(t *testing.T) {
	e := newCLIEnv(t)
	seedMenu(e)

	v := e.runJSON("items", "delete", "menu:main", "a")
	removed := v["data"].(map[string]any)["removed"].([]any)
	if len(removed) != 2 {
		t.Fatalf("removed = %#v, want a and a1", removed)
	}

	v = e.runJSON("items", "list", "menu:main")
	if got := itemIDs(t, v); got != "b" {
		t.Fatalf("after delete = %q, want b", got)
	}
	if o := v["data"].([]any)[0].(map[string]any)["order"].(float64); o != 0 {
		t.Fatalf("b order = %v, want 0", o)
	}

	_, errOut, err := runCLI(t, []string{"--config", e.cfg, "items", "rm", "menu:main", "ghost"})
	if err == nil || !strings.Contains(string(errOut), "item not found: ghost") {
		t.Fatalf("err = %v stderr = %q", err, string(errOut))
	}
}

func TestCLI_DoctorReportsCleanFamily(t *testing.T) {
	e := newCLIEnv(t)
	seedMenu(e)

	v := e.runJSON("doctor", "menu:main", "--fail")
	if ok := v["meta"].(map[string]any)["ok"]; ok != true {
		t.Fatalf("doctor ok = %v, want true\n%#v", ok, v)
	}
}

func TestCLI_ExportAndEvents(t *testing.T) {
	e := newCLIEnv(t)
	seedMenu(e)

	v := e.runJSON("export", "menu:main")
	res := v["data"].(map[string]any)
	if res["driver"] != "fs" || res["items"].(float64) != 3 {
		t.Fatalf("export = %#v", res)
	}
	b, err := os.ReadFile(res["location"].(string))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !bytes.Contains(b, []byte(`"familyId": "menu:main"`)) {
		t.Fatalf("snapshot missing family:\n%s", string(b))
	}

	v = e.runJSON("events", "menu:main", "--limit", "2")
	evs := v["data"].([]any)
	if len(evs) != 2 {
		t.Fatalf("events = %d, want 2", len(evs))
	}
	if evs[0].(map[string]any)["familyId"] != "menu:main" {
		t.Fatalf("event = %#v", evs[0])
	}
}

func TestCLI_FormatYAML(t *testing.T) {
	e := newCLIEnv(t)
	e.run("containers", "add", "menu:main", "menu1", "--label", "Header")

	out := string(e.run("--format", "yaml", "containers", "list", "menu:main"))
	if !strings.Contains(out, "familyId: menu:main") || !strings.Contains(out, "label: Header") {
		t.Fatalf("yaml output:\n%s", out)
	}
}

func TestExecute_ClosesLogFileWhenCommandFails(t *testing.T) {
	e := newCLIEnv(t)
	logPath := filepath.Join(t.TempDir(), "pagecraft.log")
	t.Setenv("PAGECRAFT_LOG_FILE", logPath)

	app := &App{}
	var outBuf, errBuf bytes.Buffer
	err := execute(app, []string{"--config", e.cfg, "--log-level", "debug", "items", "rm", "menu:main", "ghost"}, &outBuf, &errBuf)
	if err == nil {
		t.Fatalf("expected failure deleting a missing item")
	}
	if app.logger != nil {
		t.Fatalf("logger must be released after a failed command")
	}
	b, rerr := os.ReadFile(logPath)
	if rerr != nil {
		t.Fatalf("read log: %v", rerr)
	}
	if !bytes.Contains(b, []byte("store opened")) {
		t.Fatalf("expected debug log lines in file, got:\n%s", string(b))
	}
}

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	e := execute(&App{}, args, &outBuf, &errBuf)
	return outBuf.Bytes(), errBuf.Bytes(), e
}
