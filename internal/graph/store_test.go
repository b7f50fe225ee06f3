package graph

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/playperu/coopquest/internal/coopquest"
)

const mainYAML = `
id: main
entry: start
nodes:
  start:
    title: Gate
    mode: vote
    choices:
      - id: go
        text: Go in
        next: hall
      - id: archive
        text: Visit the archive
        action:
          type: start_side_quest
          questId: archive
          entryNodeId: archive_a
  hall:
    title: Hall
    choices:
      - id: back
        next: start
`

const sideYAML = `
id: archive
entry: archive_a
nodes:
  archive_a:
    mode: contribute
    choices:
      - id: read
        baseScore: 10
        tags: [logic]
        next: archive_b
  archive_b:
    choices:
      - id: dust
        next: archive_c
  archive_c:
    choices:
      - id: leave
        baseScore: 5
        action: return
`

func TestLoadAndLookup(t *testing.T) {
	fsys := fstest.MapFS{
		"g/main.yaml":    {Data: []byte(mainYAML)},
		"g/archive.yaml": {Data: []byte(sideYAML)},
	}
	s, err := Load(fsys, "g")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	n, err := s.RequireNode("start")
	if err != nil {
		t.Fatalf("RequireNode: %v", err)
	}
	c, ok := n.Choice("archive")
	if !ok {
		t.Fatal("missing archive choice")
	}
	sq, ok := c.Action.(StartSideQuest)
	if !ok {
		t.Fatalf("action = %T, want StartSideQuest", c.Action)
	}
	if sq.QuestID != "archive" || sq.EntryNodeID != "archive_a" {
		t.Errorf("unexpected payload %+v", sq)
	}

	if goIn, _ := n.Choice("go"); goIn.Action != nil {
		t.Errorf("choice without action decoded as %T", goIn.Action)
	}

	leave, _ := s.nodes["archive_c"].Choice("leave")
	if _, ok := leave.Action.(Return); !ok {
		t.Errorf("shorthand return decoded as %T", leave.Action)
	}

	if got := s.NamespaceOf("archive_b"); got != "archive" {
		t.Errorf("NamespaceOf = %q", got)
	}
	if _, err := s.RequireNode("missing"); !errors.Is(err, coopquest.ErrNotFound) {
		t.Errorf("RequireNode(missing) err = %v, want ErrNotFound", err)
	}
	if n.Mode != ModeVote || s.nodes["hall"].Mode != ModeVote {
		t.Error("mode should default to vote")
	}

	rep := s.Validate()
	if err := rep.Err(); err != nil {
		t.Fatalf("Validate errors: %v", err)
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", rep.Warnings)
	}
}

func TestDuplicateNodeAcrossNamespaces(t *testing.T) {
	a := &Namespace{ID: "a", Nodes: map[string]*Node{"x": {}}}
	b := &Namespace{ID: "b", Nodes: map[string]*Node{"x": {}}}
	if _, err := New(a, b); !errors.Is(err, coopquest.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestValidate(t *testing.T) {
	ns := &Namespace{
		ID: "main",
		Nodes: map[string]*Node{
			"a": {ID: "not_a", Choices: []Choice{
				{ID: "dangling", NextNodeID: "nowhere"},
				{ID: "ret", NextNodeID: "also_nowhere", Action: Return{}},
			}},
		},
	}
	s, err := New(ns)
	if err != nil {
		t.Fatal(err)
	}
	rep := s.Validate()

	if len(rep.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly the dangling choice", rep.Errors)
	}
	if !strings.Contains(rep.Errors[0].Error(), "nowhere") {
		t.Errorf("unexpected error %v", rep.Errors[0])
	}

	var sawEntry, sawMismatch bool
	for _, w := range rep.Warnings {
		sawEntry = sawEntry || strings.Contains(w, "no entry")
		sawMismatch = sawMismatch || strings.Contains(w, "declares id")
	}
	if !sawEntry || !sawMismatch {
		t.Errorf("warnings = %v", rep.Warnings)
	}
}

func TestDeclaredIDMismatchKeepsKey(t *testing.T) {
	ns, err := ParseNamespace([]byte(`
id: main
entry: start
nodes:
  start:
    id: start_v1
    choices:
      - id: enter
        next: start
`))
	if err != nil {
		t.Fatalf("ParseNamespace: %v", err)
	}
	s, err := New(ns)
	if err != nil {
		t.Fatal(err)
	}
	n, err := s.RequireNode("start")
	if err != nil {
		t.Fatal(err)
	}
	if n.ID != "start" {
		t.Errorf("node id = %q, want map key %q", n.ID, "start")
	}
	if _, ok := s.Node("start_v1"); ok {
		t.Error("declared id should not be addressable")
	}
	rep := s.Validate()
	if rep.Err() != nil || len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0], "start_v1") {
		t.Errorf("report = %+v", rep)
	}
}

func TestUnknownAction(t *testing.T) {
	_, err := ParseNamespace([]byte(`
id: x
nodes:
  a:
    choices:
      - id: c
        action: {type: teleport}
`))
	if err == nil || !strings.Contains(err.Error(), "teleport") {
		t.Fatalf("err = %v, want unknown action", err)
	}
}

func TestReachableStaysInNamespace(t *testing.T) {
	fsys := fstest.MapFS{
		"g/main.yaml":    {Data: []byte(mainYAML)},
		"g/archive.yaml": {Data: []byte(sideYAML)},
	}
	s, err := Load(fsys, "g")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(s.Reachable("archive_a")); got != 3 {
		t.Errorf("Reachable(archive_a) = %d nodes, want 3", got)
	}
	if got := len(s.Reachable("start")); got != 2 {
		t.Errorf("Reachable(start) = %d nodes, want 2", got)
	}
}
