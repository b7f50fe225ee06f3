package content

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/playperu/coopquest/internal/graph"
	"github.com/playperu/coopquest/internal/scoring"
)

func TestEmbeddedContentLoads(t *testing.T) {
	b, err := Load(FS(), "exp_wave")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, w := range b.Warnings {
		t.Errorf("unexpected warning: %s", w)
	}

	for _, id := range []string{"start", "exp_wave", "negotiation_alliance", "negotiation_truce", "negotiation_hostile", "vault_reveal"} {
		if _, ok := b.Graph.Node(id); !ok {
			t.Errorf("node %q missing", id)
		}
	}
	if ns, ok := b.Graph.Namespace(graph.MainNamespace); !ok || ns.Entry != "start" {
		t.Errorf("main namespace = %+v", ns)
	}
	if got := scoring.AutoStageCount(b.Graph, "archive_entry"); got != 2 {
		t.Errorf("archive stages = %d, want 2", got)
	}
	if _, err := b.Pools.Pool("ruins"); err != nil {
		t.Errorf("ruins pool: %v", err)
	}
	if _, ok := b.Catalog.Upgrade("infirmary"); !ok {
		t.Error("infirmary upgrade missing")
	}
}

func TestLoadRejectsDanglingHub(t *testing.T) {
	fsys := fstest.MapFS{
		"graphs/main.yaml": {Data: []byte("id: main\nentry: start\nnodes:\n  start:\n    choices:\n      - id: stay\n")},
		"pools/p.yaml":     {Data: []byte("id: p\nstages:\n  - id: s\n    hubNodeId: nowhere\n")},
		"catalog.yaml":     {Data: []byte("items: []\n")},
	}
	_, err := Load(fsys, "start")
	if err == nil || !strings.Contains(err.Error(), "nowhere") {
		t.Fatalf("err = %v, want dangling hub error", err)
	}
}
