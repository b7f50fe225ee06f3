// Package content bundles the default quest graphs, expedition stage pools
// and item catalog, and loads them from any fs.FS.
package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/playperu/coopquest/internal/camp"
	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/expedition"
	"github.com/playperu/coopquest/internal/graph"
)

//go:embed graphs/*.yaml pools/*.yaml catalog.yaml
var embedded embed.FS

const (
	GraphsDir   = "graphs"
	PoolsDir    = "pools"
	CatalogFile = "catalog.yaml"
)

// FS returns the embedded content.
func FS() fs.FS { return embedded }

// Bundle is everything the engine reads but never writes.
type Bundle struct {
	Graph    *graph.Store
	Pools    *expedition.Catalog
	Catalog  *camp.Catalog
	Warnings []string
}

// Load parses and cross-checks content. Dangling references are fatal;
// authoring slips that do not break traversal come back as warnings.
func Load(fsys fs.FS, waveNode string) (*Bundle, error) {
	g, err := graph.Load(fsys, GraphsDir)
	if err != nil {
		return nil, fmt.Errorf("loading graphs: %w", err)
	}
	rep := g.Validate()
	if err := rep.Err(); err != nil {
		return nil, fmt.Errorf("validating graphs: %w", err)
	}

	pools, err := expedition.LoadCatalog(fsys, PoolsDir)
	if err != nil {
		return nil, fmt.Errorf("loading stage pools: %w", err)
	}
	cat, err := camp.LoadCatalog(fsys, CatalogFile)
	if err != nil {
		return nil, err
	}

	b := &Bundle{Graph: g, Pools: pools, Catalog: cat, Warnings: rep.Warnings}
	if err := b.crossCheck(waveNode); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) crossCheck(waveNode string) error {
	var errs []error
	need := func(what, id string) {
		if id == "" {
			return
		}
		if _, ok := b.Graph.Node(id); !ok {
			errs = append(errs, fmt.Errorf("%s: %w: node %q", what, coopquest.ErrNotFound, id))
		}
	}
	need("wave node", waveNode)
	for _, hub := range b.Pools.HubNodes() {
		need("stage hub", hub)
	}
	for _, id := range b.Pools.IDs() {
		p, _ := b.Pools.Pool(id)
		for _, ev := range p.Deadline {
			need("pool "+id+" deadline", ev.NodeID)
		}
		for _, st := range p.Stages {
			for _, ev := range st.Deadline {
				need("stage "+st.ID+" deadline", ev.NodeID)
			}
			for _, tpl := range append(append([]expedition.MissionTemplate(nil), st.Unique...), st.Pool...) {
				need("mission "+tpl.ID, tpl.EntryNodeID)
				need("mission "+tpl.ID, tpl.TargetNodeID)
			}
		}
	}
	for _, id := range b.Graph.NodeIDs() {
		n, _ := b.Graph.Node(id)
		for _, c := range n.Choices {
			items := make([]string, 0, len(c.Loot)+2)
			for _, l := range c.Loot {
				items = append(items, l.Item)
			}
			if c.ConsumableCost != nil {
				items = append(items, c.ConsumableCost.Item)
			}
			if c.RequiredItem != "" {
				items = append(items, c.RequiredItem)
			}
			for _, it := range items {
				if _, ok := b.Catalog.Template(it); !ok {
					b.Warnings = append(b.Warnings, fmt.Sprintf("node %q choice %q: unknown item %q", id, c.ID, it))
				}
			}
		}
	}
	return errors.Join(errs...)
}
