// Package expedition implements the turn-budgeted expedition loop: stage
// pools, procedurally offered missions, deadline events and the skill-check
// event resolver.
package expedition

import (
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/playperu/coopquest/internal/coopquest"
)

// EventKind classifies deadline events.
type EventKind string

const (
	EventEnemy EventKind = "enemy"
	EventCheck EventKind = "check"
)

// DeadlineEvent is a weighted entry of a deadline pool.
type DeadlineEvent struct {
	NodeID string    `yaml:"nodeId" json:"nodeId"`
	Kind   EventKind `yaml:"kind" json:"kind"`
	Weight float64   `yaml:"weight" json:"weight"`
}

// MissionKind is either a scored side quest or a direct jump.
type MissionKind string

const (
	MissionSideQuest MissionKind = "side_quest"
	MissionDirect    MissionKind = "direct"
)

// MissionTemplate is an authored mission a stage can offer.
type MissionTemplate struct {
	ID           string      `yaml:"id"`
	Kind         MissionKind `yaml:"kind"`
	Title        string      `yaml:"title"`
	Weight       float64     `yaml:"weight"`
	QuestID      string      `yaml:"questId"`
	EntryNodeID  string      `yaml:"entryNodeId"`
	TargetNodeID string      `yaml:"targetNodeId"`
	Threat       int         `yaml:"threat"`
	TimeCost     int         `yaml:"timeCost"`
}

// Modifier is a weighted mission modifier.
type Modifier struct {
	ID       string             `yaml:"id"`
	Label    string             `yaml:"label"`
	Weight   float64            `yaml:"weight"`
	TimeCost int                `yaml:"timeCost"`
	Buffs    map[string]float64 `yaml:"buffs"`
}

// ThreatRange bounds generated threat levels.
type ThreatRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Stage is one step of a pool.
type Stage struct {
	ID          string            `yaml:"id"`
	Title       string            `yaml:"title"`
	HubNodeID   string            `yaml:"hubNodeId"`
	Slots       []string          `yaml:"slots"`
	RandomCount int               `yaml:"randomCount"`
	Unique      []MissionTemplate `yaml:"unique"`
	Pool        []MissionTemplate `yaml:"pool"`
	Threat      ThreatRange       `yaml:"threat"`
	MaxTurns    int               `yaml:"maxTurns"`
	Deadline    []DeadlineEvent   `yaml:"deadline"`
	Modifiers   []Modifier        `yaml:"modifiers"`
}

// Pool is a named content stage pool.
type Pool struct {
	ID        string          `yaml:"id"`
	Stages    []Stage         `yaml:"stages"`
	Modifiers []Modifier      `yaml:"modifiers"`
	MaxTurns  int             `yaml:"maxTurns"`
	Deadline  []DeadlineEvent `yaml:"deadline"`
}

// StageAt clamps index into the stage list.
func (p *Pool) StageAt(index int) (*Stage, int) {
	if len(p.Stages) == 0 {
		return nil, 0
	}
	index = min(max(index, 0), len(p.Stages)-1)
	return &p.Stages[index], index
}

// Catalog holds every pool by id.
type Catalog struct {
	pools map[string]*Pool
}

func NewCatalog(pools ...*Pool) (*Catalog, error) {
	c := &Catalog{pools: make(map[string]*Pool, len(pools))}
	for _, p := range pools {
		if _, dup := c.pools[p.ID]; dup {
			return nil, fmt.Errorf("%w: pool %q defined twice", coopquest.ErrConflict, p.ID)
		}
		c.pools[p.ID] = p
	}
	return c, nil
}

func (c *Catalog) Pool(id string) (*Pool, error) {
	p, ok := c.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: stage pool %q", coopquest.ErrNotFound, id)
	}
	return p, nil
}

// IDs lists every pool id, sorted.
func (c *Catalog) IDs() []string {
	out := make([]string, 0, len(c.pools))
	for id := range c.pools {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HubNodes lists every hub node referenced by any stage.
func (c *Catalog) HubNodes() []string {
	var out []string
	for _, p := range c.pools {
		for _, s := range p.Stages {
			out = append(out, s.HubNodeID)
		}
	}
	sort.Strings(out)
	return out
}

// LoadCatalog reads every *.yaml file in dir as a pool.
func LoadCatalog(fsys fs.FS, dir string) (*Catalog, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	pools := make([]*Pool, 0, len(files))
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		var p Pool
		if err := yaml.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%s: pool without id", f)
		}
		pools = append(pools, &p)
	}
	return NewCatalog(pools...)
}
