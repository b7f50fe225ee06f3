package camp

import (
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// Item kinds with engine meaning. Anything else is inert stash content.
const (
	KindConsumable = "consumable"
	KindGear       = "gear"
	KindArtifact   = "artifact"
)

// Template describes an item by id; balancing data lives in content.
type Template struct {
	ID         string         `yaml:"id" json:"id"`
	Kind       string         `yaml:"kind" json:"kind"`
	Name       string         `yaml:"name" json:"name"`
	Stats      map[string]int `yaml:"stats" json:"stats,omitempty"`
	ScoreBonus int            `yaml:"scoreBonus" json:"scoreBonus,omitempty"`
	Tags       []string       `yaml:"tags" json:"tags,omitempty"`
}

// Matches reports whether the template's bonus applies to a choice with tags.
// Untagged templates apply everywhere.
func (t Template) Matches(tags []string) bool {
	if len(t.Tags) == 0 {
		return true
	}
	for _, a := range t.Tags {
		for _, b := range tags {
			if a == b {
				return true
			}
		}
	}
	return false
}

// UpgradeDef is a purchasable base upgrade.
type UpgradeDef struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	MaxLevel int    `yaml:"maxLevel"`
	Costs    []int  `yaml:"costs"`
}

// CostFor returns the credit cost of reaching level; the last authored cost
// repeats for higher levels.
func (u UpgradeDef) CostFor(level int) int {
	if len(u.Costs) == 0 {
		return 0
	}
	i := min(max(level-1, 0), len(u.Costs)-1)
	return u.Costs[i]
}

// Catalog is the item/reward collaborator backed by static content.
type Catalog struct {
	items    map[string]Template
	upgrades map[string]UpgradeDef
}

type catalogDoc struct {
	Items    []Template   `yaml:"items"`
	Upgrades []UpgradeDef `yaml:"upgrades"`
}

func ParseCatalog(b []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	c := &Catalog{
		items:    make(map[string]Template, len(doc.Items)),
		upgrades: make(map[string]UpgradeDef, len(doc.Upgrades)),
	}
	for _, it := range doc.Items {
		if _, dup := c.items[it.ID]; dup {
			return nil, fmt.Errorf("item %q defined twice", it.ID)
		}
		c.items[it.ID] = it
	}
	for _, u := range doc.Upgrades {
		if u.MaxLevel <= 0 {
			u.MaxLevel = 1
		}
		c.upgrades[u.ID] = u
	}
	return c, nil
}

func LoadCatalog(fsys fs.FS, name string) (*Catalog, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	c, err := ParseCatalog(b)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return c, nil
}

func (c *Catalog) Template(id string) (Template, bool) {
	t, ok := c.items[id]
	return t, ok
}

func (c *Catalog) Upgrade(id string) (UpgradeDef, bool) {
	u, ok := c.upgrades[id]
	return u, ok
}

// Grant is one item award.
type Grant struct {
	Item string `json:"item"`
	Qty  int    `json:"qty"`
}

// AwardResult reports whether one grant landed.
type AwardResult struct {
	Item    string `json:"item"`
	Qty     int    `json:"qty"`
	Awarded bool   `json:"awarded"`
	Reason  string `json:"reason,omitempty"`
}

// Award adds grants to inv. Unknown templates and non-positive quantities
// are rejected per item; the rest still land.
func (c *Catalog) Award(inv map[string]int, grants []Grant) []AwardResult {
	out := make([]AwardResult, 0, len(grants))
	for _, g := range grants {
		res := AwardResult{Item: g.Item, Qty: g.Qty}
		switch _, known := c.items[g.Item]; {
		case !known:
			res.Reason = "unknown template"
		case g.Qty <= 0:
			res.Reason = "non-positive quantity"
		default:
			AddInventory(inv, g.Item, g.Qty)
			res.Awarded = true
		}
		out = append(out, res)
	}
	return out
}

// Bonus sums the score bonus of items of kind held in inv that match tags.
func (c *Catalog) Bonus(inv map[string]int, kind string, tags []string) int {
	total := 0
	for id, qty := range inv {
		t, ok := c.items[id]
		if !ok || qty <= 0 || t.Kind != kind || t.ScoreBonus == 0 || !t.Matches(tags) {
			continue
		}
		total += t.ScoreBonus
	}
	return total
}
