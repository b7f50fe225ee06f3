package camp

import (
	"errors"
	"testing"

	"github.com/playperu/coopquest/internal/coopquest"
)

const catalogYAML = `
items:
  - {id: pills, kind: consumable, name: Pills}
  - {id: lens, kind: gear, name: Lens, scoreBonus: 2, tags: [visual]}
  - {id: charm, kind: artifact, name: Charm, scoreBonus: 3}
upgrades:
  - {id: infirmary, name: Infirmary, maxLevel: 2, costs: [10, 25]}
`

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := ParseCatalog([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	return c
}

func TestTryConsumeInventory(t *testing.T) {
	inv := map[string]int{"pills": 2}

	if !TryConsumeInventory(inv, "pills", 1) || inv["pills"] != 1 {
		t.Fatalf("first consume: %v", inv)
	}
	if !TryConsumeInventory(inv, "pills", 1) {
		t.Fatal("second consume failed")
	}
	if _, ok := inv["pills"]; ok {
		t.Fatalf("key should be deleted at zero: %v", inv)
	}
	if TryConsumeInventory(inv, "pills", 1) {
		t.Fatal("third consume should fail")
	}
	if len(inv) != 0 {
		t.Fatalf("failed consume mutated map: %v", inv)
	}
}

func TestAward(t *testing.T) {
	c := mustCatalog(t)
	inv := map[string]int{}
	res := c.Award(inv, []Grant{{"pills", 2}, {"ghost-item", 1}, {"lens", 0}})

	if !res[0].Awarded || res[1].Awarded || res[2].Awarded {
		t.Fatalf("results = %+v", res)
	}
	if inv["pills"] != 2 || len(inv) != 1 {
		t.Errorf("inventory = %v", inv)
	}
}

func TestBonus(t *testing.T) {
	c := mustCatalog(t)
	inv := map[string]int{"lens": 1, "charm": 1, "pills": 3}

	if got := c.Bonus(inv, KindGear, []string{"visual"}); got != 2 {
		t.Errorf("gear bonus visual = %d, want 2", got)
	}
	if got := c.Bonus(inv, KindGear, []string{"logic"}); got != 0 {
		t.Errorf("gear bonus logic = %d, want 0", got)
	}
	if got := c.Bonus(inv, KindArtifact, nil); got != 3 {
		t.Errorf("artifact bonus = %d, want 3", got)
	}
}

func TestPurchaseUpgrade(t *testing.T) {
	c := mustCatalog(t)
	l := NewLedger()
	l.Credits = 40

	if lvl, err := l.PurchaseUpgrade(c, "infirmary"); err != nil || lvl != 1 {
		t.Fatalf("level 1: %d %v", lvl, err)
	}
	if lvl, err := l.PurchaseUpgrade(c, "infirmary"); err != nil || lvl != 2 {
		t.Fatalf("level 2: %d %v", lvl, err)
	}
	if l.Credits != 5 {
		t.Errorf("credits = %d, want 5", l.Credits)
	}
	if _, err := l.PurchaseUpgrade(c, "infirmary"); !errors.Is(err, coopquest.ErrPreconditionFailed) {
		t.Errorf("max level err = %v", err)
	}
	if _, err := l.PurchaseUpgrade(c, "moat"); !errors.Is(err, coopquest.ErrNotFound) {
		t.Errorf("unknown upgrade err = %v", err)
	}
}

func TestPurchaseUpgradeInsufficientCredits(t *testing.T) {
	c := mustCatalog(t)
	l := NewLedger()
	l.Credits = 3
	if _, err := l.PurchaseUpgrade(c, "infirmary"); !errors.Is(err, coopquest.ErrPreconditionFailed) {
		t.Fatalf("err = %v", err)
	}
	if l.Credits != 3 || l.Upgrades["infirmary"] != 0 {
		t.Errorf("failed purchase mutated ledger: %+v", l)
	}
}

func TestNormalize(t *testing.T) {
	l := Ledger{Inventory: map[string]int{"x": -1, "y": 2}, Credits: -5}
	l.Normalize()
	if _, ok := l.Inventory["x"]; ok || l.Credits != 0 || l.Upgrades == nil {
		t.Errorf("normalized = %+v", l)
	}
}
