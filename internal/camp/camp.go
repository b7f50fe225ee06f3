// Package camp is the secondary resource ledger: shared stash, credits and
// base upgrades, plus the item template catalog the engine consults by id.
package camp

import (
	"fmt"

	"github.com/playperu/coopquest/internal/coopquest"
)

// Ledger is the camp sub-record of a session.
type Ledger struct {
	Inventory map[string]int `json:"inventory"`
	Credits   int            `json:"credits"`
	Upgrades  map[string]int `json:"upgrades"`
}

func NewLedger() Ledger {
	return Ledger{Inventory: map[string]int{}, Upgrades: map[string]int{}}
}

// Normalize repairs nil maps and negative balances.
func (l *Ledger) Normalize() {
	if l.Inventory == nil {
		l.Inventory = map[string]int{}
	}
	if l.Upgrades == nil {
		l.Upgrades = map[string]int{}
	}
	for id, qty := range l.Inventory {
		if qty <= 0 {
			delete(l.Inventory, id)
		}
	}
	for id, lvl := range l.Upgrades {
		if lvl <= 0 {
			delete(l.Upgrades, id)
		}
	}
	l.Credits = max(l.Credits, 0)
}

// TryConsumeInventory removes qty of id. The key is deleted when it reaches
// zero. It returns false and leaves inv untouched when the balance is short.
func TryConsumeInventory(inv map[string]int, id string, qty int) bool {
	if qty <= 0 {
		return true
	}
	have := inv[id]
	if have < qty {
		return false
	}
	if have == qty {
		delete(inv, id)
		return true
	}
	inv[id] = have - qty
	return true
}

// AddInventory adds qty of id; non-positive quantities are ignored.
func AddInventory(inv map[string]int, id string, qty int) {
	if qty <= 0 {
		return
	}
	inv[id] += qty
}

// PurchaseUpgrade raises an upgrade one level, paying its credit cost.
func (l *Ledger) PurchaseUpgrade(c *Catalog, id string) (int, error) {
	def, ok := c.Upgrade(id)
	if !ok {
		return 0, fmt.Errorf("%w: upgrade %q", coopquest.ErrNotFound, id)
	}
	level := l.Upgrades[id]
	if level >= def.MaxLevel {
		return level, fmt.Errorf("%w: upgrade %q already at max level %d", coopquest.ErrPreconditionFailed, id, def.MaxLevel)
	}
	cost := def.CostFor(level + 1)
	if l.Credits < cost {
		return level, fmt.Errorf("%w: upgrade %q costs %d credits, have %d", coopquest.ErrPreconditionFailed, id, cost, l.Credits)
	}
	l.Credits -= cost
	l.Upgrades[id] = level + 1
	return level + 1, nil
}
