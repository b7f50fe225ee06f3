// Package scoring computes contribution scores for side-quest stages.
//
// Every function here is pure and total: missing or non-finite inputs fall
// back to neutral values (1.0 for multipliers, 0 for additive bonuses)
// instead of failing.
package scoring

import (
	"math"
	"strings"

	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/graph"
)

// TagPrefix marks modifier keys that only apply to choices carrying the tag.
const TagPrefix = "tag:"

// RoleLockFloor is the minimum multiplier a role-locked choice grants its role.
const RoleLockFloor = 1.5

// roleTags maps each role's affinity tags to a multiplier.
var roleTags = map[coopquest.Role]map[string]float64{
	coopquest.RoleValkyrie: {
		"social":  1.5,
		"medical": 1.4,
		"empathy": 1.3,
		"combat":  1.2,
	},
	coopquest.RoleVorschlag: {
		"logic":    1.5,
		"tech":     1.4,
		"analysis": 1.3,
		"research": 1.2,
	},
	coopquest.RoleGhost: {
		"stealth":    1.5,
		"visual":     1.4,
		"perception": 1.3,
		"scouting":   1.2,
	},
	coopquest.RoleShustrya: {
		"physical": 1.5,
		"agility":  1.4,
		"teamwork": 1.3,
		"supply":   1.2,
	},
}

// Statuses maps a status id to the modifier set it applies while active.
var Statuses = map[string]map[string]float64{
	"inspired":  {"focus": 1.2},
	"exhausted": {"fatigue": 0.8},
	"panicked":  {"tag:logic": 0.7, "tag:social": 0.8},
	"shadowed":  {"tag:stealth": 1.3},
	"bleeding":  {"tag:physical": 0.75},
	"attuned":   {"tag:visual": 1.25, "tag:perception": 1.15},
}

func finiteOr(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// round rounds half away from zero for positives, matching the scoring
// tables' authored examples.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}

// ClassMultiplier returns the role multiplier for a choice.
func ClassMultiplier(c *graph.Choice, role coopquest.Role) float64 {
	if c == nil {
		return 1.0
	}
	if v, ok := c.ClassMultipliers[role]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}

	mult := 1.0
	found := false
	for _, tag := range c.Tags {
		if v, ok := roleTags[role][tag]; ok && (!found || v > mult) {
			mult = v
			found = true
		}
	}
	if c.RequiredRole != "" && c.RequiredRole == role && mult < RoleLockFloor {
		mult = RoleLockFloor
	}
	return mult
}

func modifierApplies(key string, tags []string) bool {
	tag, scoped := strings.CutPrefix(key, TagPrefix)
	if !scoped {
		return true
	}
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// BuffMultiplier multiplies every untagged modifier plus every `tag:X`
// modifier whose tag the choice carries.
func BuffMultiplier(modifiers map[string]float64, tags []string) float64 {
	mult := 1.0
	for key, v := range modifiers {
		if !modifierApplies(key, tags) {
			continue
		}
		mult *= finiteOr(v, 1.0)
	}
	return mult
}

// StatusMultiplier applies the modifier sets of statuses with turns left.
func StatusMultiplier(active map[string]int, tags []string) float64 {
	mult := 1.0
	for id, turns := range active {
		if turns <= 0 {
			continue
		}
		mult *= BuffMultiplier(Statuses[id], tags)
	}
	return mult
}

// ContributionScore is round(base × class × buff × status) + item + artifact.
func ContributionScore(base, classMult, buffMult, statusMult, itemBonus, artifactBonus float64) int {
	base = finiteOr(base, 0)
	product := base * finiteOr(classMult, 1) * finiteOr(buffMult, 1) * finiteOr(statusMult, 1)
	return round(product) + round(finiteOr(itemBonus, 0)) + round(finiteOr(artifactBonus, 0))
}

// Default inputs for TargetTotal.
const (
	DefaultBaseStageAvg = 10.0
	DefaultDifficulty   = 1.0
)

// TargetTotal is the score a side quest must reach to succeed.
func TargetTotal(baseStageAvg float64, stages, players int, difficulty float64) int {
	if baseStageAvg <= 0 || math.IsNaN(baseStageAvg) || math.IsInf(baseStageAvg, 0) {
		baseStageAvg = DefaultBaseStageAvg
	}
	if difficulty <= 0 || math.IsNaN(difficulty) || math.IsInf(difficulty, 0) {
		difficulty = DefaultDifficulty
	}
	stages = max(stages, 1)
	players = max(players, 1)
	return round(baseStageAvg * float64(stages) * float64(players) * difficulty)
}

// AutoStageCount counts scored nodes reachable from entry within its
// namespace. It never returns less than 1.
func AutoStageCount(g *graph.Store, entry string) int {
	n := 0
	for _, node := range g.Reachable(entry) {
		if node.Scored() {
			n++
		}
	}
	return max(n, 1)
}
