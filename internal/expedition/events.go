package expedition

import (
	"fmt"
	"math"

	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/random"
)

// Event kinds handled by the Resolver.
const (
	EventPsiWave     = "psi_wave"
	EventInjuryRoll  = "injury_roll"
	EventInjuryTreat = "injury_treat"
)

// TraitPool is what a failed psi-wave roll can inflict.
var TraitPool = []string{"paranoia", "tremor", "insomnia", "echoes"}

// Deltas applied on outcomes.
const (
	PsiFailMorale     = -10
	InjuryFailHP      = -20
	TreatSuccessHP    = 25
	TreatFailHP       = -10
	treatMoraleWeight = 20.0
	skillWeight       = 7.0
)

type treatment struct {
	skill string
	base  float64
}

var treatments = map[coopquest.Role]treatment{
	coopquest.RoleValkyrie:  {coopquest.SkillEmpathy, 55},
	coopquest.RoleVorschlag: {coopquest.SkillAnalysis, 45},
	coopquest.RoleGhost:     {coopquest.SkillPerception, 40},
	coopquest.RoleShustrya:  {coopquest.SkillSolidarity, 35},
}

// PlayerSnapshot is the view of a player an event roll needs.
type PlayerSnapshot struct {
	PlayerID    int64
	Role        coopquest.Role
	HPRatio     float64
	MoraleRatio float64
	Skills      map[string]int
}

// PlayerResult is one player's roll.
type PlayerResult struct {
	PlayerID       int64  `json:"playerId"`
	Chance         int    `json:"chance"`
	Roll           int    `json:"roll"`
	Passed         bool   `json:"passed"`
	Trait          string `json:"trait,omitempty"`
	HPDelta        int    `json:"hpDelta,omitempty"`
	MoraleDelta    int    `json:"moraleDelta,omitempty"`
	NeedsTreatment bool   `json:"needsTreatment,omitempty"`
}

// Outcome summarizes a resolved expedition event.
type Outcome struct {
	Kind    string         `json:"kind"`
	Success bool           `json:"success"`
	Actor   int64          `json:"actor,omitempty"`
	Target  int64          `json:"target,omitempty"`
	Results []PlayerResult `json:"results"`
}

// Resolver is stateless apart from its random source.
type Resolver struct {
	rng random.Source
}

func NewResolver(rng random.Source) *Resolver {
	return &Resolver{rng: rng}
}

func clampChance(v float64) int {
	return int(math.Round(min(max(v, 5), 95)))
}

func (r *Resolver) roll(chance int) (int, bool) {
	roll := random.D100(r.rng)
	return roll, roll <= chance
}

// PsiWave rolls every player independently; the group passes only if all do.
func (r *Resolver) PsiWave(players []PlayerSnapshot) Outcome {
	out := Outcome{Kind: EventPsiWave, Success: true}
	for _, p := range players {
		chance := clampChance(25 + p.MoraleRatio*45 + float64(p.Skills[coopquest.SkillCourage])*skillWeight + (p.HPRatio-0.5)*20)
		roll, ok := r.roll(chance)
		res := PlayerResult{PlayerID: p.PlayerID, Chance: chance, Roll: roll, Passed: ok}
		if !ok {
			out.Success = false
			res.Trait, _ = random.Pick(r.rng, TraitPool)
			res.MoraleDelta = PsiFailMorale
		}
		out.Results = append(out.Results, res)
	}
	return out
}

// InjuryRoll picks one player uniformly and rolls against injury.
func (r *Resolver) InjuryRoll(players []PlayerSnapshot) Outcome {
	out := Outcome{Kind: EventInjuryRoll, Success: true}
	p, ok := random.Pick(r.rng, players)
	if !ok {
		return out
	}
	chance := clampChance(35 + p.HPRatio*30 + p.MoraleRatio*15 + float64(p.Skills[coopquest.SkillEndurance])*skillWeight)
	roll, passed := r.roll(chance)
	res := PlayerResult{PlayerID: p.PlayerID, Chance: chance, Roll: roll, Passed: passed}
	if !passed {
		res.HPDelta = InjuryFailHP
		res.NeedsTreatment = true
	}
	out.Success = passed
	out.Target = p.PlayerID
	out.Results = []PlayerResult{res}
	return out
}

// InjuryTreat resolves a treatment attempt by actor on the injured player.
func (r *Resolver) InjuryTreat(actor PlayerSnapshot, injuredID int64) (Outcome, error) {
	t, ok := treatments[actor.Role]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: role %q cannot treat injuries", coopquest.ErrPreconditionFailed, actor.Role)
	}
	chance := clampChance(t.base + actor.MoraleRatio*treatMoraleWeight + float64(actor.Skills[t.skill])*skillWeight)
	roll, passed := r.roll(chance)

	res := PlayerResult{PlayerID: injuredID, Chance: chance, Roll: roll, Passed: passed}
	if passed {
		res.HPDelta = TreatSuccessHP
	} else {
		res.HPDelta = TreatFailHP
		res.NeedsTreatment = true
	}
	return Outcome{
		Kind:    EventInjuryTreat,
		Success: passed,
		Actor:   actor.PlayerID,
		Target:  injuredID,
		Results: []PlayerResult{res},
	}, nil
}
