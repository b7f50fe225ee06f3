package scoring

import (
	"math"
	"testing"

	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/graph"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTargetTotal(t *testing.T) {
	tests := []struct {
		name    string
		avg     float64
		stages  int
		players int
		diff    float64
		want    int
	}{
		{"reference", 10, 3, 4, 1.0, 120},
		{"floors stages and players", 10, 0, -2, 1.0, 10},
		{"difficulty", 10, 2, 2, 1.25, 50},
		{"defaults on garbage", math.NaN(), 1, 1, math.Inf(1), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TargetTotal(tt.avg, tt.stages, tt.players, tt.diff); got != tt.want {
				t.Errorf("TargetTotal = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestContributionScore(t *testing.T) {
	if got := ContributionScore(10, 1.5, 0.8, 1.0, 0, 5); got != 17 {
		t.Errorf("ContributionScore = %d, want 17", got)
	}
	if got := ContributionScore(10, math.NaN(), math.Inf(-1), math.NaN(), math.NaN(), 2); got != 12 {
		t.Errorf("non-finite inputs should default, got %d", got)
	}
	if got := ContributionScore(math.NaN(), 2, 2, 2, 3, 0); got != 3 {
		t.Errorf("missing base should score only bonuses, got %d", got)
	}
}

func TestBuffMultiplier(t *testing.T) {
	mods := map[string]float64{"focus": 1.2, "tag:visual": 0.5}
	if got := BuffMultiplier(mods, []string{"visual"}); !approx(got, 0.6) {
		t.Errorf("visual = %v, want 0.6", got)
	}
	if got := BuffMultiplier(mods, []string{"logic"}); !approx(got, 1.2) {
		t.Errorf("logic = %v, want 1.2", got)
	}
	if got := BuffMultiplier(map[string]float64{"x": math.NaN()}, nil); got != 1.0 {
		t.Errorf("NaN modifier = %v, want 1.0", got)
	}
	if got := BuffMultiplier(nil, nil); got != 1.0 {
		t.Errorf("nil modifiers = %v", got)
	}
}

func TestStatusMultiplier(t *testing.T) {
	active := map[string]int{"inspired": 2, "panicked": 0, "unknown": 3}
	if got := StatusMultiplier(active, []string{"logic"}); !approx(got, 1.2) {
		t.Errorf("StatusMultiplier = %v, want 1.2 (expired panic ignored)", got)
	}
	active["panicked"] = 1
	if got := StatusMultiplier(active, []string{"logic"}); !approx(got, 1.2*0.7) {
		t.Errorf("StatusMultiplier = %v, want %v", got, 1.2*0.7)
	}
}

func TestClassMultiplier(t *testing.T) {
	override := &graph.Choice{
		Tags:             []string{"stealth"},
		ClassMultipliers: map[coopquest.Role]float64{coopquest.RoleVorschlag: 1.5},
	}
	if got := ClassMultiplier(override, coopquest.RoleVorschlag); got != 1.5 {
		t.Errorf("override = %v, want 1.5", got)
	}

	tagged := &graph.Choice{Tags: []string{"stealth", "visual"}}
	if got := ClassMultiplier(tagged, coopquest.RoleGhost); got != 1.5 {
		t.Errorf("max tag = %v, want 1.5", got)
	}
	if got := ClassMultiplier(tagged, coopquest.RoleShustrya); got != 1.0 {
		t.Errorf("no affinity = %v, want 1.0", got)
	}

	locked := &graph.Choice{RequiredRole: coopquest.RoleShustrya, Tags: []string{"supply"}}
	if got := ClassMultiplier(locked, coopquest.RoleShustrya); got < 1.5 {
		t.Errorf("role-locked = %v, want >= 1.5", got)
	}
	if got := ClassMultiplier(nil, coopquest.RoleGhost); got != 1.0 {
		t.Errorf("nil choice = %v", got)
	}
}

func TestAutoStageCount(t *testing.T) {
	ns := &graph.Namespace{
		ID:    "side",
		Entry: "a",
		Nodes: map[string]*graph.Node{
			"a": {Choices: []graph.Choice{{ID: "x", BaseScore: 5, NextNodeID: "b"}}},
			"b": {Choices: []graph.Choice{{ID: "y", NextNodeID: "c"}}},
			"c": {Choices: []graph.Choice{{ID: "z", BaseScore: 3, Action: graph.Return{}}}},
		},
	}
	g, err := graph.New(ns)
	if err != nil {
		t.Fatal(err)
	}
	if got := AutoStageCount(g, "a"); got != 2 {
		t.Errorf("AutoStageCount = %d, want 2", got)
	}
	if got := AutoStageCount(g, "b"); got != 1 {
		t.Errorf("AutoStageCount(b) = %d, want 1", got)
	}
	if got := AutoStageCount(g, "missing"); got != 1 {
		t.Errorf("AutoStageCount(missing) = %d, want 1", got)
	}
}

func TestScoreStageAndTick(t *testing.T) {
	read := &graph.Choice{BaseScore: 10, Tags: []string{"logic"}}
	in := StageInput{
		Voters: []Voter{
			{PlayerID: 1, Role: coopquest.RoleVorschlag, Choice: read},
			{PlayerID: 2, Role: coopquest.RoleGhost, Choice: read, ArtifactBonus: 2},
		},
		GlobalBuffs:    map[string]float64{"tag:logic": 1.2},
		PlayerStatuses: map[int64]map[string]int{2: {"panicked": 1}},
	}
	res := ScoreStage(in)
	// vorschlag: 10 × 1.5 × 1.2 = 18; ghost: 10 × 1 × 1.2 × 0.7 = 8.4 → 8 + 2
	if res.PerPlayer[1] != 18 || res.PerPlayer[2] != 10 || res.Total != 28 {
		t.Errorf("ScoreStage = %+v", res)
	}

	statuses := map[string]int{"a": 1, "b": 3}
	Tick(statuses)
	if _, ok := statuses["a"]; ok || statuses["b"] != 2 {
		t.Errorf("Tick = %v", statuses)
	}
}
