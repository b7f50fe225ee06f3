package scoring

import (
	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/graph"
)

// Voter is one counted vote entering a scored stage.
type Voter struct {
	PlayerID      int64
	Role          coopquest.Role
	Choice        *graph.Choice
	ItemBonus     float64
	ArtifactBonus float64
}

// StageInput carries the active modifiers and statuses of a side quest.
type StageInput struct {
	Voters         []Voter
	GlobalBuffs    map[string]float64
	PlayerBuffs    map[int64]map[string]float64
	GlobalStatuses map[string]int
	PlayerStatuses map[int64]map[string]int
}

type StageResult struct {
	Total     int
	PerPlayer map[int64]int
}

// ScoreStage runs the contribution pipeline for every voter.
func ScoreStage(in StageInput) StageResult {
	res := StageResult{PerPlayer: make(map[int64]int, len(in.Voters))}
	for _, v := range in.Voters {
		if v.Choice == nil {
			continue
		}
		tags := v.Choice.Tags
		buff := BuffMultiplier(in.GlobalBuffs, tags) * BuffMultiplier(in.PlayerBuffs[v.PlayerID], tags)
		status := StatusMultiplier(in.GlobalStatuses, tags) * StatusMultiplier(in.PlayerStatuses[v.PlayerID], tags)

		score := ContributionScore(
			v.Choice.BaseScore,
			ClassMultiplier(v.Choice, v.Role),
			buff,
			status,
			v.ItemBonus,
			v.ArtifactBonus,
		)
		res.PerPlayer[v.PlayerID] += score
		res.Total += score
	}
	return res
}

// Tick decrements every status by one turn and drops expired ones.
func Tick(statuses map[string]int) {
	for id, turns := range statuses {
		if turns <= 1 {
			delete(statuses, id)
			continue
		}
		statuses[id] = turns - 1
	}
}
