package graph

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ActionKind names a tagged choice action.
type ActionKind string

const (
	ActionStartSideQuest         ActionKind = "start_side_quest"
	ActionReturn                 ActionKind = "return"
	ActionStartCoopBattle        ActionKind = "start_coop_battle"
	ActionStartExpedition        ActionKind = "start_expedition"
	ActionAdvanceExpeditionStage ActionKind = "advance_expedition_stage"
	ActionResolveExpeditionEvent ActionKind = "resolve_expedition_event"
)

// Action is a closed set of choice side actions. Each variant carries only
// the fields it needs; the session engine switches on the concrete type.
type Action interface {
	Kind() ActionKind
	action()
}

type StartSideQuest struct {
	QuestID      string  `yaml:"questId"`
	EntryNodeID  string  `yaml:"entryNodeId"`
	Stages       int     `yaml:"stages"`
	BaseStageAvg float64 `yaml:"baseStageAvg"`
	Difficulty   float64 `yaml:"difficulty"`
}

type Return struct{}

type StartCoopBattle struct {
	ScenarioID   string `yaml:"scenarioId"`
	Threat       int    `yaml:"threat"`
	ReturnNodeID string `yaml:"returnNodeId"`
	DefeatNodeID string `yaml:"defeatNodeId"`
	Reward       int    `yaml:"reward"`
}

type StartExpedition struct {
	PoolID   string `yaml:"poolId"`
	MaxTurns int    `yaml:"maxTurns"`
}

type AdvanceExpeditionStage struct{}

type ResolveExpeditionEvent struct {
	Event         string `yaml:"event"`
	ActorRole     string `yaml:"actorRole"`
	SuccessNodeID string `yaml:"successNodeId"`
	FailureNodeID string `yaml:"failureNodeId"`
}

func (StartSideQuest) Kind() ActionKind         { return ActionStartSideQuest }
func (Return) Kind() ActionKind                 { return ActionReturn }
func (StartCoopBattle) Kind() ActionKind        { return ActionStartCoopBattle }
func (StartExpedition) Kind() ActionKind        { return ActionStartExpedition }
func (AdvanceExpeditionStage) Kind() ActionKind { return ActionAdvanceExpeditionStage }
func (ResolveExpeditionEvent) Kind() ActionKind { return ActionResolveExpeditionEvent }

func (StartSideQuest) action()         {}
func (Return) action()                 {}
func (StartCoopBattle) action()        {}
func (StartExpedition) action()        {}
func (AdvanceExpeditionStage) action() {}
func (ResolveExpeditionEvent) action() {}

// UnmarshalYAML decodes the choice and its optional tagged action.
func (c *Choice) UnmarshalYAML(value *yaml.Node) error {
	type plain Choice
	var raw struct {
		Fields plain     `yaml:",inline"`
		Action yaml.Node `yaml:"action"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = Choice(raw.Fields)
	if raw.Action.Kind == 0 {
		return nil
	}
	a, err := decodeAction(&raw.Action)
	if err != nil {
		return fmt.Errorf("choice %q: %w", c.ID, err)
	}
	c.Action = a
	return nil
}

func decodeAction(n *yaml.Node) (Action, error) {
	// Shorthand: `action: return`.
	if n.Kind == yaml.ScalarNode {
		return actionFor(ActionKind(n.Value), nil)
	}
	var head struct {
		Type ActionKind `yaml:"type"`
	}
	if err := n.Decode(&head); err != nil {
		return nil, err
	}
	return actionFor(head.Type, n)
}

func actionFor(kind ActionKind, n *yaml.Node) (Action, error) {
	decode := func(v any) error {
		if n == nil {
			return nil
		}
		return n.Decode(v)
	}

	switch kind {
	case ActionStartSideQuest:
		var a StartSideQuest
		err := decode(&a)
		return a, err
	case ActionReturn:
		return Return{}, nil
	case ActionStartCoopBattle:
		var a StartCoopBattle
		err := decode(&a)
		return a, err
	case ActionStartExpedition:
		var a StartExpedition
		err := decode(&a)
		return a, err
	case ActionAdvanceExpeditionStage:
		return AdvanceExpeditionStage{}, nil
	case ActionResolveExpeditionEvent:
		var a ResolveExpeditionEvent
		err := decode(&a)
		return a, err
	default:
		return nil, fmt.Errorf("unknown action type %q", kind)
	}
}
