// Package coopquest defines the core domain vocabulary shared by every
// other package: roles, skills and the error taxonomy.
package coopquest

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidState       = errors.New("invalid state")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrConflict           = errors.New("conflict")
)

// Role is one of the four fixed player roles. A session holds at most one
// participant per role.
type Role string

const (
	RoleValkyrie  Role = "valkyrie"
	RoleVorschlag Role = "vorschlag"
	RoleGhost     Role = "ghost"
	RoleShustrya  Role = "shustrya"
)

// Roles lists every role in seating order.
var Roles = []Role{RoleValkyrie, RoleVorschlag, RoleGhost, RoleShustrya}

func (r Role) Valid() bool {
	switch r {
	case RoleValkyrie, RoleVorschlag, RoleGhost, RoleShustrya:
		return true
	}
	return false
}

// ParseRole accepts an empty string as "no role".
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrPreconditionFailed, s)
	}
	return r, nil
}

// Named skills referenced by expedition events and choice gates.
const (
	SkillCourage    = "courage"
	SkillEndurance  = "endurance"
	SkillEmpathy    = "empathy"
	SkillAnalysis   = "analysis"
	SkillPerception = "perception"
	SkillSolidarity = "solidarity"
)

// Vital stat names used by requiredStats gates and encounter reports.
const (
	StatHP      = "hp"
	StatMorale  = "morale"
	StatStamina = "stamina"
)

// DefaultSkills returns the starting skill spread for a role.
func DefaultSkills(r Role) map[string]int {
	base := map[string]int{
		SkillCourage:    1,
		SkillEndurance:  1,
		SkillEmpathy:    1,
		SkillAnalysis:   1,
		SkillPerception: 1,
		SkillSolidarity: 1,
	}
	switch r {
	case RoleValkyrie:
		base[SkillEmpathy] = 3
		base[SkillCourage] = 2
	case RoleVorschlag:
		base[SkillAnalysis] = 3
		base[SkillEndurance] = 2
	case RoleGhost:
		base[SkillPerception] = 3
		base[SkillCourage] = 2
	case RoleShustrya:
		base[SkillSolidarity] = 3
		base[SkillEndurance] = 2
	}
	return base
}
