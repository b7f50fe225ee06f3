package coopquest

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"", "", false},
		{"ghost", RoleGhost, false},
		{"valkyrie", RoleValkyrie, false},
		{"bard", "", true},
		{"Ghost", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) err = %v", tt.in, err)
			continue
		}
		if err != nil && !errors.Is(err, ErrPreconditionFailed) {
			t.Errorf("ParseRole(%q) err = %v, want ErrPreconditionFailed", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultSkillsPerRole(t *testing.T) {
	signature := map[Role]string{
		RoleValkyrie:  SkillEmpathy,
		RoleVorschlag: SkillAnalysis,
		RoleGhost:     SkillPerception,
		RoleShustrya:  SkillSolidarity,
	}
	for _, r := range Roles {
		if got := DefaultSkills(r)[signature[r]]; got != 3 {
			t.Errorf("%s %s = %d, want 3", r, signature[r], got)
		}
	}
	if got := DefaultSkills("")[SkillCourage]; got != 1 {
		t.Errorf("roleless courage = %d, want 1", got)
	}
}
