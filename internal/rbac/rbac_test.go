package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "client read", role: RoleClient, action: ActionRead, allow: true},
		{name: "client comment", role: RoleClient, action: ActionComment, allow: true},
		{name: "client triage", role: RoleClient, action: ActionTriage, allow: false},
		{name: "team read", role: RoleTeam, action: ActionRead, allow: true},
		{name: "team triage", role: RoleTeam, action: ActionTriage, allow: false},
		{name: "architect triage", role: RoleArchitect, action: ActionTriage, allow: true},
		{name: "architect admin", role: RoleArchitect, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("architect"); got != RoleArchitect {
		t.Fatalf("Normalize(architect) = %q", got)
	}
	if got := Normalize("superuser"); got != RoleClient {
		t.Fatalf("Normalize(superuser) = %q, want client fallback", got)
	}
}
