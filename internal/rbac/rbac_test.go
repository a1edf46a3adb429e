package rbac

import (
	"testing"

	"github.com/MushhX/RavixPteroX/internal/models"
)

func TestResolveAdminGetsWildcard(t *testing.T) {
	perms := Resolve(models.UserRoleAdmin)
	if len(perms) != 1 || perms[0] != Wildcard {
		t.Fatalf("admin perms = %v, want [%s]", perms, Wildcard)
	}
}

func TestResolveUserGetsFixedSubset(t *testing.T) {
	perms := Resolve(models.UserRoleUser)
	if !HasPerm(perms, PermPanelRead) || !HasPerm(perms, PermPanelPower) {
		t.Fatalf("user perms = %v, missing panel permissions", perms)
	}
	if HasPerm(perms, PermAdminUsers) {
		t.Fatal("user role must not hold admin permissions")
	}
}

func TestResolveUnknownRoleIsEmpty(t *testing.T) {
	perms := Resolve(models.UserRole("superuser"))
	if len(perms) != 0 {
		t.Fatalf("unknown role perms = %v, want empty", perms)
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	perms := Resolve(models.UserRoleUser)
	perms[0] = "mutated"
	if Resolve(models.UserRoleUser)[0] == "mutated" {
		t.Fatal("Resolve leaked its internal slice")
	}
}

func TestHasPermWildcardSatisfiesEverything(t *testing.T) {
	granted := []string{Wildcard}
	for _, required := range []string{PermPanelRead, PermPanelPower, PermAdminUsers, PermAdminAudit, "anything:else"} {
		if !HasPerm(granted, required) {
			t.Errorf("wildcard did not satisfy %q", required)
		}
	}
}

func TestHasPermVerbatimOnly(t *testing.T) {
	granted := []string{PermPanelRead}
	if !HasPerm(granted, PermPanelRead) {
		t.Error("verbatim member rejected")
	}
	if HasPerm(granted, "ptero") || HasPerm(granted, "ptero:read:extra") {
		t.Error("non-verbatim match accepted")
	}
	if HasPerm(nil, PermPanelRead) {
		t.Error("empty grant accepted")
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole("admin") != models.UserRoleAdmin {
		t.Error("admin not parsed")
	}
	for _, s := range []string{"user", "", "root", "ADMIN"} {
		if ParseRole(s) != models.UserRoleUser {
			t.Errorf("ParseRole(%q) should default to user", s)
		}
	}
}
