package auth

import (
	"errors"
	"testing"
	"time"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleOperator, PermRunRead, true},
		{RoleOperator, PermRunStart, true},
		{RoleOperator, PermRunControl, true},
		{RoleViewer, PermRunRead, true},
		{RoleViewer, PermRunStart, false},
		{RoleViewer, PermRunControl, false},
		{Role("guest"), PermRunRead, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestPermissionsForRole_ReturnsCopy(t *testing.T) {
	perms := PermissionsForRole(RoleViewer)
	perms[0] = PermRunControl
	if HasPermission(RoleViewer, PermRunControl) {
		t.Error("mutating the returned slice changed the role")
	}
	if PermissionsForRole(Role("guest")) != nil {
		t.Error("unknown role should have no permissions")
	}
}

func TestPermissionForAction(t *testing.T) {
	tests := map[string]Permission{
		"status": PermRunRead,
		"start":  PermRunStart,
		"pause":  PermRunControl,
		"resume": PermRunControl,
		"cancel": PermRunControl,
		"reboot": "",
	}
	for action, want := range tests {
		if got := PermissionForAction(action); got != want {
			t.Errorf("PermissionForAction(%q) = %q, want %q", action, got, want)
		}
	}
}

func TestAuthenticator(t *testing.T) {
	viewerToken, _, err := IssueToken("dash", RoleViewer, testKey, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	a := NewAuthenticator(testKey, true)

	p, err := a.Authenticate(testKey, "")
	if err != nil || p.Role != RoleOperator || p.Method != "key" {
		t.Errorf("key auth = %+v, %v", p, err)
	}

	p, err = a.Authenticate("", viewerToken)
	if err != nil || p.Role != RoleViewer || p.Subject != "dash" {
		t.Errorf("token auth = %+v, %v", p, err)
	}

	if _, err := a.Authenticate("wrong", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("wrong key error = %v, want ErrUnauthorized", err)
	}
	if _, err := a.Authenticate(testKey, "bad-token"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("bad token error = %v, want ErrUnauthorized", err)
	}

	open := NewAuthenticator("", false)
	if p, err := open.Authenticate("", ""); err != nil || p.Method != "none" {
		t.Errorf("disabled auth = %+v, %v", p, err)
	}
}

func TestAuthorize(t *testing.T) {
	viewer := &Principal{Subject: "v", Role: RoleViewer}
	if err := Authorize(viewer, PermRunRead); err != nil {
		t.Errorf("Authorize(read) error = %v", err)
	}
	if err := Authorize(viewer, PermRunStart); !errors.Is(err, ErrForbidden) {
		t.Errorf("Authorize(start) error = %v, want ErrForbidden", err)
	}
	if err := Authorize(viewer, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("Authorize(unknown) error = %v, want ErrForbidden", err)
	}
	if err := Authorize(nil, PermRunRead); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Authorize(nil) error = %v, want ErrUnauthorized", err)
	}
}

func TestAuthenticateToken(t *testing.T) {
	token, _, err := IssueToken("mqtt-bridge", RoleViewer, testKey, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	a := NewAuthenticator(testKey, true)

	if p, err := a.AuthenticateToken(testKey); err != nil || p.Method != "key" {
		t.Errorf("key = %+v, %v", p, err)
	}
	if p, err := a.AuthenticateToken(token); err != nil || p.Role != RoleViewer {
		t.Errorf("token = %+v, %v", p, err)
	}
	for _, bad := range []string{"", "nope"} {
		if _, err := a.AuthenticateToken(bad); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("AuthenticateToken(%q) error = %v, want ErrUnauthorized", bad, err)
		}
	}
}
