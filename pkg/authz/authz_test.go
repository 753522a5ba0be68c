package authz

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

const testModel = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.dom == p.dom && r.obj == p.obj && r.act == p.act
`

var menusRead = Requirement{Object: ObjectNavigationMenus, Action: ActionRead}
var menusAdmin = Requirement{Object: ObjectNavigationMenus, Action: ActionAdmin}

func TestParseMode(t *testing.T) {
	cases := []struct {
		raw    string
		unsafe bool
		want   Mode
		ok     bool
	}{
		{"", false, ModeEnforce, true},
		{" Shadow ", false, ModeShadow, true},
		{"ENFORCE", false, ModeEnforce, true},
		{"disabled", false, "", false},
		{"disabled", true, ModeDisabled, true},
		{"off", true, "", false},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.raw, tc.unsafe)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("raw=%q got=%q err=%v", tc.raw, got, err)
		}
	}
}

func TestNewAuthorizer_Files(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.conf")
	policy := filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(model, []byte(testModel), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(policy, []byte("p, role:tenant-admin, t1, navigation.menus, read\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := NewAuthorizer(model, policy, ModeEnforce)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	d, err := a.Check("tenant-admin", "T1", menusRead)
	if err != nil || d != (Decision{Allowed: true, Enforced: true}) {
		t.Fatalf("d=%+v err=%v", d, err)
	}
}

func TestNewAuthorizer_Errors(t *testing.T) {
	dir := t.TempDir()
	invalidModel := filepath.Join(dir, "invalid.conf")
	if err := os.WriteFile(invalidModel, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAuthorizer(invalidModel, "nope-policy.csv", ModeEnforce); err == nil {
		t.Fatal("expected model error")
	}

	model := filepath.Join(dir, "model.conf")
	if err := os.WriteFile(model, []byte(testModel), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAuthorizer(model, filepath.Join(dir, "missing-policy.csv"), ModeEnforce); err == nil {
		t.Fatal("expected missing policy error")
	}
	policyDir := filepath.Join(dir, "policy-dir")
	if err := os.MkdirAll(policyDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAuthorizer(model, policyDir, ModeEnforce); err == nil {
		t.Fatal("expected policy dir error")
	}

	if _, err := NewAuthorizerFromText("nope", "", ModeEnforce); err == nil {
		t.Fatal("expected text model error")
	}
}

func TestCheck_Modes(t *testing.T) {
	policy := "p, role:tenant-admin, t1, navigation.menus, read"
	cases := []struct {
		mode Mode
		req  Requirement
		want Decision
	}{
		{ModeEnforce, menusRead, Decision{Allowed: true, Enforced: true}},
		{ModeEnforce, menusAdmin, Decision{Allowed: false, Enforced: true}},
		{ModeShadow, menusRead, Decision{Allowed: true}},
		{ModeShadow, menusAdmin, Decision{}},
		{ModeDisabled, menusAdmin, Decision{Allowed: true}},
	}
	for _, tc := range cases {
		a, err := NewAuthorizerFromText(testModel, policy, tc.mode)
		if err != nil {
			t.Fatal(err)
		}
		if a.Mode() != tc.mode {
			t.Fatalf("mode=%q", a.Mode())
		}
		d, err := a.Check("tenant-admin", "t1", tc.req)
		if err != nil {
			t.Fatalf("mode=%s err=%v", tc.mode, err)
		}
		if d != tc.want {
			t.Fatalf("mode=%s req=%+v d=%+v", tc.mode, tc.req, d)
		}
	}
}

func TestCheck_UnknownMode(t *testing.T) {
	a := &Authorizer{mode: Mode("nope")}
	if _, err := a.Check("tenant-admin", "t1", menusRead); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheck_EnforceError(t *testing.T) {
	broken := testModel[:len(testModel)-len("r.sub == p.sub && r.dom == p.dom && r.obj == p.obj && r.act == p.act\n")] + "r.sub == \n"
	for _, mode := range []Mode{ModeShadow, ModeEnforce} {
		a, err := NewAuthorizerFromText(broken, "p, role:tenant-admin, t1, navigation.menus, read", mode)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		d, err := a.Check("tenant-admin", "t1", menusRead)
		if err == nil {
			t.Fatal("expected error")
		}
		if d.Allowed || d.Enforced != (mode == ModeEnforce) {
			t.Fatalf("mode=%s d=%+v", mode, d)
		}
	}
}

func TestSubjectAndDomain(t *testing.T) {
	if got := SubjectFromRoleSlug(""); got != "role:anonymous" {
		t.Fatalf("got=%q", got)
	}
	if got := SubjectFromRoleSlug("Tenant-Admin"); got != "role:tenant-admin" {
		t.Fatalf("got=%q", got)
	}
	if got := DomainFromTenantID(" ABC "); got != "abc" {
		t.Fatalf("got=%q", got)
	}
}

func TestRequirementFor(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   Requirement
		ok     bool
	}{
		{http.MethodGet, "/nav/api/menus", menusRead, true},
		{http.MethodGet, "/nav/api/menus/tree", menusRead, true},
		{http.MethodPost, "/nav/api/menus", menusAdmin, true},
		{http.MethodDelete, "/nav/api/menus/7", menusAdmin, true},
		{http.MethodPost, "/nav/api/menus/7/status/hide", menusAdmin, true},
		{http.MethodGet, "/nav/api/navigation", Requirement{ObjectNavigationCascade, ActionRead}, true},
		{http.MethodGet, "/nav/api/ui-state", Requirement{ObjectNavigationUIState, ActionRead}, true},
		{http.MethodPut, "/nav/api/ui-state", Requirement{ObjectNavigationUIState, ActionAdmin}, true},
		{http.MethodPost, "/nav/api/ui-state/collapse-all", Requirement{ObjectNavigationUIState, ActionAdmin}, true},
		{http.MethodGet, "/nav/api/other", Requirement{}, false},
		{http.MethodGet, "/health", Requirement{}, false},
	}
	for _, tc := range cases {
		got, ok := RequirementFor(tc.method, tc.path)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s %s => %+v %v", tc.method, tc.path, got, ok)
		}
	}
}

func repoConfigPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("config", "access", name)
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		path = filepath.Join("..", path)
	}
	t.Fatalf("%s not found", name)
	return ""
}

func TestShippedPolicy(t *testing.T) {
	a, err := NewAuthorizer(repoConfigPath(t, "model.conf"), repoConfigPath(t, "policy.csv"), ModeEnforce)
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	cases := []struct {
		role string
		req  Requirement
		want bool
	}{
		{RoleTenantViewer, menusRead, true},
		{RoleTenantViewer, Requirement{ObjectNavigationCascade, ActionRead}, true},
		{RoleTenantViewer, menusAdmin, false},
		{RoleTenantViewer, Requirement{ObjectNavigationUIState, ActionAdmin}, true},
		{RoleTenantAdmin, menusAdmin, true},
		{RoleTenantAdmin, menusRead, true},
		{RoleTenantAdmin, Requirement{ObjectNavigationCascade, ActionRead}, true},
		{RoleAnonymous, Requirement{ObjectNavigationCascade, ActionRead}, false},
		{"", menusRead, false},
	}
	for _, tc := range cases {
		d, err := a.Check(tc.role, "00000000-0000-0000-0000-000000000001", tc.req)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if !d.Enforced || d.Allowed != tc.want {
			t.Fatalf("role=%q req=%+v d=%+v", tc.role, tc.req, d)
		}
	}
}
