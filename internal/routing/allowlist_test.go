package routing

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestParseAllowlistYAML_Errors(t *testing.T) {
	t.Parallel()

	_, err := ParseAllowlistYAML([]byte{0xff})
	if err == nil {
		t.Fatal("expected yaml error")
	}

	_, err = ParseAllowlistYAML([]byte("version: 2\nentrypoints: {}"))
	if err == nil {
		t.Fatal("expected version error")
	}

	_, err = ParseAllowlistYAML([]byte("version: 1"))
	if err == nil {
		t.Fatal("expected entrypoints error")
	}

	_, err = ParseAllowlistYAML([]byte("version: 1\nentrypoints:\n  server:\n    routes:\n      - {path: /health, methods: [TRACE], route_class: ops}\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown method") {
		t.Fatalf("err=%v", err)
	}

	_, err = ParseAllowlistYAML([]byte("version: 1\nentrypoints:\n  server:\n    routes:\n      - {path: /hooks, methods: [POST], route_class: webhook}\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown route_class") {
		t.Fatalf("err=%v", err)
	}
}

func TestParseAllowlistYAML_NormalizesMethods(t *testing.T) {
	t.Parallel()

	a, err := ParseAllowlistYAML([]byte("version: 1\nentrypoints:\n  server:\n    routes:\n      - {path: /nav/api/menus, methods: [get, ' post'], route_class: internal_api}\n"))
	if err != nil {
		t.Fatal(err)
	}
	got := a.Entrypoints["server"].Routes[0].Methods
	if len(got) != 2 || got[0] != "GET" || got[1] != "POST" {
		t.Fatalf("methods=%v", got)
	}
}

func TestLoadAllowlist_Repo(t *testing.T) {
	t.Parallel()

	if _, err := LoadAllowlist(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}

	a, err := LoadAllowlist(filepath.Join(repoRoot(t), "config", "routing", "allowlist.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]RouteClass{
		"/health":                              RouteClassOps,
		"/metrics":                             RouteClassOps,
		"/nav/api/menus/tree":                  RouteClassInternalAPI,
		"/nav/api/menus/9/status/hide":         RouteClassInternalAPI,
		"/nav/api/ui-state/accordion/3/toggle": RouteClassInternalAPI,
	}
	for path, want := range cases {
		if got := c.Classify(path); got != want {
			t.Fatalf("path=%s got=%q want=%q", path, got, want)
		}
	}
	for _, r := range a.Entrypoints["server"].Routes {
		if len(r.Methods) == 0 {
			t.Fatalf("route %s has no methods", r.Path)
		}
	}
}
