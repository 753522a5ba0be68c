package localstate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/modules/navigation/services"
)

func TestNewFileStorage_Validation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := []struct {
		dir, tenant, principal string
	}{
		{"", "t1", "p1"},
		{dir, "", "p1"},
		{dir, "t1", " "},
		{dir, "t1", "../p1"},
		{dir, "..", "p1"},
		{dir, `t\1`, "p1"},
	}
	for _, tc := range cases {
		if _, err := NewFileStorage(tc.dir, tc.tenant, tc.principal); err == nil {
			t.Fatalf("expected error for %+v", tc)
		}
	}

	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStorage(filepath.Join(blocker, "sub"), "t1", "p1"); err == nil {
		t.Fatal("expected mkdir error")
	}
}

func TestFileStorage_GetSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")
	s, err := NewFileStorage(dir, "t1", "p1")
	if err != nil {
		t.Fatal(err)
	}

	if v, ok, err := s.Get(ctx, ports.UIStateKeySidebarExpanded); err != nil || ok || v != nil {
		t.Fatalf("v=%s ok=%v err=%v", v, ok, err)
	}

	if err := s.Set(ctx, ports.UIStateKeySidebarExpanded, []byte("false")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, ports.UIStateKeyMenuAccordion, []byte(`{"2":true}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "other", []byte("{")); err == nil {
		t.Fatal("expected invalid json error")
	}

	reopened, err := NewFileStorage(dir, "t1", "p1")
	if err != nil {
		t.Fatal(err)
	}
	v, ok, err := reopened.Get(ctx, ports.UIStateKeyMenuAccordion)
	if err != nil || !ok || string(v) != `{"2":true}` {
		t.Fatalf("v=%s ok=%v err=%v", v, ok, err)
	}
	v, ok, err = reopened.Get(ctx, ports.UIStateKeySidebarExpanded)
	if err != nil || !ok || string(v) != "false" {
		t.Fatalf("v=%s ok=%v err=%v", v, ok, err)
	}

	other, err := NewFileStorage(dir, "t1", "p2")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := other.Get(ctx, ports.UIStateKeyMenuAccordion); ok {
		t.Fatal("principals must not share state")
	}
	if _, err := os.Stat(filepath.Join(dir, "t1__p1.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}

func TestFileStorage_CorruptDocument(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "t1__p1.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStorage(dir, "t1", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Get(ctx, ports.UIStateKeyMenuAccordion); err == nil {
		t.Fatal("expected read error")
	}

	// Loading degrades to defaults instead of failing.
	st := services.LoadExpansionState(ctx, s, nil)
	if !st.SidebarExpanded() || len(st.Accordion()) != 0 {
		t.Fatalf("snapshot=%+v", st.Snapshot())
	}

	if err := s.Set(ctx, ports.UIStateKeySidebarExpanded, []byte("true")); err != nil {
		t.Fatal(err)
	}
	if v, ok, err := s.Get(ctx, ports.UIStateKeySidebarExpanded); err != nil || !ok || string(v) != "true" {
		t.Fatalf("v=%s ok=%v err=%v", v, ok, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "t1__p1.json"), []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Get(ctx, ports.UIStateKeySidebarExpanded); err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestFileStorage_WriteErrors(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStorage(t.TempDir(), "t1", "p1")
	if err != nil {
		t.Fatal(err)
	}

	origWrite, origRename := writeFile, rename
	t.Cleanup(func() { writeFile, rename = origWrite, origRename })

	writeFile = func(string, []byte, os.FileMode) error { return errors.New("disk full") }
	if err := s.Set(ctx, "k", []byte("1")); err == nil {
		t.Fatal("expected write error")
	}

	writeFile = origWrite
	rename = func(string, string) error { return errors.New("rename") }
	if err := s.Set(ctx, "k", []byte("1")); err == nil {
		t.Fatal("expected rename error")
	}
	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestFileStorage_ExpansionRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStorage(dir, "t1", "p1")
	if err != nil {
		t.Fatal(err)
	}
	st := services.LoadExpansionState(ctx, s, nil)
	if _, err := st.ToggleAccordion(ctx, "2"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.ToggleSidebar(ctx); err != nil {
		t.Fatal(err)
	}

	again := services.LoadExpansionState(ctx, s, nil)
	if again.SidebarExpanded() || !again.IsExpanded("2") {
		t.Fatalf("snapshot=%+v", again.Snapshot())
	}
}
