// Package fixture reads and writes menu fixtures: YAML documents listing the
// menus of one tenant.
//
//	version: 1
//	tenant_id: 00000000-0000-0000-0000-000000000001
//	menus:
//	  - id: 1
//	    name: Content
//	    type: header
//	    path: /content
package fixture

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/menutree"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"gopkg.in/yaml.v3"
)

type File struct {
	Version  int                `yaml:"version"`
	TenantID string             `yaml:"tenant_id,omitempty"`
	Menus    []types.MenuRecord `yaml:"menus"`
}

func Load(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("fixture: %w", err)
	}
	return Parse(b)
}

// Parse decodes a fixture and normalizes every menu: type and target are
// parsed, and an empty target becomes _self.
func Parse(b []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("fixture: %w", err)
	}
	if f.Version != 1 {
		return File{}, errors.New("fixture: unsupported version")
	}
	for i, m := range f.Menus {
		t, err := types.ParseMenuType(string(m.Type))
		if err != nil {
			return File{}, fmt.Errorf("fixture: menu %d (%q): %w", i, m.ID, err)
		}
		m.Type = t
		target, err := types.ParseTarget(string(m.Target))
		if err != nil {
			return File{}, fmt.Errorf("fixture: menu %d (%q): %w", i, m.ID, err)
		}
		m.Target = target
		if err := m.Validate(); err != nil {
			return File{}, fmt.Errorf("fixture: menu %d (%q): %w", i, m.ID, err)
		}
		f.Menus[i] = m
	}
	return f, nil
}

func Write(w io.Writer, f File) error {
	if f.Version == 0 {
		f.Version = 1
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}

// InsertOrder returns the menus parents first, so each insert finds its
// parent already stored. It fails when the menus do not form a clean tree.
func InsertOrder(menus []types.MenuRecord) ([]types.MenuRecord, error) {
	built := menutree.Build(menus)
	if built.HasAnomalies() {
		return nil, fmt.Errorf("fixture: %d orphans, %d cycles, %d duplicates",
			len(built.Orphans), len(built.Cycles), len(built.Duplicates))
	}
	return menutree.Flatten(built.Roots), nil
}
