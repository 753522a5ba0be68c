package localstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
)

// FileStorage keeps one JSON document per principal under dir. Each key of
// the document holds the raw value passed to Set.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

var (
	writeFile = os.WriteFile
	rename    = os.Rename
)

func NewFileStorage(dir string, tenantID string, principalID string) (ports.UIStateStorage, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("localstate: missing dir")
	}
	name, err := fileName(tenantID, principalID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localstate: %w", err)
	}
	return &FileStorage{path: filepath.Join(dir, name)}, nil
}

func fileName(tenantID string, principalID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	principalID = strings.TrimSpace(principalID)
	if tenantID == "" || principalID == "" {
		return "", errors.New("localstate: missing tenant or principal")
	}
	for _, part := range []string{tenantID, principalID} {
		if strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return "", fmt.Errorf("localstate: invalid name %q", part)
		}
	}
	return tenantID + "__" + principalID + ".json", nil
}

func (s *FileStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (s *FileStorage) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		// An unreadable document is overwritten.
		doc = map[string]json.RawMessage{}
	}
	if !json.Valid(value) {
		return fmt.Errorf("localstate: value for %q is not json", key)
	}
	doc[key] = json.RawMessage(value)

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := writeFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("localstate: %w", err)
	}
	if err := rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("localstate: %w", err)
	}
	return nil
}

func (s *FileStorage) read() (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localstate: %w", err)
	}
	doc := map[string]json.RawMessage{}
	if len(strings.TrimSpace(string(b))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("localstate: %w", err)
	}
	return doc, nil
}
