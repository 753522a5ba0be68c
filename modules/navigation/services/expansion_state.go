package services

import (
	"context"
	"encoding/json"
	"maps"
	"strings"
	"sync"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/pkg/httperr"
	"go.uber.org/zap"
)

var marshalJSON = json.Marshal

type ExpansionSnapshot struct {
	SidebarExpanded bool            `json:"sidebar_expanded"`
	Accordion       map[string]bool `json:"menu_accordion"`
}

// ExpansionState tracks the sidebar panel flag and per-branch accordion flags
// for one principal. Every change is written through to storage before it is
// visible. Ids of deleted menus are kept until overwritten.
type ExpansionState struct {
	storage ports.UIStateStorage
	logger  *zap.Logger

	mu              sync.Mutex
	sidebarExpanded bool
	accordion       map[string]bool
}

// LoadExpansionState reads both keys. Missing, unreadable or malformed values
// fall back to an expanded sidebar and an empty accordion.
func LoadExpansionState(ctx context.Context, storage ports.UIStateStorage, logger *zap.Logger) *ExpansionState {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExpansionState{
		storage:         storage,
		logger:          logger,
		sidebarExpanded: true,
		accordion:       make(map[string]bool),
	}

	if raw, ok, err := storage.Get(ctx, ports.UIStateKeySidebarExpanded); err != nil {
		logger.Warn("ui state read failed", zap.String("key", ports.UIStateKeySidebarExpanded), zap.Error(err))
	} else if ok {
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			logger.Warn("ui state malformed", zap.String("key", ports.UIStateKeySidebarExpanded), zap.Error(err))
		} else {
			s.sidebarExpanded = v
		}
	}

	if raw, ok, err := storage.Get(ctx, ports.UIStateKeyMenuAccordion); err != nil {
		logger.Warn("ui state read failed", zap.String("key", ports.UIStateKeyMenuAccordion), zap.Error(err))
	} else if ok {
		var m map[string]bool
		if err := json.Unmarshal(raw, &m); err != nil {
			logger.Warn("ui state malformed", zap.String("key", ports.UIStateKeyMenuAccordion), zap.Error(err))
		} else if m != nil {
			s.accordion = m
		}
	}
	return s
}

func (s *ExpansionState) Snapshot() ExpansionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ExpansionSnapshot{SidebarExpanded: s.sidebarExpanded, Accordion: maps.Clone(s.accordion)}
}

func (s *ExpansionState) SidebarExpanded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sidebarExpanded
}

func (s *ExpansionState) IsExpanded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accordion[id]
}

func (s *ExpansionState) Accordion() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.accordion)
}

func (s *ExpansionState) SetSidebarExpanded(ctx context.Context, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeSidebar(ctx, expanded); err != nil {
		return err
	}
	s.sidebarExpanded = expanded
	return nil
}

func (s *ExpansionState) ToggleSidebar(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := !s.sidebarExpanded
	if err := s.writeSidebar(ctx, next); err != nil {
		return s.sidebarExpanded, err
	}
	s.sidebarExpanded = next
	return next, nil
}

func (s *ExpansionState) ToggleAccordion(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, httperr.NewBadRequest("menu id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := maps.Clone(s.accordion)
	next[id] = !s.accordion[id]
	if err := s.writeAccordion(ctx, next); err != nil {
		return s.accordion[id], err
	}
	s.accordion = next
	return next[id], nil
}

func (s *ExpansionState) SetAccordion(ctx context.Context, id string, expanded bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return httperr.NewBadRequest("menu id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := maps.Clone(s.accordion)
	next[id] = expanded
	if err := s.writeAccordion(ctx, next); err != nil {
		return err
	}
	s.accordion = next
	return nil
}

// ReplaceAccordion overwrites the whole map, as a client restoring its state does.
func (s *ExpansionState) ReplaceAccordion(ctx context.Context, m map[string]bool) error {
	next := make(map[string]bool, len(m))
	for k, v := range m {
		if k = strings.TrimSpace(k); k != "" {
			next[k] = v
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeAccordion(ctx, next); err != nil {
		return err
	}
	s.accordion = next
	return nil
}

// CollapseAll sets every tracked id to false; ids stay tracked.
func (s *ExpansionState) CollapseAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]bool, len(s.accordion))
	for id := range s.accordion {
		next[id] = false
	}
	if err := s.writeAccordion(ctx, next); err != nil {
		return err
	}
	s.accordion = next
	return nil
}

func (s *ExpansionState) writeSidebar(ctx context.Context, v bool) error {
	b, err := marshalJSON(v)
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, ports.UIStateKeySidebarExpanded, b)
}

func (s *ExpansionState) writeAccordion(ctx context.Context, m map[string]bool) error {
	b, err := marshalJSON(m)
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, ports.UIStateKeyMenuAccordion, b)
}
