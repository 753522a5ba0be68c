package services

import (
	"context"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
)

// NavigationState bundles what one principal's navigation needs: the shared
// record store, that principal's expansion state and the query that scopes
// the tree. It is created per request scope and passed down explicitly.
type NavigationState struct {
	records   *MenuRecordStore
	expansion *ExpansionState
	query     types.MenuQuery
}

func NewNavigationState(records *MenuRecordStore, expansion *ExpansionState, q types.MenuQuery) *NavigationState {
	return &NavigationState{records: records, expansion: expansion, query: q}
}

func (s *NavigationState) Query() types.MenuQuery { return s.query }

func (s *NavigationState) Expansion() *ExpansionState { return s.expansion }

// Tree returns the last published tree without fetching.
func (s *NavigationState) Tree() []*types.MenuTreeNode {
	return s.records.Snapshot(s.query).Roots()
}

// Resolve builds the cascade for pathname. When a fetch fails but an older
// snapshot exists, the cascade is built from it and the *FetchError is
// returned alongside so callers can flag the result as stale.
func (s *NavigationState) Resolve(ctx context.Context, pathname string) (Cascade, *Snapshot, error) {
	snap, err := s.records.Current(ctx, s.query)
	if snap == nil {
		return ResolveCascade(nil, pathname), nil, err
	}
	return ResolveCascade(snap.Roots(), pathname), snap, err
}

// Reload forces a fetch, keeping the previous tree on failure.
func (s *NavigationState) Reload(ctx context.Context) (*Snapshot, error) {
	return s.records.Fetch(ctx, s.query)
}
