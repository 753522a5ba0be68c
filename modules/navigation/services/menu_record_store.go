package services

import (
	"context"
	"sync"
	"time"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/menutree"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPageLimit = 100
	DefaultMaxPages  = 1000
)

var nowFn = time.Now

// Snapshot is immutable once published.
type Snapshot struct {
	Query     types.MenuQuery
	Records   []types.MenuRecord
	Tree      menutree.Result
	Index     *menutree.Index
	Seq       uint64
	FetchedAt time.Time
}

func (s *Snapshot) Roots() []*types.MenuTreeNode {
	if s == nil {
		return nil
	}
	return s.Tree.Roots
}

// MenuRecordStore keeps the last good flat collection per query and the tree
// built from it. Fetches for the same query are numbered; a fetch that
// finishes after a newer one has already been published is discarded.
type MenuRecordStore struct {
	reader    ports.MenuReader
	logger    *zap.Logger
	observer  Observer
	pageLimit int
	maxPages  int
	flight    singleflight.Group

	mu        sync.RWMutex
	issued    map[string]uint64
	snapshots map[string]*Snapshot
}

type RecordStoreOption func(*MenuRecordStore)

func WithPageLimit(n int) RecordStoreOption {
	return func(s *MenuRecordStore) {
		if n > 0 {
			s.pageLimit = n
		}
	}
}

func WithMaxPages(n int) RecordStoreOption {
	return func(s *MenuRecordStore) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

func WithRecordStoreLogger(l *zap.Logger) RecordStoreOption {
	return func(s *MenuRecordStore) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRecordStoreObserver(o Observer) RecordStoreOption {
	return func(s *MenuRecordStore) {
		if o != nil {
			s.observer = o
		}
	}
}

func NewMenuRecordStore(reader ports.MenuReader, opts ...RecordStoreOption) *MenuRecordStore {
	s := &MenuRecordStore{
		reader:    reader,
		logger:    zap.NewNop(),
		observer:  nopObserver{},
		pageLimit: DefaultPageLimit,
		maxPages:  DefaultMaxPages,
		issued:    make(map[string]uint64),
		snapshots: make(map[string]*Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch loads every page for q and publishes a new snapshot. On transport
// failure it returns the previous snapshot (possibly nil) with a *FetchError.
func (s *MenuRecordStore) Fetch(ctx context.Context, q types.MenuQuery) (*Snapshot, error) {
	key := q.Key()

	s.mu.Lock()
	s.issued[key]++
	seq := s.issued[key]
	s.mu.Unlock()

	records, err := s.fetchAll(ctx, q)
	if err != nil {
		s.observer.FetchFailed(q.TenantID)
		s.logger.Warn("menu fetch failed", zap.String("query", key), zap.Uint64("seq", seq), zap.Error(err))
		return s.Snapshot(q), &types.FetchError{QueryKey: key, Err: err}
	}

	built := menutree.Build(records)
	built.Log(s.logger.With(zap.String("tenant_id", q.TenantID)))
	snap := &Snapshot{
		Query:     q,
		Records:   records,
		Tree:      built,
		Index:     menutree.NewIndex(built.Roots),
		Seq:       seq,
		FetchedAt: nowFn(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.snapshots[key]; cur != nil && cur.Seq > seq {
		s.observer.FetchDiscarded(q.TenantID)
		s.logger.Debug("menu fetch superseded", zap.String("query", key), zap.Uint64("seq", seq), zap.Uint64("current_seq", cur.Seq))
		return cur, nil
	}
	s.snapshots[key] = snap
	anomalies := len(built.Orphans) + len(built.Cycles) + len(built.Duplicates)
	s.observer.FetchCompleted(q.TenantID, len(records), anomalies)
	return snap, nil
}

// Current returns the published snapshot for q, fetching once when none exists.
// Concurrent first reads share a single fetch.
func (s *MenuRecordStore) Current(ctx context.Context, q types.MenuQuery) (*Snapshot, error) {
	if snap := s.Snapshot(q); snap != nil {
		return snap, nil
	}
	v, err, _ := s.flight.Do(q.Key(), func() (any, error) {
		return s.Fetch(ctx, q)
	})
	snap, _ := v.(*Snapshot)
	return snap, err
}

func (s *MenuRecordStore) Snapshot(q types.MenuQuery) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[q.Key()]
}

// Refresh refetches every query published for tenantID, and the unfiltered
// tenant query, after a confirmed mutation.
func (s *MenuRecordStore) Refresh(ctx context.Context, tenantID string) error {
	queries := []types.MenuQuery{{TenantID: tenantID}}
	s.mu.RLock()
	for _, snap := range s.snapshots {
		if snap.Query.TenantID == tenantID && snap.Query != queries[0] {
			queries = append(queries, snap.Query)
		}
	}
	s.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			_, err := s.Fetch(gctx, q)
			return err
		})
	}
	return g.Wait()
}

func (s *MenuRecordStore) fetchAll(ctx context.Context, q types.MenuQuery) ([]types.MenuRecord, error) {
	if q.UserID != "" {
		return s.reader.ListForUser(ctx, q.TenantID, q.UserID)
	}

	var out []types.MenuRecord
	cursor := ""
	for range s.maxPages {
		page, err := s.reader.List(ctx, q, cursor, s.pageLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.NextCursor == "" {
			return out, nil
		}
		if page.NextCursor == cursor {
			return nil, types.ErrCursorStalled
		}
		cursor = page.NextCursor
	}
	return nil, types.ErrCursorStalled
}
