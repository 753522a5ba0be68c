package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
)

type menuStoreStub struct {
	listFn         func(ctx context.Context, q types.MenuQuery, cursor string, limit int) (types.MenuPage, error)
	fetchTreeFn    func(ctx context.Context, tenantID string) ([]*types.MenuTreeNode, error)
	getBySlugFn    func(ctx context.Context, tenantID string, slug string) (types.MenuRecord, error)
	listChildrenFn func(ctx context.Context, tenantID string, parentID string) ([]types.MenuRecord, error)
	listForUserFn  func(ctx context.Context, tenantID string, userID string) ([]types.MenuRecord, error)
	moveFn         func(ctx context.Context, tenantID string, id string, parentID *string, order int) error
	reorderFn      func(ctx context.Context, tenantID string, parentID *string, assignments []types.OrderAssignment) error
	setStatusFn    func(ctx context.Context, tenantID string, id string, patch types.StatusPatch) error
	createFn       func(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error)
	updateFn       func(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error)
	deleteFn       func(ctx context.Context, tenantID string, id string) error
}

func (s menuStoreStub) List(ctx context.Context, q types.MenuQuery, cursor string, limit int) (types.MenuPage, error) {
	if s.listFn == nil {
		return types.MenuPage{}, errors.New("List not mocked")
	}
	return s.listFn(ctx, q, cursor, limit)
}

func (s menuStoreStub) FetchTree(ctx context.Context, tenantID string) ([]*types.MenuTreeNode, error) {
	if s.fetchTreeFn == nil {
		return nil, errors.New("FetchTree not mocked")
	}
	return s.fetchTreeFn(ctx, tenantID)
}

func (s menuStoreStub) GetBySlug(ctx context.Context, tenantID string, slug string) (types.MenuRecord, error) {
	if s.getBySlugFn == nil {
		return types.MenuRecord{}, errors.New("GetBySlug not mocked")
	}
	return s.getBySlugFn(ctx, tenantID, slug)
}

func (s menuStoreStub) ListChildren(ctx context.Context, tenantID string, parentID string) ([]types.MenuRecord, error) {
	if s.listChildrenFn == nil {
		return nil, errors.New("ListChildren not mocked")
	}
	return s.listChildrenFn(ctx, tenantID, parentID)
}

func (s menuStoreStub) ListForUser(ctx context.Context, tenantID string, userID string) ([]types.MenuRecord, error) {
	if s.listForUserFn == nil {
		return nil, errors.New("ListForUser not mocked")
	}
	return s.listForUserFn(ctx, tenantID, userID)
}

func (s menuStoreStub) Move(ctx context.Context, tenantID string, id string, parentID *string, order int) error {
	if s.moveFn == nil {
		return errors.New("Move not mocked")
	}
	return s.moveFn(ctx, tenantID, id, parentID, order)
}

func (s menuStoreStub) Reorder(ctx context.Context, tenantID string, parentID *string, assignments []types.OrderAssignment) error {
	if s.reorderFn == nil {
		return errors.New("Reorder not mocked")
	}
	return s.reorderFn(ctx, tenantID, parentID, assignments)
}

func (s menuStoreStub) SetStatus(ctx context.Context, tenantID string, id string, patch types.StatusPatch) error {
	if s.setStatusFn == nil {
		return errors.New("SetStatus not mocked")
	}
	return s.setStatusFn(ctx, tenantID, id, patch)
}

func (s menuStoreStub) Create(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error) {
	if s.createFn == nil {
		return types.MenuRecord{}, errors.New("Create not mocked")
	}
	return s.createFn(ctx, tenantID, rec)
}

func (s menuStoreStub) Update(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error) {
	if s.updateFn == nil {
		return types.MenuRecord{}, errors.New("Update not mocked")
	}
	return s.updateFn(ctx, tenantID, rec)
}

func (s menuStoreStub) Delete(ctx context.Context, tenantID string, id string) error {
	if s.deleteFn == nil {
		return errors.New("Delete not mocked")
	}
	return s.deleteFn(ctx, tenantID, id)
}

// listOf serves records as a single page.
func listOf(records ...types.MenuRecord) func(context.Context, types.MenuQuery, string, int) (types.MenuPage, error) {
	return func(context.Context, types.MenuQuery, string, int) (types.MenuPage, error) {
		return types.MenuPage{Records: append([]types.MenuRecord(nil), records...)}, nil
	}
}

func menu(id string, parent string, typ types.MenuType, path string, order int) types.MenuRecord {
	r := types.MenuRecord{ID: id, Name: id, Type: typ, Path: path, Order: order, Target: types.TargetSelf}
	if parent != "" {
		r.ParentID = types.StringPtr(parent)
	}
	return r
}

type recordingObserver struct {
	mu        sync.Mutex
	applied   []string
	rejected  []string
	failed    int
	discarded int
	completed int
}

func (o *recordingObserver) FetchCompleted(string, int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed++
}

func (o *recordingObserver) FetchFailed(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}

func (o *recordingObserver) FetchDiscarded(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discarded++
}

func (o *recordingObserver) MutationApplied(_ string, kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.applied = append(o.applied, kind)
}

func (o *recordingObserver) MutationRejected(_ string, kind string, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, kind+":"+reason)
}

func withNewMenuID(t *testing.T, fn func() (string, error)) {
	t.Helper()
	orig := newMenuID
	newMenuID = fn
	t.Cleanup(func() { newMenuID = orig })
}

func withMarshalJSON(t *testing.T, fn func(any) ([]byte, error)) {
	t.Helper()
	orig := marshalJSON
	marshalJSON = fn
	t.Cleanup(func() { marshalJSON = orig })
}

type memoryUIStorage struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newMemoryUIStorage() *memoryUIStorage {
	return &memoryUIStorage{values: make(map[string][]byte)}
}

func (m *memoryUIStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryUIStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.values[key] = append([]byte(nil), value...)
	return nil
}
