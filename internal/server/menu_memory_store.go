package server

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/menutree"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"github.com/jacksonlee411/navtree/pkg/httperr"
)

// MenuMemoryStore keeps menus per tenant in process memory. It applies the
// same structural checks as the postgres store.
type MenuMemoryStore struct {
	mu     sync.RWMutex
	menus  map[string]map[string]types.MenuRecord
	grants map[string]map[string]map[string]struct{}
	now    func() time.Time
}

func NewMenuMemoryStore() *MenuMemoryStore {
	return &MenuMemoryStore{
		menus:  make(map[string]map[string]types.MenuRecord),
		grants: make(map[string]map[string]map[string]struct{}),
		now:    time.Now,
	}
}

// Seed replaces the tenant's menus.
func (s *MenuMemoryStore) Seed(tenantID string, records []types.MenuRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[string]types.MenuRecord, len(records))
	for _, rec := range records {
		rec.TenantID = tenantID
		m[rec.ID] = rec
	}
	s.menus[tenantID] = m
}

// Grant gives userID the permission string perm.
func (s *MenuMemoryStore) Grant(tenantID string, userID string, perm string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.grants[tenantID]
	if users == nil {
		users = make(map[string]map[string]struct{})
		s.grants[tenantID] = users
	}
	if users[userID] == nil {
		users[userID] = make(map[string]struct{})
	}
	users[userID][perm] = struct{}{}
}

func (s *MenuMemoryStore) sorted(tenantID string, keep func(types.MenuRecord) bool) []types.MenuRecord {
	out := make([]types.MenuRecord, 0, len(s.menus[tenantID]))
	for _, rec := range s.menus[tenantID] {
		if keep == nil || keep(rec) {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, menutree.Compare)
	return out
}

// List pages through the tenant's menus; the cursor is the offset of the next
// page.
func (s *MenuMemoryStore) List(_ context.Context, q types.MenuQuery, cursor string, limit int) (types.MenuPage, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return types.MenuPage{}, httperr.NewBadRequest("invalid cursor")
		}
		offset = n
	}
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	all := s.sorted(q.TenantID, func(rec types.MenuRecord) bool {
		return q.Type == "" || rec.Type == q.Type
	})
	s.mu.RUnlock()

	if offset >= len(all) {
		return types.MenuPage{Records: []types.MenuRecord{}}, nil
	}
	end := min(offset+limit, len(all))
	page := types.MenuPage{Records: all[offset:end]}
	if end < len(all) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (s *MenuMemoryStore) FetchTree(_ context.Context, tenantID string) ([]*types.MenuTreeNode, error) {
	s.mu.RLock()
	all := s.sorted(tenantID, nil)
	s.mu.RUnlock()
	return menutree.Build(all).Roots, nil
}

func (s *MenuMemoryStore) GetBySlug(_ context.Context, tenantID string, slug string) (types.MenuRecord, error) {
	slug = strings.TrimSpace(slug)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.sorted(tenantID, nil) {
		if rec.Slug == slug {
			return rec, nil
		}
	}
	return types.MenuRecord{}, types.ErrMenuNotFound
}

func (s *MenuMemoryStore) ListChildren(_ context.Context, tenantID string, parentID string) ([]types.MenuRecord, error) {
	parentID = strings.TrimSpace(parentID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(tenantID, func(rec types.MenuRecord) bool {
		return rec.ParentKey() == parentID
	}), nil
}

// ListForUser returns menus without a perms requirement plus those whose perms
// the user holds.
func (s *MenuMemoryStore) ListForUser(_ context.Context, tenantID string, userID string) ([]types.MenuRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.grants[tenantID][userID]
	return s.sorted(tenantID, func(rec types.MenuRecord) bool {
		if rec.Perms == "" {
			return true
		}
		_, ok := held[rec.Perms]
		return ok
	}), nil
}

func (s *MenuMemoryStore) Move(_ context.Context, tenantID string, id string, parentID *string, order int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	menus := s.menus[tenantID]
	rec, ok := menus[id]
	if !ok {
		return types.ErrMenuNotFound
	}
	if parentID != nil {
		if _, ok := menus[*parentID]; !ok {
			return &types.InvalidParentError{NodeID: id, ParentID: *parentID}
		}
		seen := map[string]struct{}{}
		for cur := *parentID; cur != ""; cur = menus[cur].ParentKey() {
			if cur == id {
				return &types.CyclicMoveError{NodeID: id, NewParentID: *parentID}
			}
			if _, loop := seen[cur]; loop {
				break
			}
			seen[cur] = struct{}{}
		}
		rec.ParentID = types.StringPtr(*parentID)
	} else {
		rec.ParentID = nil
	}
	rec.Order = order
	rec.UpdatedAt = s.now()
	menus[id] = rec
	return nil
}

// Reorder applies all assignments or none.
func (s *MenuMemoryStore) Reorder(_ context.Context, tenantID string, parentID *string, assignments []types.OrderAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := ""
	if parentID != nil {
		parent = *parentID
	}
	menus := s.menus[tenantID]
	for _, a := range assignments {
		rec, ok := menus[a.ID]
		if !ok || rec.ParentKey() != parent {
			return types.ErrReorderForeignSibling
		}
	}
	now := s.now()
	for _, a := range assignments {
		rec := menus[a.ID]
		rec.Order = a.Order
		rec.UpdatedAt = now
		menus[a.ID] = rec
	}
	return nil
}

func (s *MenuMemoryStore) SetStatus(_ context.Context, tenantID string, id string, patch types.StatusPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.menus[tenantID][id]
	if !ok {
		return types.ErrMenuNotFound
	}
	switch patch.Field {
	case types.StatusFieldDisabled:
		rec.Disabled = patch.Value
	case types.StatusFieldHidden:
		rec.Hidden = patch.Value
	default:
		return types.ErrUnknownStatusAction
	}
	rec.UpdatedAt = s.now()
	s.menus[tenantID][id] = rec
	return nil
}

func (s *MenuMemoryStore) Create(_ context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	menus := s.menus[tenantID]
	if menus == nil {
		menus = make(map[string]types.MenuRecord)
		s.menus[tenantID] = menus
	}
	if _, exists := menus[rec.ID]; exists {
		return types.MenuRecord{}, httperr.NewConflict("menu_id_exists")
	}
	now := s.now()
	rec.TenantID = tenantID
	rec.CreatedAt = now
	rec.UpdatedAt = now
	menus[rec.ID] = rec
	return rec, nil
}

// Update keeps the stored parent and order.
func (s *MenuMemoryStore) Update(_ context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.menus[tenantID][rec.ID]
	if !ok {
		return types.MenuRecord{}, types.ErrMenuNotFound
	}
	rec.TenantID = tenantID
	rec.ParentID = cur.ParentID
	rec.Order = cur.Order
	rec.CreatedAt = cur.CreatedAt
	rec.UpdatedAt = s.now()
	s.menus[tenantID][rec.ID] = rec
	return rec, nil
}

func (s *MenuMemoryStore) Delete(_ context.Context, tenantID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.menus[tenantID][id]; !ok {
		return types.ErrMenuNotFound
	}
	delete(s.menus[tenantID], id)
	return nil
}
