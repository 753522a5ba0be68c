package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"github.com/jacksonlee411/navtree/pkg/httperr"
	"go.uber.org/zap"
)

var ErrMenuHasChildren = errors.New("menu_has_children")

var newMenuID = func() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MenuWriteService covers plain record edits. Structural changes go through
// MenuOrderService.
type MenuWriteService interface {
	Create(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error)
	Update(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error)
	Delete(ctx context.Context, tenantID string, id string) error
}

type menuWriteService struct {
	store    ports.MenuRecordWriter
	records  *MenuRecordStore
	logger   *zap.Logger
	observer Observer
}

func NewMenuWriteService(store ports.MenuRecordWriter, records *MenuRecordStore, logger *zap.Logger, observer Observer) MenuWriteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &menuWriteService{store: store, records: records, logger: logger, observer: observer}
}

func (s *menuWriteService) Create(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error) {
	rec, err := normalizeRecord(rec)
	if err != nil {
		return types.MenuRecord{}, err
	}
	if rec.ID == "" {
		id, err := newMenuID()
		if err != nil {
			return types.MenuRecord{}, err
		}
		rec.ID = id
	}
	if err := rec.Validate(); err != nil {
		return types.MenuRecord{}, err
	}

	snap, err := s.records.Fetch(ctx, types.MenuQuery{TenantID: tenantID})
	if err != nil {
		return types.MenuRecord{}, err
	}
	if _, exists := snap.Index.Node(rec.ID); exists {
		return types.MenuRecord{}, httperr.NewConflict("menu_id_exists")
	}
	if parent := rec.ParentKey(); parent != "" {
		if _, ok := snap.Index.Node(parent); !ok {
			s.observer.MutationRejected(tenantID, MutationCreate, "invalid_parent")
			return types.MenuRecord{}, &types.InvalidParentError{NodeID: rec.ID, ParentID: parent}
		}
	}

	rec.TenantID = tenantID
	out, err := s.store.Create(ctx, tenantID, rec)
	if err != nil {
		return types.MenuRecord{}, err
	}
	s.observer.MutationApplied(tenantID, MutationCreate)
	s.refresh(ctx, tenantID)
	return out, nil
}

// Update keeps the stored parent and order; use Move or Reorder for those.
func (s *menuWriteService) Update(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error) {
	rec, err := normalizeRecord(rec)
	if err != nil {
		return types.MenuRecord{}, err
	}
	if rec.ID == "" {
		return types.MenuRecord{}, types.ErrMenuIDRequired
	}

	snap, err := s.records.Fetch(ctx, types.MenuQuery{TenantID: tenantID})
	if err != nil {
		return types.MenuRecord{}, err
	}
	cur, ok := snap.Index.Node(rec.ID)
	if !ok {
		return types.MenuRecord{}, types.ErrMenuNotFound
	}
	rec.ParentID = cur.ParentID
	rec.Order = cur.Order
	rec.TenantID = tenantID
	rec.CreatedAt = cur.CreatedAt
	if err := rec.Validate(); err != nil {
		return types.MenuRecord{}, err
	}

	out, err := s.store.Update(ctx, tenantID, rec)
	if err != nil {
		return types.MenuRecord{}, err
	}
	s.observer.MutationApplied(tenantID, MutationUpdate)
	s.refresh(ctx, tenantID)
	return out, nil
}

func (s *menuWriteService) Delete(ctx context.Context, tenantID string, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.ErrMenuIDRequired
	}
	snap, err := s.records.Fetch(ctx, types.MenuQuery{TenantID: tenantID})
	if err != nil {
		return err
	}
	n, ok := snap.Index.Node(id)
	if !ok {
		return types.ErrMenuNotFound
	}
	if len(n.Children) > 0 {
		s.observer.MutationRejected(tenantID, MutationDelete, "has_children")
		return ErrMenuHasChildren
	}
	if err := s.store.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.observer.MutationApplied(tenantID, MutationDelete)
	s.refresh(ctx, tenantID)
	return nil
}

func (s *menuWriteService) refresh(ctx context.Context, tenantID string) {
	if err := s.records.Refresh(ctx, tenantID); err != nil {
		s.logger.Warn("menu refresh after write failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func normalizeRecord(rec types.MenuRecord) (types.MenuRecord, error) {
	rec.ID = strings.TrimSpace(rec.ID)
	rec.ParentID = normalizeParent(rec.ParentID)
	rec.Name = strings.TrimSpace(rec.Name)
	rec.Slug = strings.TrimSpace(rec.Slug)
	rec.Path = strings.TrimSpace(rec.Path)
	if rec.Name == "" {
		return rec, httperr.NewBadRequest("name is required")
	}
	t, err := types.ParseMenuType(string(rec.Type))
	if err != nil {
		return rec, err
	}
	rec.Type = t
	target, err := types.ParseTarget(string(rec.Target))
	if err != nil {
		return rec, err
	}
	rec.Target = target
	return rec, nil
}
