package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/menutree"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"go.uber.org/zap"
)

type MoveMenuRequest struct {
	ID          string
	NewParentID *string
	NewOrder    int
}

type ReorderMenusRequest struct {
	ParentID *string
	IDs      []string
}

type MenuOrderService interface {
	Move(ctx context.Context, tenantID string, req MoveMenuRequest) error
	Reorder(ctx context.Context, tenantID string, req ReorderMenusRequest) ([]types.OrderAssignment, error)
}

type menuOrderService struct {
	store    ports.MenuStructureWriter
	records  *MenuRecordStore
	logger   *zap.Logger
	observer Observer
}

func NewMenuOrderService(store ports.MenuStructureWriter, records *MenuRecordStore, logger *zap.Logger, observer Observer) MenuOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &menuOrderService{store: store, records: records, logger: logger, observer: observer}
}

// Move validates against a fresh tree before anything reaches the store.
func (s *menuOrderService) Move(ctx context.Context, tenantID string, req MoveMenuRequest) error {
	snap, err := s.records.Fetch(ctx, types.MenuQuery{TenantID: tenantID})
	if err != nil {
		return err
	}
	if err := ValidateMove(snap.Index, req); err != nil {
		s.observer.MutationRejected(tenantID, MutationMove, rejectReason(err))
		return err
	}

	parent := normalizeParent(req.NewParentID)
	if err := s.store.Move(ctx, tenantID, req.ID, parent, req.NewOrder); err != nil {
		return err
	}
	s.observer.MutationApplied(tenantID, MutationMove)
	s.refresh(ctx, tenantID, MutationMove)
	return nil
}

func (s *menuOrderService) Reorder(ctx context.Context, tenantID string, req ReorderMenusRequest) ([]types.OrderAssignment, error) {
	snap, err := s.records.Fetch(ctx, types.MenuQuery{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	plan, err := PlanReorder(snap.Index, req)
	if err != nil {
		s.observer.MutationRejected(tenantID, MutationReorder, rejectReason(err))
		return nil, err
	}
	if err := s.store.Reorder(ctx, tenantID, normalizeParent(req.ParentID), plan); err != nil {
		return nil, err
	}
	s.observer.MutationApplied(tenantID, MutationReorder)
	s.refresh(ctx, tenantID, MutationReorder)
	return plan, nil
}

// refresh failures do not undo a confirmed mutation; the next read retries.
func (s *menuOrderService) refresh(ctx context.Context, tenantID string, kind string) {
	if err := s.records.Refresh(ctx, tenantID); err != nil {
		s.logger.Warn("menu refresh after mutation failed", zap.String("tenant_id", tenantID), zap.String("mutation", kind), zap.Error(err))
	}
}

// ValidateMove rejects unknown nodes, unknown parents and moves under the
// node itself or any of its descendants.
func ValidateMove(idx *menutree.Index, req MoveMenuRequest) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return types.ErrMenuIDRequired
	}
	if _, ok := idx.Node(id); !ok {
		return types.ErrMenuNotFound
	}
	parent := normalizeParent(req.NewParentID)
	if parent == nil {
		return nil
	}
	if *parent == id {
		return &types.CyclicMoveError{NodeID: id, NewParentID: *parent}
	}
	if _, ok := idx.Node(*parent); !ok {
		return &types.InvalidParentError{NodeID: id, ParentID: *parent}
	}
	if idx.IsDescendant(id, *parent) {
		return &types.CyclicMoveError{NodeID: id, NewParentID: *parent}
	}
	return nil
}

// PlanReorder assigns 1..n in the requested order. ids must be exactly the
// parent's current children.
func PlanReorder(idx *menutree.Index, req ReorderMenusRequest) ([]types.OrderAssignment, error) {
	parent := normalizeParent(req.ParentID)
	parentKey := ""
	if parent != nil {
		parentKey = *parent
		if _, ok := idx.Node(parentKey); !ok {
			return nil, &types.InvalidParentError{ParentID: parentKey}
		}
	}

	current := make(map[string]struct{})
	for _, c := range idx.Children(parentKey) {
		current[c.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(req.IDs))
	plan := make([]types.OrderAssignment, 0, len(req.IDs))
	for i, raw := range req.IDs {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			return nil, types.ErrReorderDuplicate
		}
		seen[id] = struct{}{}
		if _, ok := current[id]; !ok {
			return nil, types.ErrReorderForeignSibling
		}
		plan = append(plan, types.OrderAssignment{ID: id, Order: i + 1})
	}
	if len(plan) != len(current) {
		return nil, types.ErrReorderIncomplete
	}
	return plan, nil
}

func normalizeParent(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func rejectReason(err error) string {
	switch {
	case types.IsCyclicMove(err):
		return "cycle"
	case types.IsInvalidParent(err):
		return "invalid_parent"
	case errors.Is(err, types.ErrMenuNotFound):
		return "not_found"
	case errors.Is(err, types.ErrReorderDuplicate), errors.Is(err, types.ErrReorderForeignSibling), errors.Is(err, types.ErrReorderIncomplete):
		return "sibling_set"
	default:
		return "invalid"
	}
}
