package services

import (
	"context"
	"strings"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"go.uber.org/zap"
)

type MenuStatusService interface {
	Apply(ctx context.Context, tenantID string, id string, action string) (types.StatusPatch, error)
}

type menuStatusService struct {
	store    ports.MenuStructureWriter
	records  *MenuRecordStore
	logger   *zap.Logger
	observer Observer
}

func NewMenuStatusService(store ports.MenuStructureWriter, records *MenuRecordStore, logger *zap.Logger, observer Observer) MenuStatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &menuStatusService{store: store, records: records, logger: logger, observer: observer}
}

// Apply validates the action name and forwards the resulting field value.
// It keeps no state of its own.
func (s *menuStatusService) Apply(ctx context.Context, tenantID string, id string, action string) (types.StatusPatch, error) {
	a, err := types.ParseStatusAction(action)
	if err != nil {
		s.observer.MutationRejected(tenantID, MutationStatus, "unknown_action")
		return types.StatusPatch{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return types.StatusPatch{}, types.ErrMenuIDRequired
	}
	patch, _ := a.Patch()
	if err := s.store.SetStatus(ctx, tenantID, id, patch); err != nil {
		return types.StatusPatch{}, err
	}
	s.observer.MutationApplied(tenantID, MutationStatus)
	if s.records != nil {
		if err := s.records.Refresh(ctx, tenantID); err != nil {
			s.logger.Warn("menu refresh after status change failed", zap.String("tenant_id", tenantID), zap.String("menu_id", id), zap.Error(err))
		}
	}
	return patch, nil
}

// Transition returns rec with action applied. Repeating an action is a no-op.
func Transition(rec types.MenuRecord, action types.StatusAction) (types.MenuRecord, error) {
	patch, ok := action.Patch()
	if !ok {
		return rec, types.ErrUnknownStatusAction
	}
	return ApplyPatch(rec, patch), nil
}

func ApplyPatch(rec types.MenuRecord, patch types.StatusPatch) types.MenuRecord {
	switch patch.Field {
	case types.StatusFieldDisabled:
		rec.Disabled = patch.Value
	case types.StatusFieldHidden:
		rec.Hidden = patch.Value
	}
	return rec
}
