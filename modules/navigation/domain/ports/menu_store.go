package ports

import (
	"context"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
)

type MenuReader interface {
	List(ctx context.Context, q types.MenuQuery, cursor string, limit int) (types.MenuPage, error)
	FetchTree(ctx context.Context, tenantID string) ([]*types.MenuTreeNode, error)
	GetBySlug(ctx context.Context, tenantID string, slug string) (types.MenuRecord, error)
	ListChildren(ctx context.Context, tenantID string, parentID string) ([]types.MenuRecord, error)
	ListForUser(ctx context.Context, tenantID string, userID string) ([]types.MenuRecord, error)
}

// MenuStructureWriter receives structural mutations that were already
// validated against the current tree.
type MenuStructureWriter interface {
	Move(ctx context.Context, tenantID string, id string, parentID *string, order int) error
	Reorder(ctx context.Context, tenantID string, parentID *string, assignments []types.OrderAssignment) error
	SetStatus(ctx context.Context, tenantID string, id string, patch types.StatusPatch) error
}

type MenuRecordWriter interface {
	Create(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error)
	Update(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error)
	Delete(ctx context.Context, tenantID string, id string) error
}

type MenuStore interface {
	MenuReader
	MenuStructureWriter
	MenuRecordWriter
}
