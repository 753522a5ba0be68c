package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMenuNotFound          = errors.New("menu_not_found")
	ErrMenuIDRequired        = errors.New("menu_id_required")
	ErrUnknownMenuType       = errors.New("unknown_menu_type")
	ErrUnknownTarget         = errors.New("unknown_menu_target")
	ErrUnknownStatusAction   = errors.New("unknown_status_action")
	ErrReorderIncomplete     = errors.New("reorder_incomplete")
	ErrReorderDuplicate      = errors.New("reorder_duplicate_id")
	ErrReorderForeignSibling = errors.New("reorder_foreign_sibling")
	ErrCursorStalled         = errors.New("menu_cursor_stalled")
)

// FetchError wraps a transport failure while loading records. The previous
// snapshot for the same query stays readable.
type FetchError struct {
	QueryKey string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("menu fetch %q: %v", e.QueryKey, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type CyclicMoveError struct {
	NodeID      string
	NewParentID string
}

func (e *CyclicMoveError) Error() string {
	return fmt.Sprintf("menu move: %s cannot be placed under %s (cycle)", e.NodeID, e.NewParentID)
}

type InvalidParentError struct {
	NodeID   string
	ParentID string
}

func (e *InvalidParentError) Error() string {
	return fmt.Sprintf("menu move: parent %s of %s does not exist", e.ParentID, e.NodeID)
}

// OrphanRecordAnomaly is reported, not returned: the record is promoted to root.
type OrphanRecordAnomaly struct {
	NodeID   string `json:"node_id"`
	ParentID string `json:"parent_id"`
}

func (a OrphanRecordAnomaly) String() string {
	return fmt.Sprintf("orphan %s (parent %s missing)", a.NodeID, a.ParentID)
}

// CycleAnomaly lists the loop members in parent order; PromotedID became a root.
type CycleAnomaly struct {
	NodeIDs    []string `json:"node_ids"`
	PromotedID string   `json:"promoted_id"`
}

func (a CycleAnomaly) String() string {
	return fmt.Sprintf("cycle %s (promoted %s)", strings.Join(a.NodeIDs, "->"), a.PromotedID)
}

type DuplicateRecordAnomaly struct {
	NodeID string `json:"node_id"`
}

func IsCyclicMove(err error) bool {
	_, ok := errors.AsType[*CyclicMoveError](err)
	return ok
}

func IsInvalidParent(err error) bool {
	_, ok := errors.AsType[*InvalidParentError](err)
	return ok
}

func IsFetchError(err error) bool {
	_, ok := errors.AsType[*FetchError](err)
	return ok
}
