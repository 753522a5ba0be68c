package ports

import "context"

const (
	UIStateKeySidebarExpanded = "sidebar_expanded"
	UIStateKeyMenuAccordion   = "menu_accordion"
)

// UIStateStorage persists raw UI state values for a single principal.
type UIStateStorage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}
