package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
)

func TestNavigationState_Resolve(t *testing.T) {
	t.Parallel()

	fail := false
	store := menuStoreStub{
		listFn: func(ctx context.Context, q types.MenuQuery, cursor string, limit int) (types.MenuPage, error) {
			if fail {
				return types.MenuPage{}, errors.New("down")
			}
			return listOf(
				menu("1", "", types.MenuTypeHeader, "/content", 1),
				menu("2", "1", types.MenuTypeSidebar, "/content/templates", 1),
				menu("3", "2", types.MenuTypeSubmenu, "/content/templates/market", 1),
			)(ctx, q, cursor, limit)
		},
	}
	ctx := context.Background()
	records := NewMenuRecordStore(store)
	expansion := LoadExpansionState(ctx, newMemoryUIStorage(), nil)
	nav := NewNavigationState(records, expansion, types.MenuQuery{TenantID: "t1"})

	if nav.Tree() != nil {
		t.Fatalf("tree before first fetch")
	}
	c, snap, err := nav.Resolve(ctx, "/content/templates/market")
	if err != nil || snap == nil {
		t.Fatalf("snap=%v err=%v", snap, err)
	}
	if c.CurrentHeaderID() != "1" || c.ActiveID != "3" {
		t.Fatalf("cascade=%+v", c)
	}
	if len(nav.Tree()) != 1 || nav.Expansion() != expansion || nav.Query().TenantID != "t1" {
		t.Fatalf("state accessors")
	}

	fail = true
	if _, err := nav.Reload(ctx); !types.IsFetchError(err) {
		t.Fatalf("err=%v", err)
	}
	c, stale, err := nav.Resolve(ctx, "/content/templates")
	if err != nil || stale != snap {
		t.Fatalf("cached snapshot expected, err=%v", err)
	}
	if c.ActiveID != "2" {
		t.Fatalf("active=%q", c.ActiveID)
	}
}

func TestNavigationState_ResolveWithoutData(t *testing.T) {
	t.Parallel()

	nav := NewNavigationState(NewMenuRecordStore(menuStoreStub{}), nil, types.MenuQuery{TenantID: "t1"})
	c, snap, err := nav.Resolve(context.Background(), "a//b/")
	if !types.IsFetchError(err) || snap != nil {
		t.Fatalf("snap=%v err=%v", snap, err)
	}
	if c.Pathname != "/a/b" || c.CurrentHeader != nil {
		t.Fatalf("cascade=%+v", c)
	}
}
