package services

import (
	"github.com/jacksonlee411/navtree/modules/navigation/domain/menutree"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"github.com/jacksonlee411/navtree/pkg/menupath"
)

// Cascade is the header, sidebar and submenu derived from one tree and one
// pathname. All three lists hang off the same CurrentHeader.
type Cascade struct {
	Pathname      string                `json:"pathname"`
	Header        []*types.MenuTreeNode `json:"header"`
	CurrentHeader *types.MenuTreeNode   `json:"-"`
	Sidebar       []*types.MenuTreeNode `json:"sidebar"`
	SubmenuKey    string                `json:"submenu_key"`
	SubmenuOwner  *types.MenuTreeNode   `json:"-"`
	Submenu       []*types.MenuTreeNode `json:"submenu"`
	ActiveID      string                `json:"active_id"`
}

func (c Cascade) SubmenuVisible() bool {
	return len(c.Submenu) > 0
}

func (c Cascade) CurrentHeaderID() string {
	if c.CurrentHeader == nil {
		return ""
	}
	return c.CurrentHeader.ID
}

// ResolveCascade is pure: the same roots and pathname always yield the same
// cascade.
func ResolveCascade(roots []*types.MenuTreeNode, pathname string) Cascade {
	c := Cascade{Pathname: menupath.Normalize(pathname)}

	var headers []*types.MenuTreeNode
	for _, r := range roots {
		if r.Type != types.MenuTypeHeader {
			continue
		}
		headers = append(headers, r)
		if !r.Hidden {
			c.Header = append(c.Header, r)
		}
	}

	for _, h := range headers {
		if h.Disabled {
			continue
		}
		if subtreeMatches(h, c.Pathname, menupath.DepthHeader) {
			c.CurrentHeader = h
			break
		}
	}
	if c.CurrentHeader == nil {
		return c
	}
	c.Sidebar = visibleChildren(c.CurrentHeader)

	c.SubmenuKey = menupath.CompositeKey(c.Pathname)
	c.SubmenuOwner = submenuOwner(c.Sidebar, c.SubmenuKey, c.Pathname)
	if c.SubmenuOwner != nil {
		c.Submenu = visibleChildren(c.SubmenuOwner)
	}

	c.ActiveID = activeID(c)
	return c
}

func visibleChildren(n *types.MenuTreeNode) []*types.MenuTreeNode {
	var out []*types.MenuTreeNode
	for _, c := range n.Children {
		if c.Visible() {
			out = append(out, c)
		}
	}
	return out
}

// Matchable excludes pseudo nodes and external links from active-path matching.
func Matchable(n *types.MenuTreeNode) bool {
	return n != nil && !n.IsPseudo() && n.Path != "" && !menupath.IsExternal(n.Path)
}

func subtreeMatches(root *types.MenuTreeNode, pathname string, depth int) bool {
	hit := menutree.FindFunc([]*types.MenuTreeNode{root}, func(n *types.MenuTreeNode) bool {
		return Matchable(n) && menupath.IsActive(n.Path, pathname, depth)
	})
	return hit != nil
}

func submenuOwner(sidebar []*types.MenuTreeNode, key string, pathname string) *types.MenuTreeNode {
	if key != "" {
		for _, n := range sidebar {
			if !n.IsPseudo() && n.Slug == key {
				return n
			}
		}
	}
	for _, n := range sidebar {
		if Matchable(n) && menupath.IsActive(n.Path, pathname, menupath.DepthSidebar) && len(menupath.Segments(n.Path)) >= menupath.DepthSidebar {
			return n
		}
	}
	return nil
}

func activeID(c Cascade) string {
	for _, n := range c.Submenu {
		if Matchable(n) && menupath.IsActive(n.Path, c.Pathname, menupath.DepthSubmenu) {
			return n.ID
		}
	}
	if c.SubmenuOwner != nil {
		return c.SubmenuOwner.ID
	}
	for _, n := range c.Sidebar {
		if Matchable(n) && menupath.IsActive(n.Path, c.Pathname, menupath.DepthSidebar) {
			return n.ID
		}
	}
	return c.CurrentHeader.ID
}
