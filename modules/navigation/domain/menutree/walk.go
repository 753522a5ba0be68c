package menutree

import "github.com/jacksonlee411/navtree/modules/navigation/domain/types"

// Walk visits nodes in pre-order using an explicit stack. Returning false from
// fn stops the walk.
func Walk(roots []*types.MenuTreeNode, fn func(n *types.MenuTreeNode, depth int) bool) {
	type frame struct {
		node  *types.MenuTreeNode
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i], depth: 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.node == nil {
			continue
		}
		if !fn(f.node, f.depth) {
			return
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], depth: f.depth + 1})
		}
	}
}

// Flatten returns every record in pre-order.
func Flatten(roots []*types.MenuTreeNode) []types.MenuRecord {
	var out []types.MenuRecord
	Walk(roots, func(n *types.MenuTreeNode, _ int) bool {
		out = append(out, n.MenuRecord)
		return true
	})
	return out
}

func Find(roots []*types.MenuTreeNode, id string) *types.MenuTreeNode {
	var found *types.MenuTreeNode
	Walk(roots, func(n *types.MenuTreeNode, _ int) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindFunc returns the first node in pre-order that satisfies match.
func FindFunc(roots []*types.MenuTreeNode, match func(n *types.MenuTreeNode) bool) *types.MenuTreeNode {
	var found *types.MenuTreeNode
	Walk(roots, func(n *types.MenuTreeNode, _ int) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// Descendants returns the ids strictly below n.
func Descendants(n *types.MenuTreeNode) map[string]struct{} {
	out := make(map[string]struct{})
	if n == nil {
		return out
	}
	Walk(n.Children, func(c *types.MenuTreeNode, _ int) bool {
		out[c.ID] = struct{}{}
		return true
	})
	return out
}

func Count(roots []*types.MenuTreeNode) int {
	total := 0
	Walk(roots, func(*types.MenuTreeNode, int) bool {
		total++
		return true
	})
	return total
}

type Index struct {
	roots  []*types.MenuTreeNode
	nodes  map[string]*types.MenuTreeNode
	parent map[string]*types.MenuTreeNode
}

func NewIndex(roots []*types.MenuTreeNode) *Index {
	idx := &Index{
		roots:  roots,
		nodes:  make(map[string]*types.MenuTreeNode),
		parent: make(map[string]*types.MenuTreeNode),
	}
	Walk(roots, func(n *types.MenuTreeNode, _ int) bool {
		idx.nodes[n.ID] = n
		for _, c := range n.Children {
			idx.parent[c.ID] = n
		}
		return true
	})
	return idx
}

func (x *Index) Len() int { return len(x.nodes) }

func (x *Index) Node(id string) (*types.MenuTreeNode, bool) {
	n, ok := x.nodes[id]
	return n, ok
}

// Parent returns nil for roots.
func (x *Index) Parent(id string) *types.MenuTreeNode {
	return x.parent[id]
}

// Children returns the roots when parentID is empty.
func (x *Index) Children(parentID string) []*types.MenuTreeNode {
	if parentID == "" {
		return x.roots
	}
	if n, ok := x.nodes[parentID]; ok {
		return n.Children
	}
	return nil
}

// Ancestors lists parents from the nearest up to the root.
func (x *Index) Ancestors(id string) []*types.MenuTreeNode {
	var out []*types.MenuTreeNode
	for p := x.parent[id]; p != nil; p = x.parent[p.ID] {
		out = append(out, p)
		if len(out) > len(x.nodes) {
			break
		}
	}
	return out
}

func (x *Index) Depth(id string) int {
	return len(x.Ancestors(id))
}

// IsDescendant reports whether candidate sits strictly below id.
func (x *Index) IsDescendant(id, candidate string) bool {
	for _, a := range x.Ancestors(candidate) {
		if a.ID == id {
			return true
		}
	}
	return false
}
