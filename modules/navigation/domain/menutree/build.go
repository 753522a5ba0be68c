package menutree

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"go.uber.org/zap"
)

type Result struct {
	Roots      []*types.MenuTreeNode          `json:"roots"`
	Orphans    []types.OrphanRecordAnomaly    `json:"orphans,omitempty"`
	Cycles     []types.CycleAnomaly           `json:"cycles,omitempty"`
	Duplicates []types.DuplicateRecordAnomaly `json:"duplicates,omitempty"`
}

func (r Result) HasAnomalies() bool {
	return len(r.Orphans) > 0 || len(r.Cycles) > 0 || len(r.Duplicates) > 0
}

func (r Result) Log(l *zap.Logger) {
	if l == nil {
		return
	}
	for _, o := range r.Orphans {
		l.Warn("menu orphan promoted to root", zap.String("node_id", o.NodeID), zap.String("parent_id", o.ParentID))
	}
	for _, c := range r.Cycles {
		l.Warn("menu cycle promoted to root", zap.Strings("node_ids", c.NodeIDs), zap.String("promoted_id", c.PromotedID))
	}
	for _, d := range r.Duplicates {
		l.Warn("menu duplicate id dropped", zap.String("node_id", d.NodeID))
	}
}

// Build nests records by parent_id. Children and roots are sorted by Less.
// Records whose parent is missing become roots and are reported as orphans;
// records that loop back on themselves get one loop member promoted to root.
func Build(records []types.MenuRecord) Result {
	var res Result

	nodes := make(map[string]*types.MenuTreeNode, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if _, dup := nodes[rec.ID]; dup {
			res.Duplicates = append(res.Duplicates, types.DuplicateRecordAnomaly{NodeID: rec.ID})
			continue
		}
		nodes[rec.ID] = &types.MenuTreeNode{MenuRecord: rec}
		ids = append(ids, rec.ID)
	}

	children := make(map[string][]*types.MenuTreeNode, len(ids))
	var roots []*types.MenuTreeNode
	for _, id := range ids {
		n := nodes[id]
		parent := n.ParentKey()
		switch {
		case parent == "":
			roots = append(roots, n)
		case nodes[parent] == nil:
			roots = append(roots, n)
			res.Orphans = append(res.Orphans, types.OrphanRecordAnomaly{NodeID: id, ParentID: parent})
		default:
			children[parent] = append(children[parent], n)
		}
	}
	for _, list := range children {
		slices.SortStableFunc(list, compareNodes)
	}

	placed := make(map[string]bool, len(ids))
	attach := func(root *types.MenuTreeNode) {
		placed[root.ID] = true
		stack := []*types.MenuTreeNode{root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			n.Children = n.Children[:0]
			for _, c := range children[n.ID] {
				if placed[c.ID] {
					continue
				}
				placed[c.ID] = true
				n.Children = append(n.Children, c)
				stack = append(stack, c)
			}
		}
	}
	for _, r := range roots {
		attach(r)
	}

	for _, id := range ids {
		if placed[id] {
			continue
		}
		loop := findLoop(nodes, placed, id)
		if len(loop) == 0 {
			continue
		}
		promoted := slices.MinFunc(loop, func(a, b string) int { return compareNodes(nodes[a], nodes[b]) })
		res.Cycles = append(res.Cycles, types.CycleAnomaly{NodeIDs: loop, PromotedID: promoted})
		roots = append(roots, nodes[promoted])
		attach(nodes[promoted])
	}

	slices.SortStableFunc(roots, compareNodes)
	res.Roots = roots
	return res
}

// findLoop follows parent links from start until an id repeats and returns
// the repeating segment. Every ancestor of an unplaced node is unplaced, so
// the chain always closes.
func findLoop(nodes map[string]*types.MenuTreeNode, placed map[string]bool, start string) []string {
	pos := make(map[string]int)
	var chain []string
	for id := start; ; {
		if i, seen := pos[id]; seen {
			return slices.Clone(chain[i:])
		}
		n := nodes[id]
		if n == nil || placed[id] {
			return nil
		}
		pos[id] = len(chain)
		chain = append(chain, id)
		id = n.ParentKey()
	}
}

func compareNodes(a, b *types.MenuTreeNode) int {
	return Compare(a.MenuRecord, b.MenuRecord)
}

// Compare orders siblings: lower Order first, then by id (numerically when
// both ids are integers).
func Compare(a, b types.MenuRecord) int {
	if c := cmp.Compare(a.Order, b.Order); c != 0 {
		return c
	}
	return CompareIDs(a.ID, b.ID)
}

func CompareIDs(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return cmp.Compare(ai, bi)
	}
	return cmp.Compare(a, b)
}
