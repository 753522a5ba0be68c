package menutree

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func rec(id string, parent string, order int) types.MenuRecord {
	r := types.MenuRecord{ID: id, Order: order, Type: types.MenuTypeMenu}
	if parent != "" {
		r.ParentID = types.StringPtr(parent)
	}
	return r
}

type shape struct {
	id, parent string
	order      int
}

func shapeOf(roots []*types.MenuTreeNode) []shape {
	var out []shape
	Walk(roots, func(n *types.MenuTreeNode, _ int) bool {
		out = append(out, shape{id: n.ID, parent: n.ParentKey(), order: n.Order})
		return true
	})
	return out
}

func equalShapes(a, b []shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuild_SortsAscendingWithIDTieBreak(t *testing.T) {
	t.Parallel()

	res := Build([]types.MenuRecord{
		rec("10", "", 2),
		rec("9", "", 2),
		rec("1", "", 1),
		rec("c2", "1", 5),
		rec("c1", "1", 3),
	})
	if len(res.Roots) != 3 {
		t.Fatalf("roots=%d", len(res.Roots))
	}
	if res.Roots[0].ID != "1" || res.Roots[1].ID != "9" || res.Roots[2].ID != "10" {
		t.Fatalf("order=%s,%s,%s", res.Roots[0].ID, res.Roots[1].ID, res.Roots[2].ID)
	}
	kids := res.Roots[0].Children
	if len(kids) != 2 || kids[0].ID != "c1" || kids[1].ID != "c2" {
		t.Fatalf("children=%v", shapeOf(kids))
	}
	if res.HasAnomalies() {
		t.Fatalf("anomalies=%+v", res)
	}
}

func TestBuild_OrphanBecomesRoot(t *testing.T) {
	t.Parallel()

	res := Build([]types.MenuRecord{
		rec("1", "", 1),
		rec("2", "404", 0),
		rec("3", "2", 1),
	})
	if len(res.Roots) != 2 || res.Roots[0].ID != "2" {
		t.Fatalf("roots=%v", shapeOf(res.Roots))
	}
	if len(res.Roots[0].Children) != 1 || res.Roots[0].Children[0].ID != "3" {
		t.Fatalf("orphan subtree lost: %v", shapeOf(res.Roots))
	}
	if len(res.Orphans) != 1 || res.Orphans[0].NodeID != "2" || res.Orphans[0].ParentID != "404" {
		t.Fatalf("orphans=%+v", res.Orphans)
	}
}

func TestBuild_TwoNodeCycleTerminates(t *testing.T) {
	t.Parallel()

	res := Build([]types.MenuRecord{
		rec("root", "", 1),
		rec("A", "B", 2),
		rec("B", "A", 1),
		rec("leaf", "A", 1),
	})
	if len(res.Cycles) != 1 {
		t.Fatalf("cycles=%+v", res.Cycles)
	}
	if res.Cycles[0].PromotedID != "B" {
		t.Fatalf("promoted=%q", res.Cycles[0].PromotedID)
	}
	if Count(res.Roots) != 4 {
		t.Fatalf("count=%d", Count(res.Roots))
	}
	var promoted *types.MenuTreeNode
	for _, r := range res.Roots {
		if r.ID == "B" {
			promoted = r
		}
	}
	if promoted == nil {
		t.Fatalf("roots=%v", shapeOf(res.Roots))
	}
	if len(promoted.Children) != 1 || promoted.Children[0].ID != "A" {
		t.Fatalf("children=%v", shapeOf(promoted.Children))
	}
	if len(promoted.Children[0].Children) != 1 || promoted.Children[0].Children[0].ID != "leaf" {
		t.Fatalf("grandchildren=%v", shapeOf(promoted.Children[0].Children))
	}
}

func TestBuild_SelfParent(t *testing.T) {
	t.Parallel()

	res := Build([]types.MenuRecord{rec("x", "x", 1), rec("y", "x", 1)})
	if len(res.Roots) != 1 || res.Roots[0].ID != "x" {
		t.Fatalf("roots=%v", shapeOf(res.Roots))
	}
	if len(res.Roots[0].Children) != 1 || res.Roots[0].Children[0].ID != "y" {
		t.Fatalf("children=%v", shapeOf(res.Roots[0].Children))
	}
	if len(res.Cycles) != 1 || len(res.Cycles[0].NodeIDs) != 1 {
		t.Fatalf("cycles=%+v", res.Cycles)
	}
}

func TestBuild_RandomCyclesAlwaysPlaceEveryRecord(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		n := 1 + r.IntN(30)
		var records []types.MenuRecord
		for i := 0; i < n; i++ {
			parent := ""
			if r.IntN(4) > 0 {
				parent = strconv.Itoa(r.IntN(n + 2))
			}
			records = append(records, rec(strconv.Itoa(i), parent, r.IntN(5)))
		}
		res := Build(records)
		if got := Count(res.Roots); got != n {
			t.Fatalf("round=%d placed=%d want=%d", round, got, n)
		}
		if len(res.Roots) == 0 {
			t.Fatalf("round=%d no roots", round)
		}
	}
}

func TestBuild_RoundTrip(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(7, 9))
	for round := 0; round < 100; round++ {
		n := 1 + r.IntN(40)
		var records []types.MenuRecord
		for i := 0; i < n; i++ {
			parent := ""
			if i > 0 && r.IntN(3) > 0 {
				parent = strconv.Itoa(r.IntN(i))
			}
			records = append(records, rec(strconv.Itoa(i), parent, r.IntN(4)))
		}
		r.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })

		first := Build(records)
		second := Build(Flatten(first.Roots))
		if !equalShapes(shapeOf(first.Roots), shapeOf(second.Roots)) {
			t.Fatalf("round=%d first=%v second=%v", round, shapeOf(first.Roots), shapeOf(second.Roots))
		}
	}
}

func TestBuild_DeepChainDoesNotRecurse(t *testing.T) {
	t.Parallel()

	const depth = 200000
	records := make([]types.MenuRecord, 0, depth)
	records = append(records, rec("0", "", 0))
	for i := 1; i < depth; i++ {
		records = append(records, rec(strconv.Itoa(i), strconv.Itoa(i-1), 0))
	}
	res := Build(records)
	if Count(res.Roots) != depth {
		t.Fatalf("count=%d", Count(res.Roots))
	}
	idx := NewIndex(res.Roots)
	if got := idx.Depth(strconv.Itoa(depth - 1)); got != depth-1 {
		t.Fatalf("depth=%d", got)
	}
}

func TestBuild_DuplicateIDFirstWins(t *testing.T) {
	t.Parallel()

	a := rec("1", "", 1)
	a.Name = "first"
	b := rec("1", "", 2)
	b.Name = "second"
	res := Build([]types.MenuRecord{a, b})
	if len(res.Roots) != 1 || res.Roots[0].Name != "first" {
		t.Fatalf("roots=%+v", res.Roots)
	}
	if len(res.Duplicates) != 1 {
		t.Fatalf("duplicates=%+v", res.Duplicates)
	}
}

func TestResultLog(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	res := Build([]types.MenuRecord{rec("1", "9", 1), rec("2", "3", 1), rec("3", "2", 1), rec("1", "", 1)})
	res.Log(zap.New(core))
	if logs.FilterMessage("menu orphan promoted to root").Len() != 1 {
		t.Fatalf("logs=%v", logs.All())
	}
	if logs.FilterMessage("menu cycle promoted to root").Len() != 1 {
		t.Fatalf("logs=%v", logs.All())
	}
	if logs.FilterMessage("menu duplicate id dropped").Len() != 1 {
		t.Fatalf("logs=%v", logs.All())
	}
	Result{}.Log(nil)
}
