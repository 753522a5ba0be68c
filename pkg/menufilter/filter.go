// Package menufilter evaluates CEL boolean expressions against menu records.
// Expressions see a single variable, record, holding the record's fields by
// their JSON names, for example `record.type == "menu" && !record.hidden`.
package menufilter

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"github.com/jacksonlee411/navtree/pkg/httperr"
)

const maxExprLen = 1024

var newEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)))
}

var programCache sync.Map

type Filter struct {
	expr    string
	program cel.Program
}

// Compile returns a nil filter for an empty expression. Compile failures are
// bad requests.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	if len(expr) > maxExprLen {
		return nil, httperr.NewBadRequest("filter too long")
	}
	if cached, ok := programCache.Load(expr); ok {
		return &Filter{expr: expr, program: cached.(cel.Program)}, nil
	}

	env, err := newEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, httperr.NewBadRequest(fmt.Sprintf("invalid filter: %v", issues.Err()))
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, httperr.NewBadRequest("filter must be a boolean expression")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	programCache.Store(expr, program)
	return &Filter{expr: expr, program: program}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match reports whether rec satisfies the filter. A nil filter matches
// everything.
func (f *Filter) Match(rec types.MenuRecord) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, _, err := f.program.Eval(map[string]any{"record": Fields(rec)})
	if err != nil {
		return false, httperr.NewBadRequest(fmt.Sprintf("filter evaluation failed: %v", err))
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("filter returned non-boolean")
	}
	return v, nil
}

// Apply keeps the records that match, in input order.
func (f *Filter) Apply(records []types.MenuRecord) ([]types.MenuRecord, error) {
	if f == nil {
		return records, nil
	}
	out := make([]types.MenuRecord, 0, len(records))
	for _, rec := range records {
		ok, err := f.Match(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func Fields(rec types.MenuRecord) map[string]any {
	return map[string]any{
		"id":        rec.ID,
		"parent_id": rec.ParentKey(),
		"name":      rec.Name,
		"label":     rec.Label,
		"slug":      rec.Slug,
		"path":      rec.Path,
		"icon":      rec.Icon,
		"type":      string(rec.Type),
		"order":     int64(rec.Order),
		"disabled":  rec.Disabled,
		"hidden":    rec.Hidden,
		"perms":     rec.Perms,
		"target":    string(rec.Target),
		"status":    string(rec.Status()),
		"pseudo":    rec.IsPseudo(),
	}
}
