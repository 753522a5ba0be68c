package routing

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"sort"
)

type Router struct {
	classifier *Classifier
	routes     map[string]map[string]routeEntry
	patterns   []patternRoute
}

type routeEntry struct {
	rc      RouteClass
	handler http.Handler
}

type patternRoute struct {
	pattern PathPattern
	methods map[string]routeEntry
}

type pathParamsKey struct{}

func NewRouter(classifier *Classifier) *Router {
	return &Router{
		classifier: classifier,
		routes:     make(map[string]map[string]routeEntry),
	}
}

// Handle registers h for method and path. Paths containing {name} segments
// are matched after exact paths, literal segments before parameters.
func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	entry := routeEntry{
		rc: rc,
		handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					_ = debug.Stack()
					WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			h.ServeHTTP(w, req)
		}),
	}

	if p, ok := parsePathPattern(path); ok {
		for i := range r.patterns {
			if r.patterns[i].pattern.raw == path {
				r.patterns[i].methods[method] = entry
				return
			}
		}
		r.patterns = append(r.patterns, patternRoute{pattern: p, methods: map[string]routeEntry{method: entry}})
		slices.SortStableFunc(r.patterns, func(a, b patternRoute) int { return moreSpecific(a.pattern, b.pattern) })
		return
	}

	if r.routes[path] == nil {
		r.routes[path] = make(map[string]routeEntry)
	}
	r.routes[path][method] = entry
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	methods, ok := r.routes[req.URL.Path]
	if !ok {
		for _, p := range r.patterns {
			params, matched := p.pattern.Params(req.URL.Path)
			if !matched {
				continue
			}
			methods = p.methods
			req = req.WithContext(context.WithValue(req.Context(), pathParamsKey{}, params))
			ok = true
			break
		}
	}
	if !ok {
		WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
		return
	}
	entry, ok := methods[req.Method]
	if !ok {
		WriteError(w, req, entrypointClass(methods, r.classifier.Classify(req.URL.Path)), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	entry.handler.ServeHTTP(w, req)
}

// Template returns the registered path that serves req, or "" when no route
// matches.
func (r *Router) Template(req *http.Request) string {
	if _, ok := r.routes[req.URL.Path]; ok {
		return req.URL.Path
	}
	for _, p := range r.patterns {
		if p.pattern.Match(req.URL.Path) {
			return p.pattern.raw
		}
	}
	return ""
}

// Verify fails when a registered method and path is not declared in the
// allowlist the router was built with.
func (r *Router) Verify() error {
	var missing []string
	for path, methods := range r.routes {
		for m := range methods {
			if !r.classifier.Permits(m, path) {
				missing = append(missing, m+" "+path)
			}
		}
	}
	for _, p := range r.patterns {
		for m := range p.methods {
			if !r.classifier.Permits(m, p.pattern.raw) {
				missing = append(missing, m+" "+p.pattern.raw)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("routing: routes missing from allowlist entrypoint %s: %v", r.classifier.entrypoint, missing)
	}
	return nil
}

// PathParam returns the value bound to {name} by a pattern route, or "".
func PathParam(req *http.Request, name string) string {
	params, _ := req.Context().Value(pathParamsKey{}).(map[string]string)
	return params[name]
}

func entrypointClass(methods map[string]routeEntry, fallback RouteClass) RouteClass {
	for _, e := range methods {
		return e.rc
	}
	return fallback
}
