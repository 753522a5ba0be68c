package routing

import (
	"errors"
	"slices"
	"strings"
)

type RouteClass string

const (
	RouteClassUI          RouteClass = "ui"
	RouteClassInternalAPI RouteClass = "internal_api"
	RouteClassPublicAPI   RouteClass = "public_api"
	RouteClassOps         RouteClass = "ops"
	RouteClassStatic      RouteClass = "static"
)

func knownRouteClass(rc RouteClass) bool {
	switch rc {
	case RouteClassUI, RouteClassInternalAPI, RouteClassPublicAPI, RouteClassOps, RouteClassStatic:
		return true
	}
	return false
}

// Classifier maps a request path to its RouteClass and answers whether a
// method is declared for it.
type Classifier struct {
	entrypoint string
	exact      map[string]listedRoute
	patterns   []listedPattern
}

type listedRoute struct {
	rc      RouteClass
	methods []string
}

type listedPattern struct {
	pattern PathPattern
	listedRoute
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint")
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	c := &Classifier{entrypoint: entrypoint, exact: make(map[string]listedRoute, len(ep.Routes))}
	for _, r := range ep.Routes {
		if r.Path == "" || r.RouteClass == "" {
			return nil, errors.New("allowlist: invalid route")
		}
		lr := listedRoute{rc: RouteClass(r.RouteClass), methods: r.Methods}
		if p, ok := parsePathPattern(r.Path); ok {
			c.patterns = append(c.patterns, listedPattern{pattern: p, listedRoute: lr})
			continue
		}
		c.exact[r.Path] = lr
	}
	slices.SortStableFunc(c.patterns, func(a, b listedPattern) int { return moreSpecific(a.pattern, b.pattern) })
	return c, nil
}

func (c *Classifier) Classify(path string) RouteClass {
	if lr, ok := c.lookup(path); ok {
		return lr.rc
	}

	switch {
	case hasPrefixSegment(path, "/api/v1"):
		return RouteClassPublicAPI
	case isModuleInternalAPI(path):
		return RouteClassInternalAPI
	case hasPrefixSegment(path, "/assets") || hasPrefixSegment(path, "/static"):
		return RouteClassStatic
	default:
		return RouteClassUI
	}
}

// Permits reports whether the allowlist declares method for path. A route
// listed without methods permits none.
func (c *Classifier) Permits(method, path string) bool {
	lr, ok := c.lookup(path)
	return ok && slices.Contains(lr.methods, method)
}

func (c *Classifier) lookup(path string) (listedRoute, bool) {
	if lr, ok := c.exact[path]; ok {
		return lr, true
	}
	for _, p := range c.patterns {
		if p.pattern.Match(path) {
			return p.listedRoute, true
		}
	}
	return listedRoute{}, false
}

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// isModuleInternalAPI matches /{module}/api and below, e.g. /nav/api/menus.
func isModuleInternalAPI(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	module, after, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !ok || module == "" {
		return false
	}
	return hasPrefixSegment("/"+after, "/api")
}
