package routing

import (
	"slices"
	"strings"
)

// PathPattern is a route template such as /nav/api/menus/{id}/move. Each
// {name} binds exactly one non-empty segment.
type PathPattern struct {
	raw      string
	segments []string
}

func parsePathPattern(raw string) (PathPattern, bool) {
	if raw == "" || raw[0] != '/' || !strings.Contains(raw, "{") {
		return PathPattern{}, false
	}

	parts := splitPathSegments(raw)
	var names []string
	for _, s := range parts {
		switch {
		case s == "":
			return PathPattern{}, false
		case isParamSegment(s):
			name := s[1 : len(s)-1]
			if slices.Contains(names, name) {
				return PathPattern{}, false
			}
			names = append(names, name)
		case strings.ContainsAny(s, "{}"):
			return PathPattern{}, false
		}
	}
	return PathPattern{raw: raw, segments: parts}, true
}

func (p PathPattern) Match(path string) bool {
	_, ok := p.Params(path)
	return ok
}

// Params matches path and returns the values bound to each {name} segment.
func (p PathPattern) Params(path string) (map[string]string, bool) {
	if p.raw == "" {
		return nil, false
	}
	in := splitPathSegments(path)
	if len(in) != len(p.segments) {
		return nil, false
	}
	out := make(map[string]string)
	for i, want := range p.segments {
		got := in[i]
		if got == "" {
			return nil, false
		}
		if isParamSegment(want) {
			out[want[1:len(want)-1]] = got
			continue
		}
		if got != want {
			return nil, false
		}
	}
	return out, true
}

// moreSpecific orders patterns so that, at the first segment where they
// differ in kind, a literal is tried before a {name}: /menus/by-slug/{slug}
// wins over /menus/{id}/move.
func moreSpecific(a, b PathPattern) int {
	for i := range min(len(a.segments), len(b.segments)) {
		pa, pb := isParamSegment(a.segments[i]), isParamSegment(b.segments[i])
		switch {
		case !pa && pb:
			return -1
		case pa && !pb:
			return 1
		}
	}
	return 0
}

func splitPathSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isParamSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2
}
