package menupath

import "strings"

const (
	DepthHeader  = 1
	DepthSidebar = 2
	DepthSubmenu = 3
)

// Segments splits a pathname into its non-empty segments. Query strings,
// fragments, repeated and trailing slashes are dropped.
func Segments(path string) []string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Normalize renders the canonical "/a/b" form of path ("/" for the root).
func Normalize(path string) string {
	segs := Segments(path)
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}

// IsExternal reports whether path carries a URL scheme or is protocol-relative.
func IsExternal(path string) bool {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "//") {
		return true
	}
	scheme, _, ok := strings.Cut(path, ":")
	if !ok || scheme == "" {
		return false
	}
	for i := 0; i < len(scheme); i++ {
		ch := scheme[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		case i > 0 && (ch >= '0' && ch <= '9' || ch == '+' || ch == '-' || ch == '.'):
		default:
			return false
		}
	}
	return true
}

// IsActive compares the first min(depth, len(candidate)) segments of candidate
// against current. Empty and external candidates never match.
func IsActive(candidate, current string, depth int) bool {
	if depth <= 0 || IsExternal(candidate) {
		return false
	}
	want := Segments(candidate)
	if len(want) == 0 {
		return false
	}
	got := Segments(current)
	n := min(depth, len(want))
	if len(got) < n {
		return false
	}
	for i := range n {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// CompositeKey joins the first two segments with "-" ("" when fewer exist).
func CompositeKey(path string) string {
	segs := Segments(path)
	if len(segs) < 2 {
		return ""
	}
	return segs[0] + "-" + segs[1]
}
