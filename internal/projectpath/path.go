package projectpath

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// Separator delimits path segments.
const Separator = ":"

// segmentRegex matches a single path segment, e.g. `core` or `some-other-subproject`.
var segmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Path is an immutable logical project path. The zero value is the root.
type Path struct {
	segments []string
}

// Root returns the root project path `:`.
func Root() Path {
	return Path{}
}

// isValidSegment checks for undesirable but technically matching names.
func isValidSegment(name string) bool {
	if !segmentRegex.MatchString(name) {
		return false
	}
	return name != "." && name != ".."
}

// Parse creates a Path from its string form. The leading colon is optional,
// so `ios:x` and `:ios:x` are the same path.
func Parse(raw string) (Path, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Path{}, fmt.Errorf("project path cannot be empty")
	}
	if raw == Separator {
		return Root(), nil
	}

	var segments []string
	for _, seg := range strings.Split(strings.TrimPrefix(raw, Separator), Separator) {
		if seg == "" {
			return Path{}, fmt.Errorf("project path %q contains an empty segment", raw)
		}
		if !isValidSegment(seg) {
			return Path{}, fmt.Errorf("invalid project path segment %q in %q", seg, raw)
		}
		segments = append(segments, seg)
	}
	return Path{segments: segments}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// compile-time constants.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the canonical form, always starting with a colon.
func (p Path) String() string {
	return Separator + strings.Join(p.segments, Separator)
}

// IsRoot reports whether p is the root path.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// Depth is the number of segments; the root has depth 0.
func (p Path) Depth() int {
	return len(p.segments)
}

// Name returns the last segment, or "" for the root.
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent returns the enclosing path. The root is its own parent.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return p
	}
	return Path{segments: slices.Clone(p.segments[:len(p.segments)-1])}
}

// Child appends one segment.
func (p Path) Child(name string) Path {
	segments := make([]string, 0, len(p.segments)+1)
	segments = append(segments, p.segments...)
	return Path{segments: append(segments, name)}
}

// Append joins a relative path onto p.
func (p Path) Append(rel Path) Path {
	segments := make([]string, 0, len(p.segments)+len(rel.segments))
	segments = append(segments, p.segments...)
	return Path{segments: append(segments, rel.segments...)}
}

// Ancestors returns every path from the first level down to p itself,
// excluding the root. For `:a:b:c` it returns `:a`, `:a:b`, `:a:b:c`.
func (p Path) Ancestors() []Path {
	out := make([]Path, 0, len(p.segments))
	for i := 1; i <= len(p.segments); i++ {
		out = append(out, Path{segments: slices.Clone(p.segments[:i])})
	}
	return out
}

// RelDir returns the default physical directory for p: its segments joined
// with the OS path separator. The root maps to ".".
func (p Path) RelDir() string {
	if p.IsRoot() {
		return "."
	}
	return filepath.Join(p.segments...)
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p.segments, other.segments)
}
