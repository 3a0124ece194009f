// Package resolve maps raw reference strings to tree paths and decides
// whether they point at something that exists.
package resolve

import (
	"path"
	"strings"
)

// Normalizer rewrites raw reference targets into tree-relative paths.
type Normalizer struct {
	// AliasPrefix is the sentinel that stands for the source root ("@/").
	AliasPrefix string
	// AliasTarget replaces AliasPrefix ("src/").
	AliasTarget string
}

// Normalize converts raw, as written inside origin, into a tree-relative path.
//
// Alias substitution is a single textual prefix replacement and its result is
// never re-joined against origin. Relative targets are joined with origin's
// directory and cleaned lexically. Anything else passes through unchanged.
func (n Normalizer) Normalize(raw, origin string) string {
	if n.AliasPrefix != "" && strings.HasPrefix(raw, n.AliasPrefix) {
		return n.AliasTarget + raw[len(n.AliasPrefix):]
	}
	if isRelative(raw) {
		return path.Join(path.Dir(origin), raw)
	}
	return raw
}

func isRelative(raw string) bool {
	return raw == "." || raw == ".." ||
		strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../")
}
