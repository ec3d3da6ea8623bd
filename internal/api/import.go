package api

import (
	"path/filepath"
	"strings"
)

// importPolicy decides which host files an import may read. With auth
// enabled any readable file may be imported; otherwise the source must lie
// under one of roots.
type importPolicy struct {
	authEnabled bool
	roots       []string
}

func (p importPolicy) allows(source string) bool {
	if p.authEnabled {
		return true
	}
	if !filepath.IsAbs(source) {
		return false
	}
	src := realPath(source)
	for _, root := range p.roots {
		if under(realPath(root), src) {
			return true
		}
	}
	return false
}

// realPath resolves symlinks in p. When p itself does not exist its parent
// is resolved instead, so a missing file still maps to its real directory.
func realPath(p string) string {
	p = filepath.Clean(p)
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		return filepath.Join(dir, filepath.Base(p))
	}
	return p
}

func under(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
