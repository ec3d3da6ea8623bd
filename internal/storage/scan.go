package storage

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/filetype"
	"github.com/starford/docvault/internal/models"
)

// housekeeping lists OS metadata files that never show up in a vault tree.
var housekeeping = map[string]struct{}{
	".DS_Store":   {},
	"Thumbs.db":   {},
	"desktop.ini": {},
}

// Scan walks the vault and returns its tree. A vault whose root does not
// exist yet scans as empty. Directories sort before files, hidden
// directories after the others; names compare case-insensitively.
func (f *FS) Scan(id int64) ([]models.Node, error) {
	root := f.Root(id)
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Node{}, nil
		}
		return nil, apperr.IO("scan", "/", err)
	}

	type frame struct {
		abs string
		rel string
		out *[]models.Node
	}

	var top []models.Node
	stack := []frame{{abs: root, out: &top}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(fr.abs)
		if err != nil {
			return nil, apperr.IO("scan", "/"+fr.rel, err)
		}

		nodes := make([]models.Node, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			rel := path.Join(fr.rel, name)
			if f.skip(name, rel) {
				continue
			}
			if e.IsDir() {
				nodes = append(nodes, models.Node{
					Name:     name,
					Path:     "/" + rel,
					IsDir:    true,
					Children: []models.Node{},
				})
				continue
			}
			nodes = append(nodes, fileNode(e, rel))
		}
		sortNodes(nodes)
		*fr.out = nodes

		// nodes is not appended to again, so pointers into it stay valid.
		for i := range nodes {
			if nodes[i].IsDir {
				stack = append(stack, frame{
					abs: filepath.Join(fr.abs, nodes[i].Name),
					rel: path.Join(fr.rel, nodes[i].Name),
					out: &nodes[i].Children,
				})
			}
		}
	}
	return top, nil
}

func fileNode(e fs.DirEntry, rel string) models.Node {
	stem, ext := filetype.SplitExt(e.Name())
	n := models.Node{
		Name:     stem,
		Path:     "/" + rel,
		FileType: filetype.Classify(ext),
		Ext:      ext,
	}
	// Size is best-effort: the entry may vanish between ReadDir and Info.
	if info, err := e.Info(); err == nil {
		size := info.Size()
		n.Size = &size
	}
	return n
}

func sortNodes(nodes []models.Node) {
	slices.SortStableFunc(nodes, func(a, b models.Node) int {
		return compareEntries(a.Name, a.IsDir, b.Name, b.IsDir)
	})
}

// compareEntries orders two siblings: directories before files, hidden
// directories after the other directories, then names case-insensitively.
// File names are compared without their extension.
func compareEntries(aName string, aDir bool, bName string, bDir bool) int {
	if aDir != bDir {
		if aDir {
			return -1
		}
		return 1
	}
	if aDir {
		ah, bh := strings.HasPrefix(aName, "."), strings.HasPrefix(bName, ".")
		if ah != bh {
			if ah {
				return 1
			}
			return -1
		}
	}
	return strings.Compare(strings.ToLower(aName), strings.ToLower(bName))
}

// skip reports whether an entry is hidden from scans and exports. rel is the
// slash-separated vault path without its leading slash.
func (f *FS) skip(name, rel string) bool {
	if _, ok := housekeeping[name]; ok {
		return true
	}
	if strings.HasPrefix(name, tempPrefix) {
		return true
	}
	for _, p := range f.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Ignored reports whether a change to the entry at the vault path rel is
// of no interest to tree consumers.
func (f *FS) Ignored(rel string) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	prefix := ""
	for _, seg := range strings.Split(rel, "/") {
		prefix = path.Join(prefix, seg)
		if f.skip(seg, prefix) {
			return true
		}
	}
	return false
}
