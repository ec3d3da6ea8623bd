package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/starford/docvault/internal/apperr"
)

// AttachmentsDir is the reserved vault subdirectory for embedded assets.
const AttachmentsDir = ".attachments"

// Root returns the absolute root directory of vault id.
func (f *FS) Root(id int64) string {
	return filepath.Join(f.base, strconv.FormatInt(id, 10))
}

// AttachmentsPath returns the absolute .attachments directory of vault id.
func (f *FS) AttachmentsPath(id int64) string {
	return filepath.Join(f.Root(id), AttachmentsDir)
}

// Resolve maps a vault-relative path onto the vault root. Leading slashes are
// ignored and "." segments dropped; ".." segments are rejected outright
// rather than cleaned, so the result never leaves the root. Resolve does not
// touch the file system.
func (f *FS) Resolve(id int64, rel string) (string, error) {
	segs, err := segments(rel)
	if err != nil {
		return "", err
	}
	root := f.Root(id)
	abs := filepath.Join(append([]string{root}, segs...)...)
	if !within(root, abs) {
		return "", apperr.New(apperr.ErrPathTraversal, "resolve", rel, nil)
	}
	return abs, nil
}

// AbsPath is Resolve under the Provider name.
func (f *FS) AbsPath(id int64, rel string) (string, error) {
	return f.Resolve(id, rel)
}

// Normalize returns the canonical vault path for rel: a leading "/" followed
// by the cleaned segments.
func Normalize(rel string) (string, error) {
	segs, err := segments(rel)
	if err != nil {
		return "", err
	}
	return "/" + strings.Join(segs, "/"), nil
}

// segments splits rel on forward and back slashes on every platform.
func segments(rel string) ([]string, error) {
	parts := strings.FieldsFunc(rel, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == ".":
			continue
		case p == "..":
			return nil, apperr.New(apperr.ErrPathTraversal, "resolve", rel, nil)
		case strings.ContainsRune(p, 0), filepath.VolumeName(p) != "":
			return nil, apperr.New(apperr.ErrInvalidPath, "resolve", rel, nil)
		}
		out = append(out, p)
	}
	return out, nil
}

// entry resolves a path that must name an entry below the root, not the
// root itself.
func (f *FS) entry(id int64, op, rel string) (string, error) {
	abs, err := f.Resolve(id, rel)
	if err != nil {
		return "", err
	}
	if abs == f.Root(id) {
		return "", apperr.New(apperr.ErrInvalidPath, op, rel, nil)
	}
	return abs, nil
}

// vaultPath converts an absolute path under the vault root back to its
// slash-separated vault path.
func (f *FS) vaultPath(id int64, abs string) string {
	rel, err := filepath.Rel(f.Root(id), abs)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// within reports whether p is root or lies below it.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
