package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/filetype"
	"github.com/starford/docvault/internal/models"
)

// DefaultCopySuffix is inserted before the extension when a copy collides
// with an existing name.
const DefaultCopySuffix = "副本"

// tempPrefix marks in-flight atomic writes; scans and watchers ignore it.
const tempPrefix = ".docvault-tmp-"

// FS implements Provider backed by the local file system. Each vault lives
// in <base>/<id>.
type FS struct {
	base       string // absolute path holding all vaults
	copySuffix string
	exclude    []string
	logger     *slog.Logger
}

// Option configures an FS.
type Option func(*FS)

// WithCopySuffix sets the word used to name colliding copies.
func WithCopySuffix(suffix string) Option {
	return func(f *FS) {
		if suffix != "" {
			f.copySuffix = suffix
		}
	}
}

// WithExclude hides entries matching any of the doublestar patterns from
// scans and exports. Patterns match the vault path without its leading slash.
func WithExclude(patterns ...string) Option {
	return func(f *FS) {
		f.exclude = append(f.exclude, patterns...)
	}
}

// WithLogger sets the logger used for mutation debug logs.
func WithLogger(l *slog.Logger) Option {
	return func(f *FS) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFS creates a new FS provider rooted at the given base directory.
// The directory must already exist.
func NewFS(base string, opts ...Option) (*FS, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat base: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: base is not a directory: %s", abs)
	}
	f := &FS{
		base:       abs,
		copySuffix: DefaultCopySuffix,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	for _, p := range f.exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("storage: invalid exclude pattern: %q", p)
		}
	}
	return f, nil
}

// Base returns the absolute directory holding all vaults.
func (f *FS) Base() string {
	return f.base
}

// Init creates the vault root and its .attachments directory if absent.
func (f *FS) Init(id int64) error {
	if err := os.MkdirAll(f.AttachmentsPath(id), 0o755); err != nil {
		return apperr.IO("init", "/", err)
	}
	return nil
}

// CreateFolder creates rel and any missing ancestors.
func (f *FS) CreateFolder(id int64, rel string) error {
	abs, err := f.Resolve(id, rel)
	if err != nil {
		return err
	}
	if err := f.Init(id); err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return apperr.IO("create folder", rel, err)
	}
	f.logger.Debug("storage: folder created", slog.Int64("vault_id", id), slog.String("path", rel))
	return nil
}

// Import copies the external file source into folder under its original
// name, replacing any file already there.
func (f *FS) Import(id int64, source, folder string) (*models.FileDescriptor, error) {
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.ErrNotFound, "import", source, err)
		}
		return nil, apperr.IO("import", source, err)
	}
	if info.IsDir() {
		return nil, apperr.IO("import", source, errors.New("source is a directory"))
	}
	dir, err := f.Resolve(id, folder)
	if err != nil {
		return nil, err
	}
	if err := f.Init(id); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.IO("import", folder, err)
	}

	name := filepath.Base(source)
	dst := filepath.Join(dir, name)
	if dstInfo, statErr := os.Stat(dst); statErr != nil || !os.SameFile(info, dstInfo) {
		if err := copyFile(source, dst, info.Mode().Perm(), false); err != nil {
			return nil, apperr.IO("import", source, err)
		}
	}
	f.logger.Debug("storage: imported",
		slog.Int64("vault_id", id),
		slog.String("source", source),
		slog.String("path", f.vaultPath(id, dst)))
	return describe(name, info.Size()), nil
}

// Rename moves oldPath to newPath. The rename itself is a single OS call;
// newPath is replaced if the platform allows it.
func (f *FS) Rename(id int64, oldPath, newPath string) error {
	absOld, err := f.entry(id, "rename", oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.entry(id, "rename", newPath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(absOld); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.New(apperr.ErrNotFound, "rename", oldPath, err)
		}
		return apperr.IO("rename", oldPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return apperr.IO("rename", newPath, err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return apperr.IO("rename", oldPath, err)
	}
	f.logger.Debug("storage: renamed",
		slog.Int64("vault_id", id),
		slog.String("from", oldPath),
		slog.String("to", newPath))
	return nil
}

// Delete removes a file, or a folder with everything below it. Deleting a
// path that does not exist succeeds.
func (f *FS) Delete(id int64, rel string) error {
	abs, err := f.entry(id, "delete", rel)
	if err != nil {
		return err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return apperr.IO("delete", rel, err)
	}
	if info.IsDir() {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.IO("delete", rel, err)
	}
	f.logger.Debug("storage: deleted", slog.Int64("vault_id", id), slog.String("path", rel))
	return nil
}

// ReadBinary returns the raw bytes of a vault file.
func (f *FS) ReadBinary(id int64, rel string) ([]byte, error) {
	abs, err := f.Resolve(id, rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.ErrNotFound, "read", rel, err)
		}
		return nil, apperr.IO("read", rel, err)
	}
	return data, nil
}

// ReadText returns the contents of a vault file that must be valid UTF-8.
func (f *FS) ReadText(id int64, rel string) (string, error) {
	data, err := f.ReadBinary(id, rel)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", apperr.New(apperr.ErrEncoding, "read", rel, nil)
	}
	return string(data), nil
}

// WriteBinary replaces the contents of rel, creating parent folders.
func (f *FS) WriteBinary(id int64, rel string, data []byte) error {
	abs, err := f.entry(id, "write", rel)
	if err != nil {
		return err
	}
	if err := f.Init(id); err != nil {
		return err
	}
	if err := writeAtomic(abs, data); err != nil {
		return apperr.IO("write", rel, err)
	}
	return nil
}

// WriteText replaces the contents of rel with content.
func (f *FS) WriteText(id int64, rel, content string) error {
	return f.WriteBinary(id, rel, []byte(content))
}

// FileInfo describes the file at rel.
func (f *FS) FileInfo(id int64, rel string) (*models.FileDescriptor, error) {
	abs, err := f.entry(id, "file info", rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.ErrNotFound, "file info", rel, err)
		}
		return nil, apperr.IO("file info", rel, err)
	}
	return describe(info.Name(), info.Size()), nil
}

func describe(name string, size int64) *models.FileDescriptor {
	stem, ext := filetype.SplitExt(name)
	return &models.FileDescriptor{
		Filename: stem,
		FileType: filetype.Classify(ext),
		Ext:      ext,
		Size:     size,
	}
}

// writeAtomic writes content: tmp file → fsync → rename. An existing file
// keeps its mode.
func writeAtomic(abs string, content []byte) error {
	perm := os.FileMode(0o644)
	if st, err := os.Stat(abs); err == nil {
		if st.IsDir() {
			return fmt.Errorf("%s is a directory", filepath.Base(abs))
		}
		perm = st.Mode().Perm()
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	success = true
	return nil
}

// copyFile copies src to dst. With exclusive set, an existing dst fails
// with fs.ErrExist instead of being truncated. A partially written dst is
// removed.
func copyFile(src, dst string, perm os.FileMode, exclusive bool) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if exclusive {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	out, err := os.OpenFile(dst, flags, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// Revealer shows an absolute path to the user.
type Revealer interface {
	Open(abs string) error
}

// Reveal resolves rel and hands it to r. A missing entry fails with
// ErrNotFound before r is called.
func (f *FS) Reveal(id int64, rel string, r Revealer) error {
	abs, err := f.Resolve(id, rel)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.New(apperr.ErrNotFound, "reveal", rel, err)
		}
		return apperr.IO("reveal", rel, err)
	}
	return r.Open(abs)
}
