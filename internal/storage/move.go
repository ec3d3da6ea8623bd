package storage

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/docvault/internal/apperr"
)

// Move moves the entry at source into folder under its original name and
// returns its new vault path. Moving an entry onto itself is a no-op; an
// existing, different entry at the destination fails with ErrConflict.
func (f *FS) Move(id int64, source, folder string) (string, error) {
	src, err := f.entry(id, "move", source)
	if err != nil {
		return "", err
	}
	dir, err := f.Resolve(id, folder)
	if err != nil {
		return "", err
	}
	srcInfo, err := os.Lstat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.New(apperr.ErrNotFound, "move", source, err)
		}
		return "", apperr.IO("move", source, err)
	}
	if srcInfo.IsDir() && within(src, dir) {
		return "", apperr.IO("move", source, errors.New("destination is inside the source folder"))
	}
	if err := f.Init(id); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.IO("move", folder, err)
	}

	dst := filepath.Join(dir, filepath.Base(src))
	out := f.vaultPath(id, dst)
	if dst == src {
		return out, nil
	}

	if dstInfo, err := os.Lstat(dst); err == nil {
		if !os.SameFile(srcInfo, dstInfo) {
			return "", apperr.New(apperr.ErrConflict, "move", out, nil)
		}
		// Same entry under another spelling, e.g. on a case-insensitive volume.
		if err := os.Rename(src, dst); err != nil {
			return "", apperr.IO("move", source, err)
		}
		return out, nil
	}

	if err := renameNoReplace(src, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", apperr.New(apperr.ErrConflict, "move", out, err)
		}
		return "", apperr.IO("move", source, err)
	}
	f.logger.Debug("storage: moved",
		slog.Int64("vault_id", id),
		slog.String("from", source),
		slog.String("to", out))
	return out, nil
}

// renameIfAbsent renames oldpath to newpath unless newpath exists. The check
// and the rename are separate calls.
func renameIfAbsent(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	}
	return os.Rename(oldpath, newpath)
}
