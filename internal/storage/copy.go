package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charlievieth/fastwalk"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/filetype"
)

// maxCopyAttempts bounds the search for a free copy name.
const maxCopyAttempts = 10000

// Copy copies the file or folder at source into folder and returns the vault
// path of the copy. When the name is taken, the copy is named
// "<stem> <suffix><.ext>", then "<stem> <suffix> 2<.ext>" and so on. Each
// candidate is claimed with an exclusive create, so an entry that appears
// concurrently is never overwritten.
func (f *FS) Copy(id int64, source, folder string) (string, error) {
	src, err := f.entry(id, "copy", source)
	if err != nil {
		return "", err
	}
	dir, err := f.Resolve(id, folder)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.New(apperr.ErrNotFound, "copy", source, err)
		}
		return "", apperr.IO("copy", source, err)
	}
	if info.IsDir() && within(src, dir) {
		return "", apperr.IO("copy", source, errors.New("destination is inside the source folder"))
	}
	if err := f.Init(id); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.IO("copy", folder, err)
	}

	name := filepath.Base(src)
	stem, ext := name, ""
	if !info.IsDir() {
		stem, _ = filetype.SplitExt(name)
		ext = name[len(stem):]
	}

	for n := 0; n < maxCopyAttempts; n++ {
		candidate := name
		if n > 0 {
			candidate = f.copyName(stem, ext, n)
		}
		dst := filepath.Join(dir, candidate)

		if info.IsDir() {
			err = os.Mkdir(dst, 0o755)
		} else {
			err = copyFile(src, dst, info.Mode().Perm(), true)
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err == nil && info.IsDir() {
			err = copyTree(src, dst)
		}
		if err != nil {
			return "", apperr.IO("copy", source, err)
		}

		out := f.vaultPath(id, dst)
		f.logger.Debug("storage: copied",
			slog.Int64("vault_id", id),
			slog.String("from", source),
			slog.String("to", out))
		return out, nil
	}
	return "", apperr.IO("copy", source, fmt.Errorf("no free name after %d attempts", maxCopyAttempts))
}

func (f *FS) copyName(stem, ext string, n int) string {
	if n == 1 {
		return stem + " " + f.copySuffix + ext
	}
	return stem + " " + f.copySuffix + " " + strconv.Itoa(n) + ext
}

// copyTree copies the contents of src into the existing directory dst.
// Symlinks are recreated rather than followed; sockets, devices and pipes
// are skipped.
func copyTree(src, dst string) error {
	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == src {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			// Walk callbacks run concurrently; the parent may not exist yet.
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			return copyFile(p, target, info.Mode().Perm(), false)
		default:
			return nil
		}
	})
}
