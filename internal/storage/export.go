package storage

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/zip"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/filetype"
)

type exportEntry struct {
	abs     string
	name    string
	dir     bool
	modTime time.Time
}

// Export writes the vault as a ZIP archive to w. Entry names are vault paths
// without the leading slash; folders are stored as "name/" entries. Entries
// come in scan order, and entries hidden from scans are left out.
func (f *FS) Export(id int64, w io.Writer) error {
	root := f.Root(id)
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.New(apperr.ErrNotFound, "export", "/", err)
		}
		return apperr.IO("export", "/", err)
	}

	var (
		mu      sync.Mutex
		entries []exportEntry
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if f.skip(d.Name(), rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mu.Lock()
		entries = append(entries, exportEntry{abs: p, name: rel, dir: d.IsDir(), modTime: info.ModTime()})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return apperr.IO("export", "/", err)
	}

	slices.SortFunc(entries, compareExport)

	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := addToZip(zw, e); err != nil {
			return apperr.IO("export", "/"+e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return apperr.IO("export", "/", err)
	}
	return nil
}

// compareExport orders entries as a depth-first walk of the scanned tree:
// a folder comes right before its contents, siblings in scan order.
func compareExport(a, b exportEntry) int {
	as, bs := strings.Split(a.name, "/"), strings.Split(b.name, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		aDir, bDir := i < len(as)-1 || a.dir, i < len(bs)-1 || b.dir
		aKey, bKey := as[i], bs[i]
		if !aDir {
			aKey, _ = filetype.SplitExt(aKey)
		}
		if !bDir {
			bKey, _ = filetype.SplitExt(bKey)
		}
		if c := compareEntries(aKey, aDir, bKey, bDir); c != 0 {
			return c
		}
		return strings.Compare(as[i], bs[i])
	}
	return len(as) - len(bs)
}

func addToZip(zw *zip.Writer, e exportEntry) error {
	hdr := &zip.FileHeader{Name: e.name, Modified: e.modTime}
	if e.dir {
		hdr.Name += "/"
		_, err := zw.CreateHeader(hdr)
		return err
	}
	hdr.Method = zip.Deflate
	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	src, err := os.Open(e.abs)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}
