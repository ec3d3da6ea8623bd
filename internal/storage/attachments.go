package storage

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/starford/docvault/internal/apperr"
)

// SaveAttachment writes data to .attachments/<filename>, replacing any
// attachment of the same name, and returns the vault path to embed in
// document content. An empty filename is replaced by a random name with the
// extension detected from data.
func (f *FS) SaveAttachment(id int64, filename string, data []byte) (string, error) {
	if filename == "" {
		filename = uuid.NewString() + mimetype.Detect(data).Extension()
	}
	if !plainName(filename) {
		return "", apperr.New(apperr.ErrInvalidPath, "save attachment", filename, nil)
	}
	if err := f.Init(id); err != nil {
		return "", err
	}
	if err := writeAtomic(filepath.Join(f.AttachmentsPath(id), filename), data); err != nil {
		return "", apperr.IO("save attachment", filename, err)
	}
	f.logger.Debug("storage: attachment saved",
		slog.Int64("vault_id", id),
		slog.String("filename", filename),
		slog.Int("size", len(data)))
	return AttachmentsDir + "/" + filename, nil
}

// plainName reports whether name is a single path element.
func plainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") || strings.ContainsRune(name, filepath.Separator) {
		return false
	}
	return filepath.VolumeName(name) == ""
}
