// Package storage implements the per-project document vaults on local disk.
package storage

import (
	"io"

	"github.com/starford/docvault/internal/models"
)

// Provider is the interface for vault file operations. Every path argument
// except Import's source is vault-relative.
type Provider interface {
	// Root returns the absolute root directory of a vault.
	Root(id int64) string
	// AttachmentsPath returns the absolute .attachments directory of a vault.
	AttachmentsPath(id int64) string
	// AbsPath resolves a vault-relative path to an absolute, sandboxed path.
	AbsPath(id int64, rel string) (string, error)

	// Init creates the vault root and its .attachments directory.
	Init(id int64) error
	// Scan returns the ordered tree of the vault.
	Scan(id int64) ([]models.Node, error)
	// CreateFolder creates a folder and any missing ancestors.
	CreateFolder(id int64, rel string) error
	// Import copies an external file into folder under its original name.
	Import(id int64, source, folder string) (*models.FileDescriptor, error)
	// Rename renames oldPath to newPath, creating newPath's parents.
	Rename(id int64, oldPath, newPath string) error
	// Delete removes a file or folder; deleting an absent path succeeds.
	Delete(id int64, rel string) error
	// ReadText returns the contents of a UTF-8 text file.
	ReadText(id int64, rel string) (string, error)
	// ReadBinary returns the raw contents of a file.
	ReadBinary(id int64, rel string) ([]byte, error)
	// WriteText replaces the contents of a text file.
	WriteText(id int64, rel, content string) error
	// WriteBinary replaces the contents of a file.
	WriteBinary(id int64, rel string, data []byte) error
	// Copy copies an entry into folder, renaming on collision.
	Copy(id int64, source, folder string) (string, error)
	// Move moves an entry into folder, refusing to overwrite.
	Move(id int64, source, folder string) (string, error)
	// FileInfo describes a single file.
	FileInfo(id int64, rel string) (*models.FileDescriptor, error)
	// SaveAttachment stores a blob under .attachments and returns its vault path.
	SaveAttachment(id int64, filename string, data []byte) (string, error)
	// Export writes the whole vault as a ZIP archive.
	Export(id int64, w io.Writer) error
	// Reveal shows an existing entry in the platform file manager.
	Reveal(id int64, rel string, r Revealer) error
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
