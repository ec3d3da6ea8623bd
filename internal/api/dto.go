package api

import (
	"github.com/starford/docvault/internal/models"
)

// VaultInfo describes where a vault lives on disk.
type VaultInfo struct {
	ID          int64  `json:"id" example:"42" validate:"required"`
	Root        string `json:"root" example:"/var/lib/docvault/42" validate:"required"`
	Attachments string `json:"attachments" example:"/var/lib/docvault/42/.attachments" validate:"required"`
}

// TreeResponse wraps a vault scan.
type TreeResponse struct {
	Nodes []models.Node `json:"nodes" validate:"required"`
}

// PathRequest names a single vault path.
type PathRequest struct {
	Path string `json:"path" example:"/docs/specs" validate:"required"`
}

// PathResponse carries the vault path produced by an operation.
type PathResponse struct {
	Path string `json:"path" example:"/docs/note 副本.md" validate:"required"`
}

// TransferRequest is the body of copy, move and import requests. Target is
// the destination folder.
type TransferRequest struct {
	Source string `json:"source" example:"/docs/note.md" validate:"required"`
	Target string `json:"target" example:"/archive"`
}

// RenameRequest is the body of a rename request.
type RenameRequest struct {
	From string `json:"from" example:"/docs/old.md" validate:"required"`
	To   string `json:"to" example:"/docs/new.md" validate:"required"`
}

// WriteTextRequest is the body of a text write.
type WriteTextRequest struct {
	Content string `json:"content" example:"# Title"`
}

// TextResponse is a text file with its checksum.
type TextResponse struct {
	Path     string `json:"path" example:"/docs/note.md" validate:"required"`
	Content  string `json:"content" example:"# Title"`
	Checksum string `json:"checksum" example:"9f86d081884c7d65..." validate:"required"`
}

// AbsPathResponse carries a resolved host path.
type AbsPathResponse struct {
	AbsPath string `json:"abs_path" example:"/var/lib/docvault/42/docs/note.md" validate:"required"`
}

// FileDescriptor is the file metadata response type (aliased from the domain layer).
type FileDescriptor = models.FileDescriptor
