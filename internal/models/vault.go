// Package models defines the domain types returned by the vault store.
package models

import "github.com/starford/docvault/internal/filetype"

// Node is one entry of a scanned vault tree. Directories carry a non-nil
// Children slice; files carry type, extension and size.
type Node struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	IsDir    bool          `json:"is_dir"`
	FileType filetype.Type `json:"file_type,omitempty"`
	Ext      string        `json:"ext,omitempty"`
	Size     *int64        `json:"size,omitempty"`
	Children []Node        `json:"children"`
}

// FileDescriptor describes a single file. Filename has the extension
// stripped so it can double as a suggested document title.
type FileDescriptor struct {
	Filename string        `json:"filename"`
	FileType filetype.Type `json:"file_type"`
	Ext      string        `json:"ext"`
	Size     int64         `json:"size"`
}
