// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/docvault/internal/storage"
)

// Server wraps the MCP server with vault tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
}

func vaultIDOption() mcp.ToolOption {
	return mcp.WithNumber("vault_id", mcp.Required(), mcp.Description("Numeric vault (project) id"))
}

// New creates a new MCP server with all vault tools registered.
func New(store storage.Provider) *Server {
	s := &Server{store: store}

	s.mcp = server.NewMCPServer(
		"docvault",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scan_vault",
		mcp.WithDescription("Return the vault as a JSON tree. Folders come first; hidden folders after the others."),
		vaultIDOption(),
	), s.scanVault)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a UTF-8 text file from the vault."),
		vaultIDOption(),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path (e.g. /docs/note.md)")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Create or replace a text file. Missing parent folders are created."),
		vaultIDOption(),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the file")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New file content")),
	), s.writeFile)

	s.mcp.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create a folder and any missing parents."),
		vaultIDOption(),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the folder")),
	), s.createFolder)

	s.mcp.AddTool(mcp.NewTool("copy_item",
		mcp.WithDescription("Copy a file or folder into a folder. A taken name gets a copy suffix."),
		vaultIDOption(),
		mcp.WithString("source", mcp.Required(), mcp.Description("Vault path of the entry to copy")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Destination folder")),
	), s.copyItem)

	s.mcp.AddTool(mcp.NewTool("move_item",
		mcp.WithDescription("Move a file or folder into a folder. Fails if the name is taken there."),
		vaultIDOption(),
		mcp.WithString("source", mcp.Required(), mcp.Description("Vault path of the entry to move")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Destination folder")),
	), s.moveItem)

	s.mcp.AddTool(mcp.NewTool("rename_item",
		mcp.WithDescription("Rename or relocate an entry to an exact path."),
		vaultIDOption(),
		mcp.WithString("from", mcp.Required(), mcp.Description("Current vault path")),
		mcp.WithString("to", mcp.Required(), mcp.Description("New vault path")),
	), s.renameItem)

	s.mcp.AddTool(mcp.NewTool("delete_item",
		mcp.WithDescription("Delete a file, or a folder with everything in it. Deleting a missing path succeeds."),
		vaultIDOption(),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path to delete")),
	), s.deleteItem)

	s.mcp.AddTool(mcp.NewTool("file_info",
		mcp.WithDescription("Describe a file: name without extension, type, extension and size."),
		vaultIDOption(),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the file")),
	), s.fileInfo)

	s.mcp.AddTool(mcp.NewTool("save_attachment",
		mcp.WithDescription("Store a base64 payload (or data: URI) under .attachments and return the path to embed."),
		vaultIDOption(),
		mcp.WithString("data", mcp.Required(), mcp.Description("Base64 content or a data: URI")),
		mcp.WithString("filename", mcp.Description("Plain file name; generated when empty")),
	), s.saveAttachment)

	s.mcp.AddTool(mcp.NewTool("get_vault_layout",
		mcp.WithDescription("Returns the vault path and naming conventions. Call this before changing files."),
	), s.getVaultLayout)

	s.mcp.AddResource(
		mcp.NewResource("docvault://layout", "Vault Layout",
			mcp.WithResourceDescription("Path conventions shared by every vault tool."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func vaultID(req mcp.CallToolRequest) (int64, error) {
	id, err := req.RequireInt("vault_id")
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, fmt.Errorf("vault_id must not be negative")
	}
	return int64(id), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) scanVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := vaultID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nodes, err := s.store.Scan(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(nodes)
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := vaultID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.store.ReadText(id, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) writeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := vaultID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.WriteText(id, path, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, _ := storage.Normalize(path)
	return mcp.NewToolResultText(fmt.Sprintf("written: %s", p)), nil
}

func (s *Server) createFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := vaultID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.CreateFolder(id, path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, _ := storage.Normalize(path)
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", p)), nil
}

// transfer runs copy or move, which share their arguments.
func (s *Server) transfer(req mcp.CallToolRequest, op func(int64, string, string) (string, error)) (*mcp.CallToolResult, error) {
	id, err := vaultID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := op(id, source, target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(p), nil
}

func (s *Server) copyItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.transfer(req, s.store.Copy)
}

func (s *Server) moveItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.transfer(req, s.store.Move)
}

func (s *Server) renameItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := vaultID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Rename(id, from, to); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, _ := storage.Normalize(to)
	return mcp.NewToolResultText(p), nil
}

func (s *Server) deleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := vaultID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Delete(id, path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, _ := storage.Normalize(path)
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", p)), nil
}

func (s *Server) fileInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := vaultID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fd, err := s.store.FileInfo(id, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(fd)
}

func (s *Server) getVaultLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LayoutContract), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "docvault://layout",
			MIMEType: "text/markdown",
			Text:     LayoutContract,
		},
	}, nil
}
