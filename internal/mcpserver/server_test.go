package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/storage"
	"github.com/starford/docvault/internal/testutil"
)

func testServer(t *testing.T) (*Server, *storage.FS) {
	t.Helper()
	store := testutil.TestStore(t)
	return New(store), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so we call the
	// handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "scan_vault":
		result, err = srv.scanVault(ctx, req)
	case "read_file":
		result, err = srv.readFile(ctx, req)
	case "write_file":
		result, err = srv.writeFile(ctx, req)
	case "create_folder":
		result, err = srv.createFolder(ctx, req)
	case "copy_item":
		result, err = srv.copyItem(ctx, req)
	case "move_item":
		result, err = srv.moveItem(ctx, req)
	case "rename_item":
		result, err = srv.renameItem(ctx, req)
	case "delete_item":
		result, err = srv.deleteItem(ctx, req)
	case "file_info":
		result, err = srv.fileInfo(ctx, req)
	case "save_attachment":
		result, err = srv.saveAttachment(ctx, req)
	case "get_vault_layout":
		result, err = srv.getVaultLayout(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestWriteAndReadFile(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "write_file", map[string]any{
		"vault_id": float64(1),
		"path":     "docs/test.md",
		"content":  "# Test\nHello",
	})
	if text := resultText(r); text != "written: /docs/test.md" {
		t.Errorf("write result = %q", text)
	}

	r = callTool(t, srv, "read_file", map[string]any{"vault_id": float64(1), "path": "/docs/test.md"})
	if text := resultText(r); text != "# Test\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadFileMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_file", map[string]any{"vault_id": float64(1), "path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing file")
	}
}

func TestMissingVaultID(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_file", map[string]any{"path": "a.md"})
	if !r.IsError {
		t.Error("expected error without vault_id")
	}
}

func TestTraversalRejected(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "write_file", map[string]any{
		"vault_id": float64(1),
		"path":     "../escape.md",
		"content":  "x",
	})
	if !r.IsError {
		t.Error("expected error for traversal")
	}
}

func TestScanVault(t *testing.T) {
	srv, store := testServer(t)
	_ = store.WriteText(2, "b.md", "b")
	_ = store.CreateFolder(2, "A")

	r := callTool(t, srv, "scan_vault", map[string]any{"vault_id": float64(2)})
	var nodes []models.Node
	if err := json.Unmarshal([]byte(resultText(r)), &nodes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var paths []string
	for _, n := range nodes {
		paths = append(paths, n.Path)
	}
	if got := strings.Join(paths, ","); got != "/A,/.attachments,/b.md" {
		t.Errorf("paths = %s", got)
	}
}

func TestCopyMoveRenameDelete(t *testing.T) {
	srv, store := testServer(t)
	_ = store.WriteText(1, "note.md", "x")

	r := callTool(t, srv, "copy_item", map[string]any{"vault_id": float64(1), "source": "note.md", "target": "/"})
	if text := resultText(r); text != "/note 副本.md" {
		t.Errorf("copy = %q", text)
	}

	r = callTool(t, srv, "move_item", map[string]any{"vault_id": float64(1), "source": "/note 副本.md", "target": "old"})
	if text := resultText(r); text != "/old/note 副本.md" {
		t.Errorf("move = %q", text)
	}

	_ = store.WriteText(1, "old/note.md", "taken")
	r = callTool(t, srv, "move_item", map[string]any{"vault_id": float64(1), "source": "note.md", "target": "old"})
	if !r.IsError {
		t.Error("expected conflict error")
	}

	r = callTool(t, srv, "rename_item", map[string]any{"vault_id": float64(1), "from": "old", "to": "archive"})
	if text := resultText(r); text != "/archive" {
		t.Errorf("rename = %q", text)
	}

	r = callTool(t, srv, "delete_item", map[string]any{"vault_id": float64(1), "path": "archive"})
	if text := resultText(r); text != "deleted: /archive" {
		t.Errorf("delete = %q", text)
	}
	if _, err := store.FileInfo(1, "archive/note.md"); err == nil {
		t.Error("archive still present")
	}
}

func TestCreateFolderAndFileInfo(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "create_folder", map[string]any{"vault_id": float64(3), "path": "a/b"})
	if text := resultText(r); text != "created: /a/b" {
		t.Errorf("create folder = %q", text)
	}

	_ = store.WriteText(3, "a/b/Readme.MD", "hello")
	r = callTool(t, srv, "file_info", map[string]any{"vault_id": float64(3), "path": "a/b/Readme.MD"})
	var fd models.FileDescriptor
	if err := json.Unmarshal([]byte(resultText(r)), &fd); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fd.Filename != "Readme" || fd.Ext != "MD" || fd.FileType != "markdown" || fd.Size != 5 {
		t.Errorf("file info = %+v", fd)
	}
}

func TestSaveAttachment(t *testing.T) {
	srv, store := testServer(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	encoded := base64.StdEncoding.EncodeToString(png)

	r := callTool(t, srv, "save_attachment", map[string]any{
		"vault_id": float64(1),
		"data":     encoded,
		"filename": "logo.png",
	})
	var res attachmentResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	if res.SavedPath != ".attachments/logo.png" || res.MarkdownImage != "![logo.png](.attachments/logo.png)" {
		t.Errorf("result = %+v", res)
	}
	if data, err := store.ReadBinary(1, res.SavedPath); err != nil || string(data) != string(png) {
		t.Errorf("stored = %q, %v", data, err)
	}

	// Data URI without a file name gets a generated one.
	r = callTool(t, srv, "save_attachment", map[string]any{
		"vault_id": float64(1),
		"data":     "data:image/png;base64," + encoded,
	})
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	if !strings.HasPrefix(res.SavedPath, ".attachments/") || !strings.HasSuffix(res.SavedPath, ".png") {
		t.Errorf("generated path = %q", res.SavedPath)
	}
}

func TestSaveAttachmentInvalid(t *testing.T) {
	srv, _ := testServer(t)
	for _, args := range []map[string]any{
		{"vault_id": float64(1), "data": "not base64!"},
		{"vault_id": float64(1), "data": "data:image/png,raw"},
		{"vault_id": float64(1), "data": "eA==", "filename": "../x.png"},
	} {
		if r := callTool(t, srv, "save_attachment", args); !r.IsError {
			t.Errorf("args %v: expected error", args)
		}
	}
}

func TestVaultLayout(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_vault_layout", map[string]any{})
	if !strings.Contains(resultText(r), ".attachments/") {
		t.Error("layout does not mention .attachments")
	}
}
