package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/starford/docvault/internal/checksum"
	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/storage"
	"github.com/starford/docvault/internal/testutil"
)

type fakeOpener struct{ opened []string }

func (f *fakeOpener) Open(abs string) error {
	f.opened = append(f.opened, abs)
	return nil
}

// testEnv sets up a temp vault store and router for testing.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*storage.FS, http.Handler) {
	t.Helper()
	store, router, _ := testEnvFull(t, authToken != "", authToken, nil)
	return store, router
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*storage.FS, http.Handler, *fakeOpener) {
	t.Helper()
	store := testutil.TestStore(t)
	opener := &fakeOpener{}
	router := NewRouter(store, opener, authEnabled, authToken, nil, sseHandler)
	return store, router, opener
}

// importEnv sets up a store and an unauthenticated router that imports from
// below roots.
func importEnv(t *testing.T, roots ...string) (*storage.FS, http.Handler) {
	t.Helper()
	store := testutil.TestStore(t)
	return store, NewRouter(store, &fakeOpener{}, false, "", roots, nil)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestInitAndGetVault(t *testing.T) {
	store, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/vaults/3/init", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("init = %d, body = %s", w.Code, w.Body.String())
	}
	info := decodeBody[VaultInfo](t, w)
	if info.Root != store.Root(3) || info.Attachments != store.AttachmentsPath(3) {
		t.Errorf("info = %+v", info)
	}
	if _, err := os.Stat(store.AttachmentsPath(3)); err != nil {
		t.Errorf("attachments dir missing: %v", err)
	}

	w = do(t, router, http.MethodGet, "/vaults/3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	if got := decodeBody[VaultInfo](t, w); got != info {
		t.Errorf("get = %+v, want %+v", got, info)
	}
}

func TestInvalidVaultID(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/vaults/abc/tree", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestTree(t *testing.T) {
	store, router := testEnv(t, "")

	// Missing vault scans as empty.
	w := do(t, router, http.MethodGet, "/vaults/1/tree", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tree = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"nodes":[]`) {
		t.Errorf("body = %s, want empty nodes", w.Body.String())
	}

	_ = store.WriteText(1, "docs/a.md", "a")
	w = do(t, router, http.MethodGet, "/vaults/1/tree", nil)
	tree := decodeBody[TreeResponse](t, w)
	if len(tree.Nodes) != 2 || tree.Nodes[0].Path != "/docs" || tree.Nodes[1].Path != "/.attachments" {
		t.Fatalf("nodes = %+v", tree.Nodes)
	}
	if got := tree.Nodes[0].Children; len(got) != 1 || got[0].Path != "/docs/a.md" {
		t.Errorf("children = %+v", got)
	}
}

func TestWriteAndReadText(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/vaults/1/files/docs/note.md", WriteTextRequest{Content: "# Hello"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("write = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/vaults/1/files/docs/note.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read = %d", w.Code)
	}
	got := decodeBody[TextResponse](t, w)
	sum := checksum.Sum([]byte("# Hello"))
	if got.Path != "/docs/note.md" || got.Content != "# Hello" || got.Checksum != sum {
		t.Errorf("read = %+v", got)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+sum+`"` {
		t.Errorf("ETag = %q", etag)
	}
}

func TestReadTextEncodedSlash(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.WriteText(1, "docs/a.md", "a")

	w := do(t, router, http.MethodGet, "/vaults/1/files/docs%2Fa.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestReadTextErrors(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.WriteBinary(1, "bin.dat", []byte{0xff, 0xfe})

	cases := []struct {
		target string
		status int
	}{
		{"/vaults/1/files/missing.md", http.StatusNotFound},
		{"/vaults/1/files/bin.dat", http.StatusUnprocessableEntity},
		{"/vaults/1/files/a/..%2F..%2Fsecret", http.StatusBadRequest},
	}
	for _, c := range cases {
		w := do(t, router, http.MethodGet, c.target, nil)
		if w.Code != c.status {
			t.Errorf("GET %s = %d, want %d", c.target, w.Code, c.status)
		}
		if !strings.Contains(w.Body.String(), `"error"`) {
			t.Errorf("GET %s body = %s, want error field", c.target, w.Body.String())
		}
	}
}

func TestWriteText_IfMatch(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.WriteText(1, "lock.md", "v1")

	req := httptest.NewRequest(http.MethodPut, "/vaults/1/files/lock.md", strings.NewReader(`{"content":"v2"}`))
	req.Header.Set("If-Match", `"wrong"`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match = %d, want 409", w.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/vaults/1/files/lock.md", strings.NewReader(`{"content":"v2"}`))
	req.Header.Set("If-Match", `"`+checksum.Sum([]byte("v1"))+`"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("fresh If-Match = %d, want 204", w.Code)
	}
	if content, _ := store.ReadText(1, "lock.md"); content != "v2" {
		t.Errorf("content = %q, want v2", content)
	}
}

func TestRawRoundTrip(t *testing.T) {
	_, router := testEnv(t, "")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	w := do(t, router, http.MethodPut, "/vaults/2/raw/img/logo.png", png)
	if w.Code != http.StatusNoContent {
		t.Fatalf("write = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/vaults/2/raw/img/logo.png", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), png) {
		t.Errorf("body mismatch")
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	req := httptest.NewRequest(http.MethodGet, "/vaults/2/raw/img/logo.png", nil)
	req.Header.Set("If-None-Match", w.Header().Get("ETag"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("If-None-Match = %d, want 304", w.Code)
	}
}

func TestFolderCopyMoveRenameDelete(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.WriteText(1, "note.md", "hello")

	w := do(t, router, http.MethodPost, "/vaults/1/folders", PathRequest{Path: "archive/2024"})
	if w.Code != http.StatusCreated {
		t.Fatalf("folder = %d", w.Code)
	}
	if got := decodeBody[PathResponse](t, w).Path; got != "/archive/2024" {
		t.Errorf("folder path = %q", got)
	}

	w = do(t, router, http.MethodPost, "/vaults/1/copy", TransferRequest{Source: "/note.md", Target: "/"})
	if w.Code != http.StatusCreated {
		t.Fatalf("copy = %d, body = %s", w.Code, w.Body.String())
	}
	copied := decodeBody[PathResponse](t, w).Path
	if copied != "/note 副本.md" {
		t.Errorf("copy path = %q", copied)
	}

	w = do(t, router, http.MethodPost, "/vaults/1/move", TransferRequest{Source: copied, Target: "/archive"})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	moved := decodeBody[PathResponse](t, w).Path
	if moved != "/archive/note 副本.md" {
		t.Errorf("move path = %q", moved)
	}

	w = do(t, router, http.MethodPost, "/vaults/1/rename", RenameRequest{From: moved, To: "/archive/renamed.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}
	if content, _ := store.ReadText(1, "archive/renamed.md"); content != "hello" {
		t.Errorf("renamed content = %q", content)
	}

	w = do(t, router, http.MethodDelete, "/vaults/1/items/archive", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	// Deleting again is still a success.
	w = do(t, router, http.MethodDelete, "/vaults/1/items/archive", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("second delete = %d, want 204", w.Code)
	}
}

func TestMoveConflict(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.WriteText(1, "a.md", "src")
	_ = store.WriteText(1, "dst/a.md", "dst")

	w := do(t, router, http.MethodPost, "/vaults/1/move", TransferRequest{Source: "a.md", Target: "dst"})
	if w.Code != http.StatusConflict {
		t.Errorf("move = %d, want 409", w.Code)
	}
}

func TestDeleteRootRejected(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.Init(1)
	w := do(t, router, http.MethodDelete, "/vaults/1/items/", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("delete root = %d, want 400", w.Code)
	}
	if _, err := os.Stat(store.Root(1)); err != nil {
		t.Errorf("root removed: %v", err)
	}
}

func TestImportAndFileInfo(t *testing.T) {
	src := testutil.HostFile(t, "Report.pdf", "%PDF-1.4")
	_, router := importEnv(t, filepath.Dir(src))

	w := do(t, router, http.MethodPost, "/vaults/1/import", TransferRequest{Source: src, Target: "/inbox"})
	if w.Code != http.StatusCreated {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	fd := decodeBody[FileDescriptor](t, w)
	want := models.FileDescriptor{Filename: "Report", FileType: "pdf", Ext: "pdf", Size: 8}
	if fd != want {
		t.Errorf("import = %+v, want %+v", fd, want)
	}

	w = do(t, router, http.MethodGet, "/vaults/1/info/inbox/Report.pdf", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("info = %d", w.Code)
	}
	if got := decodeBody[FileDescriptor](t, w); got != want {
		t.Errorf("info = %+v, want %+v", got, want)
	}

	w = do(t, router, http.MethodPost, "/vaults/1/import", TransferRequest{Source: src + ".missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("import missing = %d, want 404", w.Code)
	}
}

func TestImport_RefusedWithoutAuthOrRoots(t *testing.T) {
	_, router := testEnv(t, "")
	src := testutil.HostFile(t, "host-secret.txt", "TOP-SECRET")

	w := do(t, router, http.MethodPost, "/vaults/1/import", TransferRequest{Source: src, Target: "/"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("import = %d, want 403, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/vaults/1/files/host-secret.txt", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("read after refused import = %d, want 404", w.Code)
	}
}

func TestImport_OutsideRoots(t *testing.T) {
	allowed := t.TempDir()
	secret := testutil.HostFile(t, "id_rsa", "KEY")
	_, router := importEnv(t, allowed)

	link := filepath.Join(allowed, "link.txt")
	if err := os.Symlink(secret, link); err != nil {
		t.Fatal(err)
	}

	for _, src := range []string{
		secret,
		filepath.Join(allowed, "..", filepath.Base(filepath.Dir(secret)), "id_rsa"),
		link,
		"id_rsa",
	} {
		w := do(t, router, http.MethodPost, "/vaults/1/import", TransferRequest{Source: src, Target: "/"})
		if w.Code != http.StatusForbidden {
			t.Errorf("import %q = %d, want 403", src, w.Code)
		}
	}
}

func TestImport_AllowedWithAuth(t *testing.T) {
	_, router := testEnv(t, "tok")
	src := testutil.HostFile(t, "notes.md", "# notes")

	data, _ := json.Marshal(TransferRequest{Source: src, Target: "/inbox"})
	req := httptest.NewRequest(http.MethodPost, "/vaults/1/import", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed import = %d, want 201, body = %s", w.Code, w.Body.String())
	}
}

func TestAbsPath(t *testing.T) {
	store, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/vaults/4/abs/docs/a.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("abs = %d", w.Code)
	}
	want := filepath.Join(store.Root(4), "docs", "a.md")
	if got := decodeBody[AbsPathResponse](t, w).AbsPath; got != want {
		t.Errorf("abs = %q, want %q", got, want)
	}
}

func TestReveal(t *testing.T) {
	store, router, opener := testEnvFull(t, false, "", nil)
	_ = store.WriteText(1, "a.md", "a")

	w := do(t, router, http.MethodPost, "/vaults/1/reveal", PathRequest{Path: "/a.md"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("reveal = %d, body = %s", w.Code, w.Body.String())
	}
	if len(opener.opened) != 1 || opener.opened[0] != filepath.Join(store.Root(1), "a.md") {
		t.Errorf("opened = %v", opener.opened)
	}

	w = do(t, router, http.MethodPost, "/vaults/1/reveal", PathRequest{Path: "/ghost.md"})
	if w.Code != http.StatusNotFound {
		t.Errorf("reveal missing = %d, want 404", w.Code)
	}
}

func TestExport(t *testing.T) {
	store, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/vaults/9/export", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("export missing = %d, want 404", w.Code)
	}

	_ = store.WriteText(9, "docs/a.md", "a")
	w = do(t, router, http.MethodGet, "/vaults/9/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != ".attachments/,docs/,docs/a.md" {
		t.Errorf("entries = %s", got)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/vaults/1/copy", []byte("{"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/vaults/1/tree", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed tree = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/vaults/1/tree", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/vaults/1/tree", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvFull(t, true, "secret", blockingSSE)

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvFull(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

// Attachment tests.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/vaults/1/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAttachment(t *testing.T) {
	store, router := testEnv(t, "")

	w := uploadFile(t, router, "test.png", []byte("fake-png-data"), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeBody[AttachmentResponse](t, w)
	if resp.Path != ".attachments/test.png" || resp.Size != 13 {
		t.Errorf("resp = %+v", resp)
	}

	data, err := os.ReadFile(filepath.Join(store.AttachmentsPath(1), "test.png"))
	if err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
	if string(data) != "fake-png-data" {
		t.Errorf("content mismatch")
	}

	// The served path reads back through the raw endpoint.
	w = do(t, router, http.MethodGet, "/vaults/1/raw/"+url.PathEscape(resp.Path), nil)
	if w.Code != http.StatusOK || w.Body.String() != "fake-png-data" {
		t.Errorf("raw read = %d %q", w.Code, w.Body.String())
	}
}

func TestUploadAttachment_FilenameField(t *testing.T) {
	_, router := testEnv(t, "")

	w := uploadFile(t, router, "upload.bin", []byte("x"), map[string]string{"filename": "a/b.png"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("nested filename = %d, want 400", w.Code)
	}

	w = uploadFile(t, router, "upload.bin", []byte("x"), map[string]string{"filename": "renamed.txt"})
	if w.Code != http.StatusCreated {
		t.Fatalf("renamed upload = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decodeBody[AttachmentResponse](t, w).Path; got != ".attachments/renamed.txt" {
		t.Errorf("path = %q", got)
	}
}

func TestUploadAttachment_GeneratedName(t *testing.T) {
	store, router := testEnv(t, "")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	w := uploadFile(t, router, "clipboard.bin", png, map[string]string{"filename": ""})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	got := decodeBody[AttachmentResponse](t, w).Path
	if !regexp.MustCompile(`^\.attachments/[0-9a-f-]{36}\.png$`).MatchString(got) {
		t.Errorf("path = %q, want .attachments/<uuid>.png", got)
	}
	if _, err := os.Stat(filepath.Join(store.Root(1), filepath.FromSlash(got))); err != nil {
		t.Errorf("generated attachment missing: %v", err)
	}
}

func TestUploadAttachment_AuthProtected(t *testing.T) {
	_, router := testEnv(t, "secret")

	w := uploadFile(t, router, "x.png", []byte("data"), nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

func TestUploadAttachment_MissingFileField(t *testing.T) {
	_, router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/vaults/1/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}
