package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/starford/docvault/internal/checksum"
	"github.com/starford/docvault/internal/storage"
)

const maxBodyBytes = 50 << 20 // 50 MB

// Handler holds API route handlers.
type Handler struct {
	store   storage.Provider
	opener  storage.Revealer
	imports importPolicy
}

// NewHandler creates a new Handler. opener may be nil, in which case reveal
// requests fail. Without auth, imports only read from below importRoots.
func NewHandler(store storage.Provider, opener storage.Revealer, authEnabled bool, importRoots []string) *Handler {
	return &Handler{
		store:   store,
		opener:  opener,
		imports: importPolicy{authEnabled: authEnabled, roots: importRoots},
	}
}

// vaultID parses the {id} URL parameter and writes a 400 on failure.
func vaultID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid vault id"))
		return 0, false
	}
	return id, true
}

// itemPath extracts the vault path from the wildcard part of the URL.
// Supports encoded slashes from clients (e.g. docs%2Fnote.md).
func itemPath(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func (h *Handler) info(id int64) VaultInfo {
	return VaultInfo{ID: id, Root: h.store.Root(id), Attachments: h.store.AttachmentsPath(id)}
}

// InitVault handles POST /api/vaults/{id}/init.
//
//	@Summary		Create the vault directory and its attachments folder
//	@Tags			vaults
//	@Produce		json
//	@Param			id	path		int	true	"Vault ID"
//	@Success		200	{object}	VaultInfo
//	@Security		BearerAuth
//	@Router			/vaults/{id}/init [post]
func (h *Handler) InitVault(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	if err := h.store.Init(id); err != nil {
		writeError(w, "init vault", id, err)
		return
	}
	writeJSON(w, http.StatusOK, h.info(id))
}

// GetVault handles GET /api/vaults/{id}.
func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.info(id))
}

// Tree handles GET /api/vaults/{id}/tree.
//
//	@Summary		Scan the vault into a sorted tree
//	@Tags			vaults
//	@Produce		json
//	@Param			id	path		int	true	"Vault ID"
//	@Success		200	{object}	TreeResponse
//	@Security		BearerAuth
//	@Router			/vaults/{id}/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	nodes, err := h.store.Scan(id)
	if err != nil {
		writeError(w, "scan", id, err)
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{Nodes: nodes})
}

// CreateFolder handles POST /api/vaults/{id}/folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.CreateFolder(id, req.Path); err != nil {
		writeError(w, "create folder", id, err)
		return
	}
	p, _ := storage.Normalize(req.Path)
	writeJSON(w, http.StatusCreated, PathResponse{Path: p})
}

// Import handles POST /api/vaults/{id}/import.
//
//	@Summary		Copy a host file into a vault folder
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Vault ID"
//	@Param			body	body		TransferRequest	true	"Host file and target folder"
//	@Success		201		{object}	FileDescriptor
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{id}/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source is required"))
		return
	}
	if !h.imports.allows(req.Source) {
		slog.Warn("import refused", slog.Int64("vault_id", id), slog.String("source", req.Source))
		writeJSON(w, http.StatusForbidden, errorBody("import source is not allowed"))
		return
	}
	fd, err := h.store.Import(id, req.Source, req.Target)
	if err != nil {
		writeError(w, "import", id, err)
		return
	}
	writeJSON(w, http.StatusCreated, fd)
}

// Rename handles POST /api/vaults/{id}/rename.
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req RenameRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.Rename(id, req.From, req.To); err != nil {
		writeError(w, "rename", id, err)
		return
	}
	p, _ := storage.Normalize(req.To)
	writeJSON(w, http.StatusOK, PathResponse{Path: p})
}

// Copy handles POST /api/vaults/{id}/copy.
//
//	@Summary		Copy an entry into a folder, renaming on collision
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Vault ID"
//	@Param			body	body		TransferRequest	true	"Source entry and target folder"
//	@Success		201		{object}	PathResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{id}/copy [post]
func (h *Handler) Copy(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.store.Copy(id, req.Source, req.Target)
	if err != nil {
		writeError(w, "copy", id, err)
		return
	}
	writeJSON(w, http.StatusCreated, PathResponse{Path: p})
}

// Move handles POST /api/vaults/{id}/move.
//
//	@Summary		Move an entry into a folder without overwriting
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Vault ID"
//	@Param			body	body		TransferRequest	true	"Source entry and target folder"
//	@Success		200		{object}	PathResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{id}/move [post]
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.store.Move(id, req.Source, req.Target)
	if err != nil {
		writeError(w, "move", id, err)
		return
	}
	writeJSON(w, http.StatusOK, PathResponse{Path: p})
}

// DeleteItem handles DELETE /api/vaults/{id}/items/*.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(id, itemPath(r)); err != nil {
		writeError(w, "delete", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReadText handles GET /api/vaults/{id}/files/*.
//
//	@Summary		Read a UTF-8 text file
//	@Tags			files
//	@Produce		json
//	@Param			id		path		int		true	"Vault ID"
//	@Param			path	path		string	true	"Vault path"
//	@Success		200		{object}	TextResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{id}/files/{path} [get]
func (h *Handler) ReadText(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	rel := itemPath(r)
	content, err := h.store.ReadText(id, rel)
	if err != nil {
		writeError(w, "read text", id, err)
		return
	}
	p, _ := storage.Normalize(rel)
	sum := checksum.Sum([]byte(content))
	w.Header().Set("ETag", checksum.ETag([]byte(content)))
	writeJSON(w, http.StatusOK, TextResponse{Path: p, Content: content, Checksum: sum})
}

// WriteText handles PUT /api/vaults/{id}/files/*. An If-Match header makes
// the write conditional on the current checksum.
//
//	@Summary		Replace a text file
//	@Tags			files
//	@Accept			json
//	@Param			id			path	int					true	"Vault ID"
//	@Param			path		path	string				true	"Vault path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	WriteTextRequest	true	"New content"
//	@Success		204			"Written"
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{id}/files/{path} [put]
func (h *Handler) WriteText(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	rel := itemPath(r)
	var req WriteTextRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.checkIfMatch(w, r, id, rel) {
		return
	}
	if err := h.store.WriteText(id, rel, req.Content); err != nil {
		writeError(w, "write text", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReadRaw handles GET /api/vaults/{id}/raw/*.
func (h *Handler) ReadRaw(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	data, err := h.store.ReadBinary(id, itemPath(r))
	if err != nil {
		writeError(w, "read binary", id, err)
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && checksum.Match(data, inm) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", checksum.ETag(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// WriteRaw handles PUT /api/vaults/{id}/raw/*. The request body is stored
// as is.
func (h *Handler) WriteRaw(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	rel := itemPath(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if !h.checkIfMatch(w, r, id, rel) {
		return
	}
	if err := h.store.WriteBinary(id, rel, data); err != nil {
		writeError(w, "write binary", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkIfMatch compares If-Match against the stored file and writes a 409
// on mismatch. Requests without the header always pass.
func (h *Handler) checkIfMatch(w http.ResponseWriter, r *http.Request, id int64, rel string) bool {
	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		return true
	}
	current, err := h.store.ReadBinary(id, rel)
	if err != nil {
		writeError(w, "read for If-Match", id, err)
		return false
	}
	if !checksum.Match(current, ifMatch) {
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		return false
	}
	return true
}

// FileInfo handles GET /api/vaults/{id}/info/*.
func (h *Handler) FileInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	fd, err := h.store.FileInfo(id, itemPath(r))
	if err != nil {
		writeError(w, "file info", id, err)
		return
	}
	writeJSON(w, http.StatusOK, fd)
}

// AbsPath handles GET /api/vaults/{id}/abs/*.
func (h *Handler) AbsPath(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	abs, err := h.store.AbsPath(id, itemPath(r))
	if err != nil {
		writeError(w, "abs path", id, err)
		return
	}
	writeJSON(w, http.StatusOK, AbsPathResponse{AbsPath: abs})
}

// Reveal handles POST /api/vaults/{id}/reveal.
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if h.opener == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("reveal is not available"))
		return
	}
	if err := h.store.Reveal(id, req.Path, h.opener); err != nil {
		writeError(w, "reveal", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/vaults/{id}/export. Headers are sent with the
// first archive byte, so a failure before that still gets a JSON error.
//
//	@Summary		Download the vault as a ZIP archive
//	@Tags			vaults
//	@Produce		application/zip
//	@Param			id	path	int	true	"Vault ID"
//	@Success		200	"ZIP archive"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{id}/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	zw := &zipResponse{w: w, filename: "vault-" + strconv.FormatInt(id, 10) + ".zip"}
	if err := h.store.Export(id, zw); err != nil {
		if !zw.started {
			writeError(w, "export", id, err)
			return
		}
		slog.Error("export aborted", slog.Int64("vault_id", id), slog.String("error", err.Error()))
	}
}

// zipResponse delays the response headers until the archive has content.
type zipResponse struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (z *zipResponse) Write(p []byte) (int, error) {
	if !z.started {
		z.started = true
		z.w.Header().Set("Content-Type", "application/zip")
		z.w.Header().Set("Content-Disposition", `attachment; filename="`+z.filename+`"`)
		z.w.WriteHeader(http.StatusOK)
	}
	return z.w.Write(p)
}
