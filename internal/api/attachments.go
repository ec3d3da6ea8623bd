package api

import (
	"io"
	"net/http"
)

const maxUploadBytes = 50 << 20 // 50 MB

// AttachmentResponse is returned after a successful attachment upload.
type AttachmentResponse struct {
	Path string `json:"path" example:".attachments/diagram.png" validate:"required"`
	Size int    `json:"size" example:"12345" validate:"required"`
}

// UploadAttachment handles POST /api/vaults/{id}/attachments
// (multipart/form-data, field "file"). An optional "filename" field
// overrides the name sent with the file; an empty name gets a generated one.
//
//	@Summary		Store an attachment under .attachments
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id			path		int		true	"Vault ID"
//	@Param			file		formData	file	true	"Attachment"
//	@Param			filename	formData	string	false	"Stored name"
//	@Success		201			{object}	AttachmentResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{id}/attachments [post]
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	// A filename field overrides the part's name. Sent empty, it asks the
	// store to generate one.
	name := header.Filename
	if v, ok := r.MultipartForm.Value["filename"]; ok && len(v) > 0 {
		name = v[0]
	}
	p, err := h.store.SaveAttachment(id, name, data)
	if err != nil {
		writeError(w, "save attachment", id, err)
		return
	}
	writeJSON(w, http.StatusCreated, AttachmentResponse{Path: p, Size: len(data)})
}
