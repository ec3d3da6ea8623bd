package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docvault/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// importRoots limits the host directories imports read from while auth is
// disabled; with no roots and no auth, imports are refused.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// opener, if non-nil, serves reveal requests.
func NewRouter(store storage.Provider, opener storage.Revealer, authEnabled bool, token string, importRoots []string, sseHandler http.Handler) chi.Router {
	h := NewHandler(store, opener, authEnabled, importRoots)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/vaults/{id}", func(r chi.Router) {
		r.Get("/", h.GetVault)
		r.Post("/init", h.InitVault)
		r.Get("/tree", h.Tree)
		r.Get("/export", h.Export)

		// Entry operations.
		r.Post("/folders", h.CreateFolder)
		r.Post("/import", h.Import)
		r.Post("/rename", h.Rename)
		r.Post("/copy", h.Copy)
		r.Post("/move", h.Move)
		r.Post("/reveal", h.Reveal)
		r.Delete("/items/*", h.DeleteItem)

		// File contents and metadata.
		r.Get("/files/*", h.ReadText)
		r.Put("/files/*", h.WriteText)
		r.Get("/raw/*", h.ReadRaw)
		r.Put("/raw/*", h.WriteRaw)
		r.Get("/info/*", h.FileInfo)
		r.Get("/abs/*", h.AbsPath)

		r.Post("/attachments", h.UploadAttachment)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
