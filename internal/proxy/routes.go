package proxy

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount registers every route on r. JSON routes share one body cap; the upload route
// gets its own, sized for a full batch of documents.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/healthz", HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(LimitBody(DefaultJSONBodyLimit))

		r.Post("/completions/generate", h.HandleGenerate)
		r.Post("/completions/rewrite", h.HandleRewrite)

		r.Get("/budget", h.HandleBudget)
		r.Post("/budget/reset", h.HandleBudgetReset)

		r.Get("/profiles", h.HandleListProfiles)
		r.Post("/profiles", h.HandleUpsertProfile)
		r.Post("/profiles/new", h.HandleCreateProfile)
		r.Post("/profiles/active", h.HandleSetActiveProfile)
		r.Delete("/profiles/{profileId}", h.HandleDeleteProfile)
		r.Post("/profiles/{profileId}/duplicate", h.HandleDuplicateProfile)
		r.Delete("/profiles/{profileId}/docs/{filename}", h.HandleDeleteDoc)
	})

	r.With(LimitBody(h.uploadLimit())).Post("/profiles/{profileId}/upload", h.HandleUploadDocs)
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"quill"}`))
}
