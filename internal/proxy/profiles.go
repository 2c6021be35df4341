package proxy

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vnmchuo/quill/internal/apperr"
	"github.com/vnmchuo/quill/internal/attachment"
	"github.com/vnmchuo/quill/internal/logger"
	"github.com/vnmchuo/quill/internal/profile"
)

// uploadMemory is how much of a multipart body is held in memory before spilling to
// temporary files.
const uploadMemory = 8 << 20

type upsertProfileRequest struct {
	ProfileID string           `json:"profileId"`
	Profile   *profile.Profile `json:"profile"`
}

type namedProfileRequest struct {
	Name string `json:"name"`
}

type activeProfileRequest struct {
	ProfileID string `json:"profileId"`
}

func (h *Handler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.profiles.List())
}

func (h *Handler) HandleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var body upsertProfileRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.ProfileID == "" || body.Profile == nil {
		writeError(w, r, apperr.Validation("profileId and profile are required"))
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "profile.upsert")
	defer span.End()
	span.SetAttributes(attribute.String("profile_id", body.ProfileID))

	if err := h.profiles.Upsert(ctx, body.ProfileID, *body.Profile); err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info(ctx, "profile saved", "profile_id", body.ProfileID)
	writeMessage(w, "profile saved")
}

func (h *Handler) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var body namedProfileRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "profile.create")
	defer span.End()

	id, err := h.profiles.Create(ctx, body.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("profile_id", id))
	logger.Info(ctx, "profile created", "profile_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "profile created", "profileId": id})
}

func (h *Handler) HandleDuplicateProfile(w http.ResponseWriter, r *http.Request) {
	srcID := chi.URLParam(r, "profileId")
	var body namedProfileRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "profile.duplicate")
	defer span.End()
	span.SetAttributes(attribute.String("source_profile_id", srcID))

	id, err := h.profiles.Duplicate(ctx, srcID, body.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info(ctx, "profile duplicated", "source_profile_id", srcID, "profile_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "profile duplicated", "profileId": id})
}

func (h *Handler) HandleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "profileId")

	ctx, span := h.tracer.Start(r.Context(), "profile.delete")
	defer span.End()
	span.SetAttributes(attribute.String("profile_id", id))

	if err := h.profiles.Remove(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info(ctx, "profile deleted", "profile_id", id)
	writeMessage(w, "profile deleted")
}

func (h *Handler) HandleSetActiveProfile(w http.ResponseWriter, r *http.Request) {
	var body activeProfileRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.ProfileID == "" {
		writeError(w, r, apperr.Validation("profileId is required"))
		return
	}

	if err := h.profiles.SetActive(r.Context(), body.ProfileID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "active profile updated")
}

func (h *Handler) HandleUploadDocs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "profileId")

	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, apperr.TooLarge("request body exceeds %d bytes", maxErr.Limit))
			return
		}
		writeError(w, r, apperr.Validation("invalid multipart body"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["docs"]
	if len(files) > h.maxFiles {
		writeError(w, r, apperr.Validation("too many files: at most %d per upload", h.maxFiles))
		return
	}

	uploads, closeAll, err := openUploads(files)
	defer closeAll()
	if err != nil {
		writeError(w, r, apperr.Internal("failed to read upload", err))
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "profile.upload")
	defer span.End()
	span.SetAttributes(attribute.String("profile_id", id), attribute.Int("files", len(uploads)))

	names, err := h.docs.Store(ctx, id, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info(ctx, "documents uploaded", "profile_id", id, "files", names)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("%d file(s) uploaded", len(names)),
		"files":   names,
	})
}

func openUploads(headers []*multipart.FileHeader) ([]attachment.Upload, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	uploads := make([]attachment.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		files = append(files, f)
		uploads = append(uploads, attachment.Upload{Name: fh.Filename, Size: fh.Size, Content: f})
	}
	return uploads, closeAll, nil
}

func (h *Handler) HandleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "profileId")
	filename := chi.URLParam(r, "filename")

	ctx, span := h.tracer.Start(r.Context(), "profile.delete_doc")
	defer span.End()
	span.SetAttributes(attribute.String("profile_id", id), attribute.String("filename", filename))

	if err := h.docs.Remove(ctx, id, filename); err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info(ctx, "document deleted", "profile_id", id, "filename", filename)
	writeMessage(w, "document deleted")
}
