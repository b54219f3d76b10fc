package handlers

import (
	"errors"
	"net/http"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/media"
	"ieltsprep/internal/reporting"
)

// MediaHandler accepts audio uploads and serves stored audio
type MediaHandler struct {
	store     *media.Store
	maxUpload int64
	reporter  *reporting.Reporter
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(store *media.Store, maxUpload int64, reporter *reporting.Reporter) *MediaHandler {
	return &MediaHandler{store: store, maxUpload: maxUpload, reporter: reporter}
}

// UploadAudio stores a multipart "file" field and returns its stored name
func (h *MediaHandler) UploadAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, h.reporter, apperr.Validation("An audio file is required", apperr.FieldError{Field: "file", Message: err.Error()}))
		return
	}
	defer file.Close()

	name, err := h.store.Save(file, header.Filename)
	switch {
	case errors.Is(err, media.ErrUnsupportedType):
		respondError(w, r, h.reporter, apperr.Validation("Unsupported audio format", apperr.FieldError{Field: "file", Message: "must be mp3, wav, webm, m4a or ogg"}))
		return
	case errors.Is(err, media.ErrTooLarge):
		respondJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Audio file is too large", Kind: apperr.KindValidation.String()})
		return
	case err != nil:
		respondError(w, r, h.reporter, err)
		return
	}

	contentType, _ := media.ContentType(name)
	respondJSON(w, http.StatusCreated, map[string]string{"audioPath": name, "contentType": contentType})
}

// ServeAudio streams a stored audio file
func (h *MediaHandler) ServeAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := h.store.Path(name)
	if err != nil || !h.store.Exists(name) {
		respondError(w, r, h.reporter, apperr.NotFound("Audio file"))
		return
	}
	if contentType, ok := media.ContentType(name); ok {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, path)
}
