package handlers

import (
	"fmt"
	"net/http"
	"time"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/service"
)

const maxImportUpload = 10 << 20

// ContentHandler serves tests and questions, and the admin content tools
type ContentHandler struct {
	content  *service.ContentService
	imports  *service.ImportService
	backup   *service.BackupService
	reporter *reporting.Reporter
}

// NewContentHandler creates a new content handler
func NewContentHandler(content *service.ContentService, imports *service.ImportService, backup *service.BackupService, reporter *reporting.Reporter) *ContentHandler {
	return &ContentHandler{content: content, imports: imports, backup: backup, reporter: reporter}
}

// ListTests returns the tests visible to the caller
func (h *ContentHandler) ListTests(w http.ResponseWriter, r *http.Request) {
	module := models.Module(r.URL.Query().Get("module"))
	tests, err := h.content.ListTests(r.Context(), GetUserFromContext(r.Context()), module)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, tests)
}

// GetTest returns a test with its questions
func (h *ContentHandler) GetTest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	test, err := h.content.GetTest(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, test)
}

// CreateTest adds a test
func (h *ContentHandler) CreateTest(w http.ResponseWriter, r *http.Request) {
	var in service.TestInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	test, err := h.content.CreateTest(r.Context(), GetUserFromContext(r.Context()), in)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusCreated, test)
}

// UpdateTest replaces a test's fields
func (h *ContentHandler) UpdateTest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	var in service.TestInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	test, err := h.content.UpdateTest(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, test)
}

// DeleteTest removes a test
func (h *ContentHandler) DeleteTest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	if err := h.content.DeleteTest(r.Context(), GetUserFromContext(r.Context()), id); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateQuestion adds one question, or several when the body is an array
func (h *ContentHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	testID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	var body jsonOneOrMany[service.QuestionInput]
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	actor := GetUserFromContext(r.Context())
	if !body.many {
		q, err := h.content.CreateQuestion(r.Context(), actor, testID, body.items[0])
		if err != nil {
			respondError(w, r, h.reporter, err)
			return
		}
		respondJSON(w, http.StatusCreated, q)
		return
	}

	questions, err := h.content.CreateQuestions(r.Context(), actor, testID, body.items)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusCreated, questions)
}

// UpdateQuestion replaces a question's fields
func (h *ContentHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	var in service.QuestionInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	q, err := h.content.UpdateQuestion(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// DeleteQuestion removes a question
func (h *ContentHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	if err := h.content.DeleteQuestion(r.Context(), GetUserFromContext(r.Context()), id); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportQuestions loads questions from an uploaded CSV, XLSX or JSON file
func (h *ContentHandler) ImportQuestions(w http.ResponseWriter, r *http.Request) {
	testID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, h.reporter, apperr.Validation("A file upload is required", apperr.FieldError{Field: "file", Message: err.Error()}))
		return
	}
	defer file.Close()

	result, err := h.imports.ImportQuestions(r.Context(), GetUserFromContext(r.Context()), testID, header.Filename, file)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// ExportContent downloads every test and question as a JSON backup
func (h *ContentHandler) ExportContent(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("ieltsprep-content-%s.json", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if _, err := h.backup.ExportToWriter(r.Context(), w); err != nil {
		// headers may already be sent, so only log
		h.reporter.Error("content export failed", err, nil)
	}
}

// ImportContent restores a JSON backup. clear=true replaces existing content.
func (h *ContentHandler) ImportContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportUpload)
	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, h.reporter, apperr.Validation("A file upload is required", apperr.FieldError{Field: "file", Message: err.Error()}))
		return
	}
	defer file.Close()

	replace := r.FormValue("clear") == "true"
	stats, err := h.backup.ImportFromReader(r.Context(), file, replace)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
