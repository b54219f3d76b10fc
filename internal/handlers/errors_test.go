package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func TestRespondErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/attempts", nil)

	respondError(recorder, req, reporting.Nop(), apperr.Conflict("Teapot"))

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}

	body := decodeError(t, recorder)
	if body.Error != "Teapot" {
		t.Fatalf("expected error 'Teapot', got %q", body.Error)
	}
}

func TestRespondErrorLogsInternalFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := log.Default()
	originalOutput := logger.Writer()
	logger.SetOutput(&buf)
	defer logger.SetOutput(originalOutput)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/vocabulary/review", nil)

	respondError(recorder, req, reporting.Nop(), errors.New("boom"))

	logOutput := buf.String()
	if !strings.Contains(logOutput, "GET /vocabulary/review") {
		t.Fatalf("expected log to include the request, got %q", logOutput)
	}
	if !strings.Contains(logOutput, "boom") {
		t.Fatalf("expected log to include error, got %q", logOutput)
	}
	if strings.Contains(recorder.Body.String(), "boom") {
		t.Fatalf("internal error leaked to the client: %s", recorder.Body.String())
	}
}

func TestRespondError(t *testing.T) {
	admin := &models.User{ID: 1, Role: models.RoleAdmin}
	student := &models.User{ID: 2, Role: models.RoleTestTaker}
	upstream := apperr.Upstream("Scoring service unavailable", errors.New("status 503"))

	tests := []struct {
		name       string
		user       *models.User
		err        error
		wantStatus int
		wantKind   string
		wantError  string
		wantFields map[string]string
		wantDetail string
	}{
		{
			name:       "validation lists fields",
			err:        apperr.ValidationFields("Invalid input", map[string]string{"email": "invalid email format"}),
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
			wantError:  "Invalid input",
			wantFields: map[string]string{"email": "invalid email format"},
		},
		{
			name:       "not found",
			err:        apperr.NotFound("Test"),
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name:       "conflict",
			err:        apperr.Conflict("An attempt is already in progress"),
			wantStatus: http.StatusConflict,
			wantKind:   "conflict",
			wantError:  "An attempt is already in progress",
		},
		{
			name:       "plain error is hidden",
			err:        errors.New("failed to query: disk I/O error"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   "internal",
			wantError:  errInternalServer,
		},
		{
			name:       "upstream detail for admins",
			user:       admin,
			err:        upstream,
			wantStatus: http.StatusInternalServerError,
			wantKind:   "upstream",
			wantDetail: "status 503",
		},
		{
			name:       "upstream detail hidden from students",
			user:       student,
			err:        upstream,
			wantStatus: http.StatusInternalServerError,
			wantKind:   "upstream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/anything", nil)
			if tt.user != nil {
				req = req.WithContext(context.WithValue(req.Context(), UserContextKey, tt.user))
			}
			rec := httptest.NewRecorder()

			respondError(rec, req, reporting.Nop(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantKind, body.Kind)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body.Error)
			}
			assert.Equal(t, tt.wantFields, body.Fields)
			assert.Equal(t, tt.wantDetail, body.Detail)
			assert.NotContains(t, rec.Body.String(), "disk I/O")
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := decodeJSON(req, &v)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{bad"))
	err = decodeJSON(req, &v)
	require.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, errInvalidJSON, err.(*apperr.Error).Message)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))
	require.NoError(t, decodeJSON(req, &v))
	assert.Equal(t, "ok", v.Name)
}

func TestPathIDAndQueryInt(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"12", 12, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.SetPathValue("id", tt.value)
		got, err := pathID(req, "id")
		if (err != nil) != tt.wantErr {
			t.Errorf("pathID(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("pathID(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/x?limit=5&bad=x", nil)
	n, err := queryInt(req, "limit")
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = queryInt(req, "missing")
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = queryInt(req, "bad")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
