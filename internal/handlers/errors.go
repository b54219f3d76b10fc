package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/reporting"
)

const (
	errInternalServer = "Internal server error"
	errInvalidJSON    = "Invalid JSON body"

	maxJSONBody = 1 << 20
)

// errorResponse is the body of every error reply
type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
	Detail string            `json:"detail,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// respondError converts err to its status and JSON body. 5xx errors are
// logged and reported. Upstream detail is shown to admins only.
func respondError(w http.ResponseWriter, r *http.Request, reporter *reporting.Reporter, err error) {
	status := apperr.HTTPStatus(err)
	user := GetUserFromContext(r.Context())

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
		var userID int64
		if user != nil {
			userID = user.ID
		}
		log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
		reporter.RequestError(r, err, userID)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: errInternalServer, Kind: apperr.KindInternal.String()})
		return
	}

	body := errorResponse{Error: appErr.Message, Kind: appErr.Kind.String()}
	if len(appErr.Fields) > 0 {
		body.Fields = make(map[string]string, len(appErr.Fields))
		for _, f := range appErr.Fields {
			body.Fields[f.Field] = f.Message
		}
	}
	if appErr.Kind == apperr.KindUpstream {
		log.Printf("%s %s upstream failure: %v", r.Method, r.URL.Path, err)
		reporter.RequestError(r, err, 0)
		if user != nil && user.IsAdmin() && appErr.Err != nil {
			body.Detail = appErr.Err.Error()
		}
	}
	respondJSON(w, status, body)
}

// decodeJSON reads a JSON request body into v
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body is required")
		}
		return apperr.Validation(errInvalidJSON, apperr.FieldError{Field: "body", Message: err.Error()})
	}
	return nil
}

// pathID parses a numeric path parameter
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid "+name, apperr.FieldError{Field: name, Message: "must be a positive integer"})
	}
	return id, nil
}

// queryInt parses an optional integer query parameter, 0 when absent
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("Invalid "+name, apperr.FieldError{Field: name, Message: "must be an integer"})
	}
	return n, nil
}
