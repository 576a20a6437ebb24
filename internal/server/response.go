package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/me/ksched/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil, nil)
}

// respondList writes a success response with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, opts model.ListOptions, total int) {
	respondJSON(w, http.StatusOK, reqID, data, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	}, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, nil, apiErr)
}

// respondInternal reports an unexpected failure as a 500.
func respondInternal(w http.ResponseWriter, reqID string, err error) {
	respondError(w, reqID, http.StatusInternalServerError,
		&model.APIError{Code: model.ErrInternal, Message: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination, apiErr *model.APIError) {
	resp := model.Response{
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func routeNotFound(path string) *model.APIError {
	return &model.APIError{Code: model.ErrNotFound, Message: "no route for " + path}
}

// listOptions parses limit, offset and cpu query parameters.
func listOptions(r *http.Request) (model.ListOptions, *model.APIError) {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	var details []model.FieldError

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			details = append(details, model.FieldError{Field: "limit", Message: "must be a positive integer"})
		} else {
			opts.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			details = append(details, model.FieldError{Field: "offset", Message: "must be a non-negative integer"})
		} else {
			opts.Offset = n
		}
	}
	if v := q.Get("cpu"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !model.CPUNum(n).Valid() {
			details = append(details, model.FieldError{Field: "cpu", Message: "must be a CPU number"})
		} else {
			cpu := model.CPUNum(n)
			opts.CPU = &cpu
		}
	}

	if len(details) > 0 {
		return opts, model.NewValidationError("invalid query parameters", details...)
	}
	opts.Clamp()
	return opts, nil
}
