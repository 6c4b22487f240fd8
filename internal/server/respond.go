package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// ErrorResponse is the envelope every non-2xx response carries. Error is
// a stable machine-readable slug; Message is for humans.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Error slugs.
const (
	errUnauthenticated     = "unauthenticated"
	errForbidden           = "forbidden"
	errRateLimited         = "rate_limited"
	errUpstreamUnavailable = "upstream_unavailable"
	errValidationFailed    = "validation_failed"
	errNotFound            = "not_found"
	errInternal            = "internal"
	errWarmingUp           = "warming_up"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Printf("error encoding response: %v\n", err)
	}
}

func respondError(w http.ResponseWriter, status int, slug, message string, err error) {
	if err != nil {
		fmt.Printf("error: %s - %v\n", message, err)
	}

	respondJSON(w, status, ErrorResponse{
		Error:   slug,
		Message: message,
		Code:    status,
	})
}

func parseIntParam(r *http.Request, param string, defaultValue int) (int, error) {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", param)
	}

	return value, nil
}
