// Package web provides HTTP handlers for the import service.
// This file contains shared utilities and helper functions used across handlers.
package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/awardshelf/internal/core"
)

// parseIDParam parses a positive integer URL parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// respondInvalid writes a 400 listing the failed fields.
func (s *Server) respondInvalid(w http.ResponseWriter, err error) {
	fields := fieldErrors(err)
	if fields == nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{
		Error:   "invalid request",
		Message: "Some fields are invalid.",
		Action:  "Correct the listed fields and try again.",
		Code:    "VAL007",
		Fields:  fields,
	})
}

// ImportResultResponse is the JSON form of core.ImportResult.
type ImportResultResponse struct {
	*core.ImportResult
	Duration string `json:"duration"`
}

// toResponse converts an ImportResult to a JSON-friendly format.
func toResponse(result *core.ImportResult) ImportResultResponse {
	return ImportResultResponse{
		ImportResult: result,
		Duration:     result.Duration.String(),
	}
}

// handleImportQueueStatus returns the current state of the import limiter.
// Used for monitoring and to check if the system can accept more imports.
func (s *Server) handleImportQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Limiter().Status())
}
