package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
)

type consolidateRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=author illustrator"`
	PrimaryID   int64  `json:"primary_id" validate:"required,gt=0"`
	SecondaryID int64  `json:"secondary_id" validate:"required,gt=0,nefield=PrimaryID"`
}

type bookFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value" validate:"max=500"`
}

type auditQuery struct {
	Action string    `form:"action" validate:"omitempty,oneof=import consolidate book_edit"`
	Limit  int       `form:"limit" validate:"omitempty,gt=0,lte=1000"`
	Since  time.Time `form:"since"`
}

func parseAuditQuery(r *http.Request) (auditQuery, error) {
	q := r.URL.Query()
	aq := auditQuery{Action: q.Get("action")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return aq, fmt.Errorf("invalid limit %q", v)
		}
		aq.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return aq, fmt.Errorf("invalid since %q: use RFC 3339", v)
		}
		aq.Since = t
	}
	return aq, nil
}

// handleConsolidate merges a duplicate author or illustrator into another.
func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	var req consolidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondInvalid(w, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.ConsolidatePeople(ctx, catalog.PersonKind(req.Kind), req.PrimaryID, req.SecondaryID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, result)
}

// handleUpdateBookField sets one allow-listed field on a book.
func (s *Server) handleUpdateBookField(w http.ResponseWriter, r *http.Request) {
	bookID, err := parseIDParam(r, "bookID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req bookFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondInvalid(w, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	book, err := s.service.UpdateBookField(ctx, bookID, req.Field, req.Value)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, book)
}

// handleAuditLog lists recorded catalog changes, newest first.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	aq, err := parseAuditQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(aq); err != nil {
		s.respondInvalid(w, err)
		return
	}

	entries, err := s.service.AuditLog(r.Context(), catalog.AuditFilter{
		Action: catalog.AuditAction(aq.Action),
		Since:  aq.Since,
		Limit:  aq.Limit,
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if entries == nil {
		entries = []catalog.AuditEntry{}
	}

	writeJSON(w, map[string]any{"entries": entries})
}
