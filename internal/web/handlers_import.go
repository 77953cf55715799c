package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/awardshelf/internal/core"
	"github.com/JonMunkholm/awardshelf/internal/logging"
	"github.com/JonMunkholm/awardshelf/internal/web/templates"
)

var errNoFile = errors.New("no file provided")

// importForm holds the optional run settings sent with an upload.
type importForm struct {
	BatchSize   int    `form:"batch_size" validate:"omitempty,min=1,max=10000"`
	TxMode      string `form:"tx_mode" validate:"omitempty,oneof=batch row"`
	OnAmbiguous string `form:"on_ambiguous" validate:"omitempty,oneof=create_new reject_row pick_first"`
	DryRun      bool   `form:"dry_run"`
}

// readUpload reads the multipart "file" field, bounded by the configured
// maximum size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		return "", nil, fmt.Errorf("file too large or invalid form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

// parseImportForm validates the run settings and converts them to options.
func (s *Server) parseImportForm(r *http.Request) (core.ImportOptions, error) {
	var form importForm
	if v := r.FormValue("batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return core.ImportOptions{}, errors.New("batch_size must be a number")
		}
		form.BatchSize = n
	}
	form.TxMode = r.FormValue("tx_mode")
	form.OnAmbiguous = r.FormValue("on_ambiguous")
	if v := r.FormValue("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return core.ImportOptions{}, errors.New("dry_run must be true or false")
		}
		form.DryRun = b
	}

	if err := s.validate.Struct(form); err != nil {
		return core.ImportOptions{}, err
	}

	return core.ParseImportOptions(form.BatchSize, form.TxMode, form.OnAmbiguous, form.DryRun)
}

// handleValidate checks an upload without writing anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	_, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	report, err := s.service.Validate(r.Context(), bytes.NewReader(data))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, report)
}

// handlePreview reports what an upload would create or match without
// writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	_, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	opts, err := s.parseImportForm(r)
	if err != nil {
		s.respondInvalid(w, err)
		return
	}

	resp, err := s.service.Preview(r.Context(), bytes.NewReader(data), opts.OnAmbiguous)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, resp)
}

// handleImport starts an asynchronous import and returns its id.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	opts, err := s.parseImportForm(r)
	if err != nil {
		s.respondInvalid(w, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	importID, err := s.service.StartImport(ctx, fileName, data, opts)
	if err != nil {
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", "30")
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSONStatus(w, http.StatusAccepted, map[string]string{"import_id": importID})
}

// handleImportProgress streams import progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, err := s.service.SubscribeProgress(importID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	// The controller sees through the logging and metrics wrappers.
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - import finished
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				rc.Flush()
				return
			}

			eventID := progress.Percent()
			// Only skip while the client has already seen this percentage
			// and the run is still going; terminal events always go out.
			if lastEventIDStr != "" && eventID <= lastEventID && !progress.Done() {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			if err := rc.Flush(); err != nil {
				logging.FromContext(logging.WithImportID(r.Context(), importID)).Warn("progress stream flush failed", "error", err)
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult returns the final result of an import, or 202 with
// the current progress while it is still running.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	progress, err := s.service.GetImportProgress(importID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if !progress.Done() {
		writeJSONStatus(w, http.StatusAccepted, progress)
		return
	}

	result, err := s.service.GetImportResult(r.Context(), importID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, toResponse(result))
}

// handleImportDetail renders the import status page.
func (s *Server) handleImportDetail(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	progress, err := s.service.GetImportProgress(importID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	params := templates.ImportParams{Progress: progress}
	if progress.Done() {
		if params.Result, err = s.service.GetImportResult(r.Context(), importID); err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.ImportPage(params).Render(r.Context(), w)
}
