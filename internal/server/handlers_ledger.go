package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/claude/gymwhisper/internal/extract"
	"github.com/claude/gymwhisper/internal/ingest"
	"github.com/claude/gymwhisper/internal/ledger"
)

// applyResponse is returned by every ledger operation. Applied is false when
// the operation did not apply in the current state; the view is still the
// current one so the client can re-render.
type applyResponse struct {
	Applied bool        `json:"applied"`
	View    ledger.View `json:"view"`
}

func writeApplied(w http.ResponseWriter, l *ledger.Ledger, applied bool) {
	writeJSON(w, http.StatusOK, applyResponse{Applied: applied, View: l.Snapshot()})
}

// ledgerFromRequest resolves {id} for the calling owner, writing 404 when it
// does not exist.
func (s *Server) ledgerFromRequest(w http.ResponseWriter, r *http.Request) (*ledger.Ledger, bool) {
	l, err := s.Registry.Get(chi.URLParam(r, "id"), userIDFromContext(r))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return nil, false
	}
	return l, true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "i"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid record index"})
		return 0, false
	}
	return i, true
}

type createdResponse struct {
	ID   string      `json:"id"`
	View ledger.View `json:"view"`
}

func (s *Server) handleCreateLedger(w http.ResponseWriter, r *http.Request) {
	l := s.Registry.Create(userIDFromContext(r))
	writeJSON(w, http.StatusCreated, createdResponse{ID: l.ID(), View: l.Snapshot()})
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, l.Snapshot())
}

func (s *Server) handleDeleteLedger(w http.ResponseWriter, r *http.Request) {
	if err := s.Registry.Delete(chi.URLParam(r, "id"), userIDFromContext(r)); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Capture ---

func (s *Server) handleBeginCapture(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"capture_id": l.BeginCapture()})
}

type captureResponse struct {
	*ingest.Result
	View ledger.View `json:"view"`
}

// handleSubmitCapture runs a finished transcript through extraction and
// appends the records under capture {cid}.
func (s *Server) handleSubmitCapture(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeExtractError(w, &extract.Error{Status: http.StatusBadRequest, Message: extract.MissingTextMessage})
		return
	}
	if err := extract.ValidateText(req.Text); err != nil {
		writeExtractError(w, err)
		return
	}
	if _, err := extract.ValidateLanguage(req.Language); err != nil {
		writeExtractError(w, err)
		return
	}

	result, err := s.Pipeline.Submit(r.Context(), l, chi.URLParam(r, "cid"), req.Text, req.Language)
	switch {
	case errors.Is(err, ingest.ErrStaleCapture):
		writeJSON(w, http.StatusOK, captureResponse{Result: result, View: l.Snapshot()})
	case errors.Is(err, ingest.ErrUnknownCapture):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown capture"})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"added": 0,
			"error": extract.AsError(err).Message,
		})
	default:
		writeJSON(w, http.StatusOK, captureResponse{Result: result, View: l.Snapshot()})
	}
}

type appendRequest struct {
	Result json.RawMessage `json:"result"`
}

// handleAppendRecords normalizes a raw extraction response the client
// already has and appends it.
func (s *Server) handleAppendRecords(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}

	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	var response any
	if len(req.Result) > 0 {
		if err := json.Unmarshal(req.Result, &response); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid result: " + err.Error()})
			return
		}
	}

	records := ingest.NormalizeAny(response, s.Pipeline.ReferenceDate())
	result := &ingest.Result{Received: len(records), Records: records}
	if l.Append(records...) {
		result.Added = len(records)
		if s.Metrics != nil {
			s.Metrics.RecordsAppended.Add(r.Context(), int64(len(records)))
		}
	}
	writeJSON(w, http.StatusOK, captureResponse{Result: result, View: l.Snapshot()})
}

// --- Editing ---

func (s *Server) handleStartEdit(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	writeApplied(w, l, l.StartEdit(i))
}

type editRequest struct {
	Text *string `json:"text"`
}

func (s *Server) handleSetEditBuffer(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	writeApplied(w, l, l.SetEditBuffer(*req.Text))
}

// handleSaveEdit saves the body text when given, otherwise the edit buffer.
func (s *Server) handleSaveEdit(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Text != nil {
		writeApplied(w, l, l.SaveEdit(*req.Text))
		return
	}
	writeApplied(w, l, l.SaveEditBuffer())
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	writeApplied(w, l, l.CancelEdit())
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	writeApplied(w, l, l.RemoveEntry(i))
}

func (s *Server) handleApproveEntry(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	writeApplied(w, l, l.ApproveEntry(i))
}

// --- Finalize and export ---

func (s *Server) handleRequestFinalize(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	applied, warning := l.RequestFinalize()
	if warning != nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"warning": warning.Message,
			"code":    warning.Code,
			"view":    l.Snapshot(),
		})
		return
	}
	writeApplied(w, l, applied)
}

func (s *Server) handleCancelFinalize(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	writeApplied(w, l, l.CancelFinalize())
}

func (s *Server) handleRequestExportConfirmation(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	writeApplied(w, l, l.RequestExportConfirmation())
}

func (s *Server) handleCancelExportConfirmation(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	writeApplied(w, l, l.CancelExportConfirmation())
}

// handleConfirmExport appends the snapshot to history and clears the ledger.
func (s *Server) handleConfirmExport(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}
	applied, err := l.ConfirmExport(r.Context(), s.History)
	if err != nil {
		s.log.Error("confirm export failed", "ledger", l.ID(), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Failed to save workout data.",
			"view":  l.Snapshot(),
		})
		return
	}
	if applied && s.Metrics != nil {
		s.Metrics.SessionsFinalized.Add(r.Context(), 1)
	}
	writeApplied(w, l, applied)
}

// handleExportCSV downloads the live records. ?full=1 adds the review flag
// and date columns.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledgerFromRequest(w, r)
	if !ok {
		return
	}

	export := ledger.ExportCSV
	if full, _ := strconv.ParseBool(r.URL.Query().Get("full")); full {
		export = ledger.ExportCSVFull
	}

	var buf bytes.Buffer
	if err := export(&buf, l.Records()); err != nil {
		if errors.Is(err, ledger.ErrNothingToExport) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "No workout data to export"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ledger.ExportFilename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
