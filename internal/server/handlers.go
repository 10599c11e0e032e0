package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/claude/gymwhisper/internal/extract"
	"github.com/claude/gymwhisper/internal/models"
	"github.com/claude/gymwhisper/internal/storage"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.Store != nil {
		if err := s.Store.Ping(r.Context()); err != nil {
			s.log.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

type capabilities struct {
	SpeechCapture string   `json:"speech_capture"`
	Languages     []string `json:"languages"`
	Provider      string   `json:"extraction_provider,omitempty"`
	StalePolicy   string   `json:"stale_policy,omitempty"`
}

// handleCapabilities tells the browser that speech capture stays on its side.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	c := capabilities{SpeechCapture: "browser", Languages: models.SupportedLanguages}
	if s.Extract != nil {
		c.Provider = s.Extract.Provider()
	}
	if s.Pipeline != nil {
		c.StalePolicy = string(s.Pipeline.Policy())
	}
	writeJSON(w, http.StatusOK, c)
}

type extractRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeExtractError(w, &extract.Error{Status: http.StatusBadRequest, Message: extract.MissingTextMessage})
		return
	}

	result, err := s.Extract.Extract(r.Context(), req.Text, req.Language)
	if err != nil {
		writeExtractError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

type summaryRequest struct {
	Records  []string `json:"records"`
	Language string   `json:"language"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	s.summarize(w, r, req.Records, req.Language)
}

func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	records := s.History.LoadHistory(r.Context(), userIDFromContext(r))
	s.summarize(w, r, records, req.Language)
}

func (s *Server) summarize(w http.ResponseWriter, r *http.Request, records []string, language string) {
	summary, err := s.Extract.Summarize(r.Context(), records, language)
	if err != nil {
		writeExtractError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

type historyResponse struct {
	Count   int                       `json:"count"`
	Records []models.WorkoutSetRecord `json:"records"`
}

// handleHistory returns every stored record in order, flattened across
// sessions.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	raw := s.History.LoadHistory(r.Context(), userIDFromContext(r))
	resp := historyResponse{Count: len(raw), Records: make([]models.WorkoutSetRecord, len(raw))}
	for i, rec := range raw {
		resp.Records[i] = models.ParseRecord(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}

type sessionView struct {
	FinalizedAt string                    `json:"finalized_at,omitempty"`
	Records     []models.WorkoutSetRecord `json:"records"`
}

func (s *Server) handleHistorySessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.History.LoadSessions(r.Context(), userIDFromContext(r))
	out := make([]sessionView, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionView{FinalizedAt: sess.FinalizedAt, Records: sess.ParsedRecords()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.Preferences.Get(r.Context(), userIDFromContext(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type preferencesRequest struct {
	DarkMode *bool   `json:"dark_mode"`
	Language *string `json:"language"`
}

// handlePutPreferences updates only the fields present in the body.
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	ctx, owner := r.Context(), userIDFromContext(r)
	if req.Language != nil {
		if err := s.Preferences.SetLanguage(ctx, owner, *req.Language); err != nil {
			writePreferenceError(w, err)
			return
		}
	}
	if req.DarkMode != nil {
		if err := s.Preferences.SetDarkMode(ctx, owner, *req.DarkMode); err != nil {
			writePreferenceError(w, err)
			return
		}
	}
	s.handleGetPreferences(w, r)
}

func writePreferenceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrInvalidPreference) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeExtractError writes {error, status} with status as the HTTP code.
func writeExtractError(w http.ResponseWriter, err error) {
	e := extract.AsError(err)
	writeJSON(w, e.Status, e)
}

// decodeOptional decodes a JSON body into v, treating an empty body as {}.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
