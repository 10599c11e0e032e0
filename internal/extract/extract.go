// Package extract is the LLM collaborator: it turns a workout transcript into
// semicolon-separated record text and summarizes logged records.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/claude/gymwhisper/internal/models"
	"github.com/claude/gymwhisper/internal/observe"
)

// MissingTextMessage is returned for an empty or non-string transcript.
const MissingTextMessage = "Missing or invalid 'text' parameter."

// Error is an extraction failure with the HTTP status the caller should see:
// 400 for bad input, 500 for backend failures.
type Error struct {
	Status  int    `json:"status"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction error %d: %s", e.Status, e.Message)
}

// AsError unwraps err to an *Error, wrapping anything else as a 500.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	msg := "Internal Server Error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Error{Status: http.StatusInternalServerError, Message: msg}
}

// Backend is one LLM provider.
type Backend interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Service validates requests and runs them against a Backend.
type Service struct {
	backend Backend
	metrics *observe.Metrics
	log     *slog.Logger
}

// NewService creates an extraction service. metrics may be nil.
func NewService(backend Backend, metrics *observe.Metrics, log *slog.Logger) *Service {
	return &Service{backend: backend, metrics: metrics, log: log}
}

// Provider returns the backend name.
func (s *Service) Provider() string { return s.backend.Name() }

// ValidateText checks a transcript the way the extraction endpoint does.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return &Error{Status: http.StatusBadRequest, Message: MissingTextMessage}
	}
	return nil
}

// ValidateLanguage normalizes an empty tag to English and rejects tags the
// prompts do not cover.
func ValidateLanguage(language string) (string, error) {
	if language == "" {
		return models.LanguageEnglish, nil
	}
	if !models.ValidLanguage(language) {
		return "", &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf("Unsupported language %q.", language)}
	}
	return language, nil
}

// Extract sends a transcript to the backend and returns the cleaned response
// text. Errors are always *Error.
func (s *Service) Extract(ctx context.Context, text, language string) (string, error) {
	if err := ValidateText(text); err != nil {
		return "", err
	}
	lang, err := ValidateLanguage(language)
	if err != nil {
		return "", err
	}

	out, err := s.generate(ctx, "extract", extractionPrompt(lang), text)
	if err != nil {
		return "", err
	}
	return cleanResponse(out), nil
}

// Summarize asks the backend for a short plain-text summary of records.
func (s *Service) Summarize(ctx context.Context, records []string, language string) (string, error) {
	if len(records) == 0 {
		return "", &Error{Status: http.StatusBadRequest, Message: "No workout records to summarize."}
	}
	lang, err := ValidateLanguage(language)
	if err != nil {
		return "", err
	}

	out, err := s.generate(ctx, "summary", summaryPrompt(lang), strings.Join(records, "\n"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *Service) generate(ctx context.Context, kind, system, user string) (string, error) {
	start := time.Now()
	out, err := s.backend.Generate(ctx, system, user)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.RecordExtraction(ctx, s.backend.Name(), kind, status, time.Since(start))
	}
	if err != nil {
		s.log.Warn("extraction backend failed", "provider", s.backend.Name(), "kind", kind, "error", err)
		return "", AsError(err)
	}
	return out, nil
}

// cleanResponse strips markdown code fences and joins line-separated records
// with ';' so the normalizer sees one segment per set.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, ";")
}
