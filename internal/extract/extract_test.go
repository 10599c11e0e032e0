package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	out        string
	err        error
	gotSystem  string
	gotUser    string
	callsCount int
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Generate(ctx context.Context, system, user string) (string, error) {
	b.callsCount++
	b.gotSystem = system
	b.gotUser = user
	return b.out, b.err
}

func newTestService(b Backend) *Service {
	return NewService(b, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtractRejectsEmptyText(t *testing.T) {
	b := &stubBackend{out: "x"}
	svc := newTestService(b)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := svc.Extract(context.Background(), text, "en")
		require.Error(t, err)
		e := AsError(err)
		assert.Equal(t, http.StatusBadRequest, e.Status)
		assert.Equal(t, MissingTextMessage, e.Message)
	}
	assert.Zero(t, b.callsCount, "backend must not be called for invalid input")
}

func TestExtractRejectsUnsupportedLanguage(t *testing.T) {
	svc := newTestService(&stubBackend{out: "x"})
	_, err := svc.Extract(context.Background(), "bench 10 at 135", "de")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, AsError(err).Status)
}

func TestExtractSelectsPromptByLanguage(t *testing.T) {
	b := &stubBackend{out: "BenchPress,9,135lbs"}
	svc := newTestService(b)

	out, err := svc.Extract(context.Background(), "développé couché", "fr")
	require.NoError(t, err)
	assert.Equal(t, "BenchPress,9,135lbs", out)
	assert.Equal(t, extractionPromptFR, b.gotSystem)
	assert.Equal(t, "développé couché", b.gotUser)

	_, err = svc.Extract(context.Background(), "bench", "")
	require.NoError(t, err)
	assert.Equal(t, extractionPromptEN, b.gotSystem)
}

func TestExtractBackendFailureIs500(t *testing.T) {
	svc := newTestService(&stubBackend{err: errors.New("quota exceeded")})
	_, err := svc.Extract(context.Background(), "bench", "en")
	require.Error(t, err)
	e := AsError(err)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Contains(t, e.Message, "quota exceeded")
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BenchPress,9,135lbs", "BenchPress,9,135lbs"},
		{"```csv\nBenchPress,9,135lbs\nPushUps,9,Bodyweight\n```", "BenchPress,9,135lbs;PushUps,9,Bodyweight"},
		{"```\nSquats,5,225lbs\n```", "Squats,5,225lbs"},
		{"  A,1,1lbs;B,2,2lbs  ", "A,1,1lbs;B,2,2lbs"},
		{"A,1,1lbs\r\n\r\nB,2,2lbs", "A,1,1lbs;B,2,2lbs"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanResponse(tt.in), "input %q", tt.in)
	}
}

func TestSummarize(t *testing.T) {
	b := &stubBackend{out: "  Great session.  "}
	svc := newTestService(b)

	_, err := svc.Summarize(context.Background(), nil, "en")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, AsError(err).Status)

	out, err := svc.Summarize(context.Background(), []string{"BenchPress,9,135lbs", "PushUps,9,Bodyweight"}, "en")
	require.NoError(t, err)
	assert.Equal(t, "Great session.", out)
	assert.Equal(t, "BenchPress,9,135lbs\nPushUps,9,Bodyweight", b.gotUser)
	assert.Equal(t, summaryPromptEN, b.gotSystem)
}

func TestAsError(t *testing.T) {
	e := &Error{Status: 400, Message: "bad"}
	wrapped := errors.Join(errors.New("context"), e)
	assert.Same(t, e, AsError(wrapped))
	assert.Equal(t, "Internal Server Error", AsError(nil).Message)
}

func TestNewBackendUnknownProvider(t *testing.T) {
	_, err := NewBackend(context.Background(), Config{Provider: "llama"})
	assert.Error(t, err)
}
