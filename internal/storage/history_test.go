package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHistory(kv KV) *HistoryRepository {
	h := NewHistoryRepository(kv, time.UTC, discardLogger())
	h.now = func() time.Time { return time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC) }
	return h
}

func TestAppendThenLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(NewMemoryKV())
	records := []string{"BenchPress,10,135lbs,2025-06-01", "PushUps,9,Bodyweight,2025-06-01"}

	if err := h.AppendSession(ctx, "alice", records); err != nil {
		t.Fatalf("AppendSession: %v", err)
	}
	if got := h.LoadHistory(ctx, "alice"); !reflect.DeepEqual(got, records) {
		t.Errorf("LoadHistory = %q, want %q", got, records)
	}

	if err := h.AppendSession(ctx, "alice", []string{"Squats,5,225lbs,2025-06-01"}); err != nil {
		t.Fatal(err)
	}
	want := append(append([]string{}, records...), "Squats,5,225lbs,2025-06-01")
	if got := h.LoadHistory(ctx, "alice"); !reflect.DeepEqual(got, want) {
		t.Errorf("LoadHistory = %q, want %q", got, want)
	}

	sessions := h.LoadSessions(ctx, "alice")
	if len(sessions) != 2 || sessions[0].FinalizedAt != "2025-06-01 18:30:00" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestStoredLayout(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	h := newTestHistory(kv)

	if err := h.AppendSession(ctx, "alice", []string{"A,1,1lbs"}); err != nil {
		t.Fatal(err)
	}
	data, _, _ := kv.Get(ctx, "alice", HistoryKey)
	want := `[["2025-06-01 18:30:00",["A,1,1lbs"]]]`
	if string(data) != want {
		t.Errorf("stored = %s, want %s", data, want)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(NewMemoryKV())
	_ = h.AppendSession(ctx, "alice", []string{"A,1,1lbs"})

	if got := h.LoadHistory(ctx, "bob"); len(got) != 0 {
		t.Errorf("bob sees %q", got)
	}
}

func TestLoadHistoryToleratesLegacyLayouts(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	_ = kv.Put(ctx, "alice", HistoryKey, []byte(`[["Squats,5,225lbs","Lunges,10,40lbs"],["2025-06-01 18:30:00",["A,1,1lbs"]],"B,2,2lbs"]`))
	h := newTestHistory(kv)

	want := []string{"Squats,5,225lbs", "Lunges,10,40lbs", "A,1,1lbs", "B,2,2lbs"}
	if got := h.LoadHistory(ctx, "alice"); !reflect.DeepEqual(got, want) {
		t.Errorf("LoadHistory = %q, want %q", got, want)
	}

	// Appending keeps the legacy entries intact.
	if err := h.AppendSession(ctx, "alice", []string{"C,3,3lbs"}); err != nil {
		t.Fatal(err)
	}
	want = append(want, "C,3,3lbs")
	if got := h.LoadHistory(ctx, "alice"); !reflect.DeepEqual(got, want) {
		t.Errorf("after append LoadHistory = %q, want %q", got, want)
	}
}

func TestCorruptHistory(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	_ = kv.Put(ctx, "alice", HistoryKey, []byte(`{not json`))
	h := newTestHistory(kv)

	if got := h.LoadHistory(ctx, "alice"); got == nil || len(got) != 0 {
		t.Errorf("LoadHistory = %#v, want empty slice", got)
	}

	if err := h.AppendSession(ctx, "alice", []string{"A,1,1lbs"}); err != nil {
		t.Fatalf("AppendSession over corrupt value: %v", err)
	}
	if got := h.LoadHistory(ctx, "alice"); !reflect.DeepEqual(got, []string{"A,1,1lbs"}) {
		t.Errorf("LoadHistory = %q", got)
	}
}

func TestAppendKeepsWorkoutsWrapper(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	_ = kv.Put(ctx, "alice", HistoryKey, []byte(`{"workouts":["BenchPress,10,135lbs,2025-07-01"]}`))
	h := newTestHistory(kv)

	if got := h.LoadHistory(ctx, "alice"); !reflect.DeepEqual(got, []string{"BenchPress,10,135lbs,2025-07-01"}) {
		t.Fatalf("LoadHistory = %q", got)
	}
	if err := h.AppendSession(ctx, "alice", []string{"A,1,1lbs"}); err != nil {
		t.Fatal(err)
	}
	want := []string{"BenchPress,10,135lbs,2025-07-01", "A,1,1lbs"}
	if got := h.LoadHistory(ctx, "alice"); !reflect.DeepEqual(got, want) {
		t.Errorf("LoadHistory = %q, want %q", got, want)
	}
}

type failingKV struct {
	getErr error
	puts   int
}

func (f *failingKV) Get(ctx context.Context, owner, key string) ([]byte, bool, error) {
	return nil, false, f.getErr
}

func (f *failingKV) Put(ctx context.Context, owner, key string, value []byte) error {
	f.puts++
	return nil
}

func TestAppendSessionReadFailureDoesNotOverwrite(t *testing.T) {
	kv := &failingKV{getErr: errors.New("connection reset")}
	h := newTestHistory(kv)

	if err := h.AppendSession(context.Background(), "alice", []string{"A,1,1lbs"}); err == nil {
		t.Fatal("expected error")
	}
	if kv.puts != 0 {
		t.Error("history must not be written after a failed read")
	}
	if got := h.LoadHistory(context.Background(), "alice"); len(got) != 0 {
		t.Errorf("LoadHistory = %q, want empty", got)
	}
}

// barrierKV lets every reader finish Get before any of them continues, which
// forces two read-modify-write cycles to overlap.
type barrierKV struct {
	KV
	wg *sync.WaitGroup
}

func (b *barrierKV) Get(ctx context.Context, owner, key string) ([]byte, bool, error) {
	v, ok, err := b.KV.Get(ctx, owner, key)
	b.wg.Done()
	b.wg.Wait()
	return v, ok, err
}

func TestConcurrentAppendsLoseAnUpdate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryKV()
	var barrier sync.WaitGroup
	barrier.Add(2)
	h := newTestHistory(&barrierKV{KV: mem, wg: &barrier})

	var done sync.WaitGroup
	for _, rec := range []string{"TabOne,1,1lbs", "TabTwo,2,2lbs"} {
		done.Add(1)
		go func(rec string) {
			defer done.Done()
			if err := h.AppendSession(ctx, "alice", []string{rec}); err != nil {
				t.Error(err)
			}
		}(rec)
	}
	done.Wait()

	// Last writer wins: only one of the two sessions survives.
	got := newTestHistory(mem).LoadSessions(ctx, "alice")
	if len(got) != 1 {
		t.Fatalf("got %d sessions, want 1 (lost update)", len(got))
	}
}

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	kv, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "gymwhisper.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer kv.Close()

	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, ok, err := kv.Get(ctx, "alice", HistoryKey); ok || err != nil {
		t.Fatalf("Get on empty db: ok=%v err=%v", ok, err)
	}

	if err := kv.Put(ctx, "alice", HistoryKey, []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(ctx, "alice", HistoryKey, []byte(`[["x",[]]]`)); err != nil {
		t.Fatal(err)
	}
	v, ok, err := kv.Get(ctx, "alice", HistoryKey)
	if err != nil || !ok || string(v) != `[["x",[]]]` {
		t.Errorf("Get = %s, %v, %v", v, ok, err)
	}
	if _, ok, _ := kv.Get(ctx, "bob", HistoryKey); ok {
		t.Error("bob should not see alice's value")
	}

	h := newTestHistory(kv)
	if err := h.AppendSession(ctx, "alice", []string{"A,1,1lbs"}); err != nil {
		t.Fatal(err)
	}
	if got := h.LoadHistory(ctx, "alice"); !reflect.DeepEqual(got, []string{"A,1,1lbs"}) {
		t.Errorf("LoadHistory = %q", got)
	}
}
