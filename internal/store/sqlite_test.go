package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/me/ksched/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRun(id string, created time.Time) *model.Run {
	return &model.Run{
		ID:        id,
		Name:      "rotate",
		CPUs:      2,
		TimeSlice: 5,
		Steps:     12,
		Switches:  4,
		Signals:   1,
		Scenario:  "name: rotate\n",
		Duration:  1500 * time.Microsecond,
		CreatedAt: created.UTC().Truncate(time.Millisecond),
	}
}

func sampleEvents(runID string) []model.TraceEvent {
	return []model.TraceEvent{
		{RunID: runID, Seq: 0, Step: 0, CPU: 0, Op: model.TraceOpEnqueueHead, Thread: "a", Priority: 17, Boost: 1, Detail: "READY"},
		{RunID: runID, Seq: 1, Step: 0, CPU: 0, Op: model.TraceOpSwitch, Thread: "idle0", Next: "a", Priority: 17, Boost: 1},
		{RunID: runID, Seq: 2, Step: 1, CPU: 0, Op: model.TraceOpSignal, Thread: "b", Priority: 21, Mask: model.MaskOf(1), Detail: "{1}"},
		{RunID: runID, Seq: 3, Step: 1, CPU: 1, Op: model.TraceOpSwitch, Thread: "idle1", Next: "b", Priority: 21, Boost: 1},
	}
}

func sampleSummaries(runID string) []model.ThreadSummary {
	return []model.ThreadSummary{
		{RunID: runID, Name: "a", BasePriority: 16, Boost: 1, State: model.ThreadStateRunning, PinnedCPU: model.NoCPU, LastCPU: 0, Dispatches: 1, TicksRun: 3},
		{RunID: runID, Name: "b", BasePriority: 20, Boost: 1, State: model.ThreadStateRunning, PinnedCPU: 1, LastCPU: 1, Dispatches: 1},
		{RunID: runID, Name: "c", BasePriority: 4, State: model.ThreadStateBlocked, PinnedCPU: model.NoCPU, LastCPU: model.NoCPU},
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	ok, err := hasColumn(ctx, st.db, "trace_events", "mask")
	if err != nil {
		t.Fatalf("hasColumn: %v", err)
	}
	if !ok {
		t.Error("trace_events.mask column missing after migrate")
	}
}

func TestRunCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_1", time.Now())

	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil")
	}
	if got.Name != run.Name || got.CPUs != run.CPUs || got.TimeSlice != run.TimeSlice {
		t.Errorf("GetRun = %+v, want %+v", got, run)
	}
	if got.Steps != 12 || got.Switches != 4 || got.Signals != 1 {
		t.Errorf("counters = %d/%d/%d, want 12/4/1", got.Steps, got.Switches, got.Signals)
	}
	if got.Duration != run.Duration {
		t.Errorf("Duration = %v, want %v", got.Duration, run.Duration)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, run.CreatedAt)
	}
	if got.Scenario != run.Scenario {
		t.Errorf("Scenario = %q, want %q", got.Scenario, run.Scenario)
	}

	if err := st.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	got, err = st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun after delete: %v", err)
	}
	if got != nil {
		t.Errorf("GetRun after delete = %+v, want nil", got)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetRun(context.Background(), "run_missing")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("GetRun = %+v, want nil", got)
	}
}

func TestDeleteRun_NotFound(t *testing.T) {
	st := testStore(t)
	err := st.DeleteRun(context.Background(), "run_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteRun error = %v, want ErrNotFound", err)
	}
}

func TestListRuns_Pagination(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		run := sampleRun(fmt.Sprintf("run_%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := st.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun %d: %v", i, err)
		}
	}

	runs, total, err := st.ListRuns(ctx, model.ListOptions{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	// Newest first.
	if runs[0].ID != "run_4" || runs[1].ID != "run_3" {
		t.Errorf("order = %s, %s; want run_4, run_3", runs[0].ID, runs[1].ID)
	}

	runs, _, err = st.ListRuns(ctx, model.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("ListRuns offset: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run_0" {
		t.Errorf("last page = %v, want [run_0]", runs)
	}
}

func TestEvents(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_ev", time.Now())
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := st.AddEvents(ctx, sampleEvents(run.ID)); err != nil {
		t.Fatalf("AddEvents: %v", err)
	}

	events, total, err := st.ListEvents(ctx, run.ID, model.DefaultListOptions())
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if total != 4 || len(events) != 4 {
		t.Fatalf("got %d events (total %d), want 4", len(events), total)
	}
	for i, ev := range events {
		if ev.Seq != i {
			t.Errorf("events[%d].Seq = %d", i, ev.Seq)
		}
	}
	sig := events[2]
	if sig.Op != model.TraceOpSignal || sig.Mask != model.MaskOf(1) || sig.Thread != "b" {
		t.Errorf("signal event = %+v", sig)
	}
	if events[1].Next != "a" {
		t.Errorf("switch next = %q, want a", events[1].Next)
	}

	cpu := model.CPUNum(1)
	events, total, err = st.ListEvents(ctx, run.ID, model.ListOptions{Limit: 10, CPU: &cpu})
	if err != nil {
		t.Fatalf("ListEvents cpu filter: %v", err)
	}
	if total != 1 || len(events) != 1 || events[0].Seq != 3 {
		t.Errorf("cpu 1 events = %+v (total %d), want only seq 3", events, total)
	}

	events, total, err = st.ListEvents(ctx, run.ID, model.ListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListEvents page: %v", err)
	}
	if total != 4 || len(events) != 2 || events[0].Seq != 1 {
		t.Errorf("page = %+v (total %d)", events, total)
	}
}

func TestAddEvents_UnknownRun(t *testing.T) {
	st := testStore(t)
	err := st.AddEvents(context.Background(), sampleEvents("run_nope"))
	if err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestAddEvents_DuplicateSeqRollsBack(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_dup", time.Now())
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	events := sampleEvents(run.ID)
	events[3].Seq = 0
	if err := st.AddEvents(ctx, events); err == nil {
		t.Fatal("expected primary key violation")
	}
	_, total, err := st.ListEvents(ctx, run.ID, model.DefaultListOptions())
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d after failed batch, want 0", total)
	}
}

func TestThreadSummaries(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_ts", time.Now())
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := st.AddThreadSummaries(ctx, sampleSummaries(run.ID)); err != nil {
		t.Fatalf("AddThreadSummaries: %v", err)
	}

	got, err := st.ListThreadSummaries(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListThreadSummaries: %v", err)
	}
	want := sampleSummaries(run.ID)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("summary[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSaveRun_FailureLeavesNoRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_partial", time.Now())

	events := sampleEvents(run.ID)
	events[2].Seq = events[1].Seq
	if err := st.SaveRun(ctx, run, events, sampleSummaries(run.ID)); err == nil {
		t.Fatal("expected primary key violation")
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("run kept after failed save: %+v", got)
	}
	_, total, err := st.ListRuns(ctx, model.DefaultListOptions())
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 0 {
		t.Errorf("runs = %d, want 0", total)
	}
	threads, err := st.ListThreadSummaries(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListThreadSummaries: %v", err)
	}
	if len(threads) != 0 {
		t.Errorf("summaries = %d, want 0", len(threads))
	}
}

func TestDeleteRun_Cascades(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_cascade", time.Now())

	if err := st.SaveRun(ctx, run, sampleEvents(run.ID), sampleSummaries(run.ID)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := st.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}

	_, total, err := st.ListEvents(ctx, run.ID, model.DefaultListOptions())
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if total != 0 {
		t.Errorf("events left after delete: %d", total)
	}
	summaries, err := st.ListThreadSummaries(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListThreadSummaries: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("summaries left after delete: %d", len(summaries))
	}
}

func TestFileStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ksched.db")
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	st, err := NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := st.CreateRun(ctx, sampleRun("run_file", time.Now())); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	st.Close()

	st, err = NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate on reopen: %v", err)
	}
	got, err := st.GetRun(ctx, "run_file")
	if err != nil || got == nil {
		t.Fatalf("GetRun after reopen = %v, %v", got, err)
	}
}
