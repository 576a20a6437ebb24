package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/ksched/pkg/model"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// The pragmas below are per connection, and every connection to
	// ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Runs ---

const runColumns = `id, name, cpus, time_slice, steps, switches, signals, scenario, duration_ns, created_at`

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	return insertRun(ctx, s.db, run)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRun(ctx context.Context, db execer, run *model.Run) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.CPUs, run.TimeSlice, run.Steps, run.Switches, run.Signals,
		run.Scenario, int64(run.Duration), run.CreatedAt.UTC().Format(timeFormat),
	)
	return err
}

// SaveRun writes a run with its trace and thread summaries in one
// transaction. Nothing is kept when any insert fails.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run, events []model.TraceEvent, threads []model.ThreadSummary) error {
	s.logger.Debug("sql", "op", "save", "table", "runs", "id", run.ID, "events", len(events), "threads", len(threads))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, run); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	if err := insertBatch(ctx, tx, insertEventSQL, len(events), eventArgs(events)); err != nil {
		return fmt.Errorf("insert trace events: %w", err)
	}
	if err := insertBatch(ctx, tx, insertSummarySQL, len(threads), summaryArgs(threads)); err != nil {
		return fmt.Errorf("insert thread summaries: %w", err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var run model.Run
	var duration int64
	var createdAt string
	if err := row.Scan(&run.ID, &run.Name, &run.CPUs, &run.TimeSlice, &run.Steps, &run.Switches,
		&run.Signals, &run.Scenario, &duration, &createdAt); err != nil {
		return nil, err
	}
	run.Duration = time.Duration(duration)
	run.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return &run, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// DeleteRun removes a run together with its events and thread summaries.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "runs", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Trace events ---

// AddEvents inserts events in a single transaction.
func (s *SQLiteStore) AddEvents(ctx context.Context, events []model.TraceEvent) error {
	if len(events) == 0 {
		return nil
	}
	s.logger.Debug("sql", "op", "insert_batch", "table", "trace_events", "run_id", events[0].RunID, "count", len(events))

	return s.inTx(ctx, insertEventSQL, len(events), eventArgs(events))
}

const insertEventSQL = `INSERT INTO trace_events (run_id, seq, step, cpu, op, thread, next, priority, boost, mask, detail)
	 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func eventArgs(events []model.TraceEvent) func(i int) []any {
	return func(i int) []any {
		ev := events[i]
		return []any{ev.RunID, ev.Seq, ev.Step, int(ev.CPU), string(ev.Op), ev.Thread, ev.Next,
			ev.Priority, ev.Boost, int64(ev.Mask), ev.Detail}
	}
}

// ListEvents returns a page of a run's events in sequence order, optionally
// restricted to the CPU in opts.CPU, and the total number of matches.
func (s *SQLiteStore) ListEvents(ctx context.Context, runID string, opts model.ListOptions) ([]model.TraceEvent, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "trace_events", "run_id", runID, "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := []string{"run_id = ?"}
	args := []any{runID}
	if opts.CPU != nil {
		where = append(where, "cpu = ?")
		args = append(args, int(*opts.CPU))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trace_events WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, step, cpu, op, thread, next, priority, boost, mask, detail
		 FROM trace_events WHERE `+cond+` ORDER BY seq LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []model.TraceEvent
	for rows.Next() {
		var ev model.TraceEvent
		var cpu int
		var op string
		var mask int64
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Step, &cpu, &op, &ev.Thread, &ev.Next,
			&ev.Priority, &ev.Boost, &mask, &ev.Detail); err != nil {
			return nil, 0, err
		}
		ev.CPU = model.CPUNum(cpu)
		ev.Op = model.TraceOp(op)
		ev.Mask = model.CPUMask(mask)
		events = append(events, ev)
	}
	return events, total, rows.Err()
}

// --- Thread summaries ---

func (s *SQLiteStore) AddThreadSummaries(ctx context.Context, summaries []model.ThreadSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	s.logger.Debug("sql", "op", "insert_batch", "table", "thread_summaries", "run_id", summaries[0].RunID, "count", len(summaries))

	return s.inTx(ctx, insertSummarySQL, len(summaries), summaryArgs(summaries))
}

const insertSummarySQL = `INSERT INTO thread_summaries (run_id, name, base_priority, boost, state, pinned_cpu, last_cpu, dispatches, ticks_run)
	 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func summaryArgs(summaries []model.ThreadSummary) func(i int) []any {
	return func(i int) []any {
		ts := summaries[i]
		return []any{ts.RunID, ts.Name, ts.BasePriority, ts.Boost, string(ts.State),
			int(ts.PinnedCPU), int(ts.LastCPU), ts.Dispatches, ts.TicksRun}
	}
}

func (s *SQLiteStore) ListThreadSummaries(ctx context.Context, runID string) ([]model.ThreadSummary, error) {
	s.logger.Debug("sql", "op", "list", "table", "thread_summaries", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, name, base_priority, boost, state, pinned_cpu, last_cpu, dispatches, ticks_run
		 FROM thread_summaries WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ThreadSummary
	for rows.Next() {
		var ts model.ThreadSummary
		var state string
		var pinned, last int
		if err := rows.Scan(&ts.RunID, &ts.Name, &ts.BasePriority, &ts.Boost, &state,
			&pinned, &last, &ts.Dispatches, &ts.TicksRun); err != nil {
			return nil, err
		}
		ts.State = model.ThreadState(state)
		ts.PinnedCPU = model.CPUNum(pinned)
		ts.LastCPU = model.CPUNum(last)
		out = append(out, ts)
	}
	return out, rows.Err()
}

// inTx executes query n times inside one transaction, with args(i) as the
// parameters of the i-th execution.
func (s *SQLiteStore) inTx(ctx context.Context, query string, n int, args func(i int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertBatch(ctx, tx, query, n, args); err != nil {
		return err
	}
	return tx.Commit()
}

func insertBatch(ctx context.Context, tx *sql.Tx, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}
