package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/macrosim/internal/model"
)

// ErrRunNotFound indicates a run id with no stored run.
var ErrRunNotFound = errors.New("run not found")

// Run describes a stored series.
type Run struct {
	ID        string
	Name      string
	BatchID   string
	Models    int
	Snapshots int
	Seed      *uint64
	CreatedAt time.Time
}

// RunMeta carries the caller-supplied details of a run being saved.
type RunMeta struct {
	Name    string
	BatchID string
	Seed    *uint64
}

// TotalPoint is one compartment total of one model at one recorded snapshot.
type TotalPoint struct {
	Snapshot    int     `db:"snapshot"`
	Model       int     `db:"model"`
	Iteration   int     `db:"iteration"`
	Compartment string  `db:"compartment"`
	Value       float64 `db:"total"`
}

type runRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	BatchID   sql.NullString `db:"batch_id"`
	Models    int            `db:"models"`
	Snapshots int            `db:"snapshots"`
	Seed      sql.NullInt64  `db:"seed"`
	CreatedAt string         `db:"created_at"`
}

func (r runRow) run() Run {
	out := Run{
		ID:        r.ID,
		Name:      r.Name,
		BatchID:   r.BatchID.String,
		Models:    r.Models,
		Snapshots: r.Snapshots,
	}
	if r.Seed.Valid {
		seed := uint64(r.Seed.Int64)
		out.Seed = &seed
	}
	out.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	return out
}

// RunStore stores simulated series in a SQLite database.
type RunStore struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	dbPath string
}

// Open opens (creating if needed) the run database at dbPath.
func Open(dbPath string) (*RunStore, error) {
	if err := EnsureDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sqlx.Connect("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &RunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *RunStore) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Reset deletes every stored run.
func (s *RunStore) Reset(ctx context.Context) error {
	return ResetSchema(ctx, s.db)
}

// NewBatchID returns a fresh id for grouping the runs of one fan-out.
func NewBatchID() string {
	return uuid.NewString()
}

// SaveRun stores series and every leaf compartment value it holds in a
// single transaction, and returns the stored run.
func (s *RunStore) SaveRun(ctx context.Context, meta RunMeta, series model.ModelListSeries) (Run, error) {
	if len(series) == 0 {
		return Run{}, fmt.Errorf("nothing to save: series is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run := Run{
		ID:        uuid.NewString(),
		Name:      meta.Name,
		BatchID:   meta.BatchID,
		Models:    len(series[0]),
		Snapshots: len(series),
		Seed:      meta.Seed,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seed sql.NullInt64
	if run.Seed != nil {
		seed = sql.NullInt64{Int64: int64(*run.Seed), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, batch_id, models, snapshots, seed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, sql.NullString{String: run.BatchID, Valid: run.BatchID != ""},
		run.Models, run.Snapshots, seed, run.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO run_values (run_id, snapshot, model, ident, iteration, path, compartment, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare value insert: %w", err)
	}
	defer stmt.Close()

	for snap, list := range series {
		for pos, m := range list {
			var ident sql.NullInt64
			if m.Ident != nil {
				ident = sql.NullInt64{Int64: int64(*m.Ident), Valid: true}
			}
			iteration := m.IterationOr(0)
			for path, leaf := range leaves(m.Group) {
				for name, v := range leaf.Compartments.All() {
					if _, err := stmt.ExecContext(ctx, run.ID, snap, pos, ident, iteration, path, name, v); err != nil {
						return Run{}, fmt.Errorf("failed to insert value %s%s at snapshot %d: %w", path, name, snap, err)
					}
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// ListRuns returns stored runs, newest first. A limit of zero or less
// returns every run.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, batch_id, models, snapshots, seed, created_at FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs := make([]Run, len(rows))
	for i, r := range rows {
		runs[i] = r.run()
	}
	return runs, nil
}

// GetRun returns the run with the given id, or the single run whose id
// starts with it.
func (s *RunStore) GetRun(ctx context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []runRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, batch_id, models, snapshots, seed, created_at FROM runs
		WHERE id = ? OR id LIKE ? ESCAPE '\'
		ORDER BY id = ? DESC`,
		id, escapeLike(id)+"%", id)
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	switch {
	case len(rows) == 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case rows[0].ID == id || len(rows) == 1:
		return rows[0].run(), nil
	}
	return Run{}, fmt.Errorf("run id prefix %q is ambiguous (%d matches)", id, len(rows))
}

// Totals returns the compartment totals of every model at every snapshot of
// a run, ordered by snapshot, model and compartment insertion order.
func (s *RunStore) Totals(ctx context.Context, runID string) ([]TotalPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []TotalPoint
	err := s.db.SelectContext(ctx, &points, `
		SELECT snapshot, model, iteration, compartment, SUM(value) AS total
		FROM run_values
		WHERE run_id = ?
		GROUP BY snapshot, model, iteration, compartment
		ORDER BY snapshot, model, MIN(rowid)`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	return points, nil
}

// DeleteRun removes a run and its values.
func (s *RunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// leaves yields every leaf of the tree under g with its slash-separated
// name path below the root. A root leaf has the empty path.
func leaves(g *model.Group) iter.Seq2[string, *model.Group] {
	return func(yield func(string, *model.Group) bool) {
		var walk func(g *model.Group, path []string) bool
		walk = func(g *model.Group, path []string) bool {
			if g.IsLeaf() {
				return yield(strings.Join(path, "/"), g)
			}
			for _, child := range g.Groups {
				if !walk(child, append(path, child.Label())) {
					return false
				}
			}
			return true
		}
		walk(g, nil)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
