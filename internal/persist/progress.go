package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SolveRecord is written once a run solves its level.
type SolveRecord struct {
	LevelID     string
	Fingerprint string
	RunID       uuid.UUID
	Turns       uint64
	SolvedAt    time.Time
}

// Progress is the persistence collaborator the simulation talks to.
type Progress interface {
	// IsFresh reports whether this level version has never been started,
	// and records that it now has been.
	IsFresh(ctx context.Context, levelID, fingerprint string, run uuid.UUID) (bool, error)
	MarkSolved(ctx context.Context, rec SolveRecord) error
	Solved(ctx context.Context, levelID, fingerprint string) (bool, error)
}

// ProgressRepo stores progress in PostgreSQL.
type ProgressRepo struct {
	db *DB
}

func NewProgressRepo(db *DB) *ProgressRepo {
	return &ProgressRepo{db: db}
}

func (r *ProgressRepo) IsFresh(ctx context.Context, levelID, fingerprint string, run uuid.UUID) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var visits int
	if err := tx.QueryRow(ctx,
		`INSERT INTO level_progress (level_id, fingerprint)
		 VALUES ($1, $2)
		 ON CONFLICT (level_id, fingerprint)
		 DO UPDATE SET visits = level_progress.visits + 1
		 RETURNING visits`,
		levelID, fingerprint,
	).Scan(&visits); err != nil {
		return false, fmt.Errorf("record visit: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO runs (run_id, level_id, fingerprint) VALUES ($1::uuid, $2, $3)`,
		run.String(), levelID, fingerprint,
	); err != nil {
		return false, fmt.Errorf("record run: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return visits == 1, nil
}

func (r *ProgressRepo) MarkSolved(ctx context.Context, rec SolveRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// the first solve of a level version is the one kept
	if _, err := tx.Exec(ctx,
		`UPDATE level_progress
		 SET solved_at = $3, solved_run = $4::uuid, solve_turns = $5
		 WHERE level_id = $1 AND fingerprint = $2 AND solved_at IS NULL`,
		rec.LevelID, rec.Fingerprint, rec.SolvedAt, rec.RunID.String(), int64(rec.Turns),
	); err != nil {
		return fmt.Errorf("mark level solved: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE runs SET solved_at = $2 WHERE run_id = $1::uuid`,
		rec.RunID.String(), rec.SolvedAt,
	); err != nil {
		return fmt.Errorf("mark run solved: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *ProgressRepo) Solved(ctx context.Context, levelID, fingerprint string) (bool, error) {
	var solved bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM level_progress
		     WHERE level_id = $1 AND fingerprint = $2 AND solved_at IS NOT NULL)`,
		levelID, fingerprint,
	).Scan(&solved)
	if err != nil {
		return false, fmt.Errorf("query solved: %w", err)
	}
	return solved, nil
}

// MemoryProgress keeps progress for the lifetime of the process. Used when
// no database is configured.
type MemoryProgress struct {
	mu     sync.Mutex
	visits map[string]int
	solved map[string]SolveRecord
}

func NewMemoryProgress() *MemoryProgress {
	return &MemoryProgress{
		visits: make(map[string]int),
		solved: make(map[string]SolveRecord),
	}
}

func progressKey(levelID, fingerprint string) string {
	return levelID + "@" + fingerprint
}

func (m *MemoryProgress) IsFresh(_ context.Context, levelID, fingerprint string, _ uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := progressKey(levelID, fingerprint)
	m.visits[k]++
	return m.visits[k] == 1, nil
}

func (m *MemoryProgress) MarkSolved(_ context.Context, rec SolveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := progressKey(rec.LevelID, rec.Fingerprint)
	if _, ok := m.solved[k]; !ok {
		m.solved[k] = rec
	}
	return nil
}

func (m *MemoryProgress) Solved(_ context.Context, levelID, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.solved[progressKey(levelID, fingerprint)]
	return ok, nil
}

// Record returns the kept solve record for a level version.
func (m *MemoryProgress) Record(levelID, fingerprint string) (SolveRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.solved[progressKey(levelID, fingerprint)]
	return rec, ok
}
