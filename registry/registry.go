// Package registry persists the provenance record of every definition the
// engine has processed: its terminal disposition, output location, attempt
// count, and accumulated token cost. The registry is what makes repeated
// runs idempotent.
package registry

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/clinsight/takforge/errors"
)

// Disposition is the lifecycle state of one definition in the registry.
type Disposition string

const (
	// DispositionPending marks a definition seen but not yet resolved.
	DispositionPending Disposition = "pending"
	// DispositionValid marks an artifact that passed both validators.
	DispositionValid Disposition = "valid"
	// DispositionInvalid marks a definition whose attempt budget ran out,
	// or whose last artifact duplicated a rejected one.
	DispositionInvalid Disposition = "invalid"
	// DispositionNeedsReview marks an artifact the business validator
	// could not confirm or refute. A human decides; the engine never
	// retries it.
	DispositionNeedsReview Disposition = "needs_review"
)

// ErrNotFound is returned by Get when the definition has no registry row.
var ErrNotFound = errors.New("definition not registered")

// Entry is one definition's provenance record.
type Entry struct {
	ID             string
	Disposition    Disposition
	OutputPath     string
	AttemptsUsed   int
	TotalTokenCost int
	RunID          string
	LastRunAt      time.Time
}

// Usage is one oracle call's token accounting, kept per attempt.
type Usage struct {
	DefinitionID     string
	RunID            string
	Attempt          int
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Registry is a SQLite-backed provenance store. Writes to the same
// definition id are serialized so concurrent workers cannot interleave
// partial updates.
type Registry struct {
	db *sql.DB
	mu sync.Mutex
}

// New wraps an already-migrated database handle.
func New(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Get returns the registry entry for a definition id, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, disposition, output_path, attempts_used, total_token_cost, run_id, last_run_at
		FROM tak_registry WHERE id = ?`, id)

	var e Entry
	err := row.Scan(&e.ID, &e.Disposition, &e.OutputPath, &e.AttemptsUsed,
		&e.TotalTokenCost, &e.RunID, &e.LastRunAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get registry entry %s", id)
	}
	return &e, nil
}

// Put upserts a definition's provenance record. The engine calls this once
// per terminal disposition, so token cost and attempts arrive already
// summed across the run's attempts.
func (r *Registry) Put(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.LastRunAt.IsZero() {
		e.LastRunAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tak_registry (id, disposition, output_path, attempts_used, total_token_cost, run_id, last_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			disposition = excluded.disposition,
			output_path = excluded.output_path,
			attempts_used = excluded.attempts_used,
			total_token_cost = excluded.total_token_cost,
			run_id = excluded.run_id,
			last_run_at = excluded.last_run_at`,
		e.ID, string(e.Disposition), e.OutputPath, e.AttemptsUsed,
		e.TotalTokenCost, e.RunID, e.LastRunAt)
	if err != nil {
		return errors.Wrapf(err, "put registry entry %s", e.ID)
	}
	return nil
}

// List returns all registry entries ordered by definition id.
func (r *Registry) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, disposition, output_path, attempts_used, total_token_cost, run_id, last_run_at
		FROM tak_registry ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list registry entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Disposition, &e.OutputPath, &e.AttemptsUsed,
			&e.TotalTokenCost, &e.RunID, &e.LastRunAt); err != nil {
			return nil, errors.Wrap(err, "scan registry entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByDisposition returns how many definitions sit in each state.
func (r *Registry) CountByDisposition(ctx context.Context) (map[Disposition]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT disposition, COUNT(*) FROM tak_registry GROUP BY disposition`)
	if err != nil {
		return nil, errors.Wrap(err, "count registry entries")
	}
	defer rows.Close()

	counts := make(map[Disposition]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, errors.Wrap(err, "scan disposition count")
		}
		counts[Disposition(d)] = n
	}
	return counts, rows.Err()
}

// RecordUsage appends one attempt's oracle token accounting.
func (r *Registry) RecordUsage(ctx context.Context, u Usage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oracle_usage (definition_id, run_id, attempt, model, prompt_tokens, completion_tokens, total_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.DefinitionID, u.RunID, u.Attempt, u.Model,
		u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	if err != nil {
		return errors.Wrapf(err, "record oracle usage for %s attempt %d", u.DefinitionID, u.Attempt)
	}
	return nil
}

// UsageForRun returns the usage rows recorded under one run id, ordered by
// definition and attempt.
func (r *Registry) UsageForRun(ctx context.Context, runID string) ([]Usage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT definition_id, run_id, attempt, model, prompt_tokens, completion_tokens, total_tokens
		FROM oracle_usage WHERE run_id = ? ORDER BY definition_id, attempt`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "usage for run %s", runID)
	}
	defer rows.Close()

	var usages []Usage
	for rows.Next() {
		var u Usage
		if err := rows.Scan(&u.DefinitionID, &u.RunID, &u.Attempt, &u.Model,
			&u.PromptTokens, &u.CompletionTokens, &u.TotalTokens); err != nil {
			return nil, errors.Wrap(err, "scan usage row")
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}
