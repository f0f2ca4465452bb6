package store

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/taskwell/workpool/internal/models"
)

// HistoryStore persists terminal job outcomes for diagnostics.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Insert records one finished job run.
func (s *HistoryStore) Insert(ctx context.Context, run models.JobRun) error {
	_, err := s.db.ExecContext(ctx, queryInsertJobRun,
		int64(run.JobID),
		run.PoolID,
		run.Workload,
		string(run.Status),
		run.Result,
		run.Error,
		run.SubmittedAt,
		run.FinishedAt,
	)
	return err
}

// Purge removes runs that finished before the cutoff.
func (s *HistoryStore) Purge(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, queryPurgeJobRuns, before)
	return err
}

func (s *HistoryStore) List(ctx context.Context, opts ...ListOption) ([]models.JobRun, error) {
	builder := sq.Select(
		"job_id",
		"pool_id",
		"workload",
		"status",
		"result",
		"error",
		"submitted_at",
		"finished_at",
	).From("job_runs")

	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.JobRun
	for rows.Next() {
		var run models.JobRun
		var jobID int64
		var status string
		err := rows.Scan(
			&jobID,
			&run.PoolID,
			&run.Workload,
			&status,
			&run.Result,
			&run.Error,
			&run.SubmittedAt,
			&run.FinishedAt,
		)
		if err != nil {
			return nil, err
		}
		run.JobID = uint64(jobID)
		run.Status = models.RunStatus(status)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (s *HistoryStore) Count(ctx context.Context, opts ...ListOption) (int, error) {
	builder := sq.Select("COUNT(*)").From("job_runs")

	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

type ListOption func(sq.SelectBuilder) sq.SelectBuilder

func ByStatus(statuses ...string) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(statuses) == 0 {
			return b
		}
		return b.Where(sq.Eq{"status": statuses})
	}
}

func ByWorkload(workloads ...string) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(workloads) == 0 {
			return b
		}
		return b.Where(sq.Eq{"workload": workloads})
	}
}

func ByFinishedAfter(t time.Time) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Where(sq.GtOrEq{"finished_at": t})
	}
}

func WithLimit(limit uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Limit(limit)
	}
}

func WithOffset(offset uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Offset(offset)
	}
}

// WithDefaultSort orders newest runs first, job id as tie-breaker.
func WithDefaultSort() ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.OrderBy("finished_at DESC", "job_id DESC")
	}
}
