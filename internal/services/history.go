package services

import (
	"context"

	"github.com/taskwell/workpool/internal/models"
	"github.com/taskwell/workpool/internal/store"
)

type History struct {
	store *store.Store
}

func NewHistoryService(st *store.Store) *History {
	return &History{store: st}
}

type HistoryListParams struct {
	Statuses  []string
	Workloads []string
	Limit     uint64
	Offset    uint64
}

type HistoryListResult struct {
	Runs  []models.JobRun
	Total int
}

func (s *History) List(ctx context.Context, params HistoryListParams) (*HistoryListResult, error) {
	opts := s.buildListOptions(params)
	opts = append(opts, store.WithDefaultSort())

	runs, err := s.store.History().List(ctx, opts...)
	if err != nil {
		return nil, err
	}

	// Total count ignores pagination
	countOpts := s.buildListOptions(HistoryListParams{
		Statuses:  params.Statuses,
		Workloads: params.Workloads,
	})
	total, err := s.store.History().Count(ctx, countOpts...)
	if err != nil {
		return nil, err
	}

	return &HistoryListResult{
		Runs:  runs,
		Total: total,
	}, nil
}

func (s *History) buildListOptions(params HistoryListParams) []store.ListOption {
	var opts []store.ListOption

	if len(params.Statuses) > 0 {
		opts = append(opts, store.ByStatus(params.Statuses...))
	}
	if len(params.Workloads) > 0 {
		opts = append(opts, store.ByWorkload(params.Workloads...))
	}
	if params.Limit > 0 {
		opts = append(opts, store.WithLimit(params.Limit))
	}
	if params.Offset > 0 {
		opts = append(opts, store.WithOffset(params.Offset))
	}

	return opts
}
