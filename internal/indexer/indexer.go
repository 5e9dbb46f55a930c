package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projindex/internal/linear"
	"github.com/fyrsmithlabs/projindex/internal/logging"
	"github.com/fyrsmithlabs/projindex/internal/naming"
	"github.com/fyrsmithlabs/projindex/internal/registry"
)

// ProjectService is the remote project API.
type ProjectService interface {
	Renamer
	ListProjects(ctx context.Context) ([]linear.Project, error)
}

// RecordStore persists newly indexed projects.
type RecordStore interface {
	Append(ctx context.Context, records []registry.Record) error
}

// Indexer runs one sync pass.
type Indexer struct {
	service     ProjectService
	store       RecordStore
	initiatives []naming.Initiative
	logger      *logging.Logger
}

// Result summarizes a run.
type Result struct {
	Fetched  int
	Matched  int
	Renamed  int
	Failed   int
	Counters Counters
	Records  []registry.Record
}

// New creates an Indexer for the given initiative codes, in priority order.
func New(service ProjectService, store RecordStore, codes []string, logger *logging.Logger) *Indexer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Indexer{
		service:     service,
		store:       store,
		initiatives: naming.Compile(codes),
		logger:      logger.Named("indexer"),
	}
}

// Run fetches, indexes, renames and persists.
//
// Fetch and timestamp errors abort the run before anything is renamed or
// written. Rename failures are skipped; the successful renames are still
// persisted and the failures are returned wrapped in ErrRenameFailed.
func (x *Indexer) Run(ctx context.Context) (*Result, error) {
	projects, err := x.service.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching projects: %w", err)
	}
	x.logger.Info(ctx, "projects fetched", zap.Int("count", len(projects)))

	counters := ScanCounters(x.initiatives, projects)
	for _, in := range x.initiatives {
		x.logger.Debug(ctx, "initiative baseline",
			zap.String("initiative", in.Code),
			zap.Int("max_index", counters[in.Code]),
		)
	}

	matches, err := MatchProjects(x.initiatives, projects)
	if err != nil {
		return nil, fmt.Errorf("matching projects: %w", err)
	}

	outcome, renameErr := Rename(ctx, x.service, counters, matches, x.logger)

	// Renames already applied remotely are recorded even when the loop was
	// interrupted.
	if err := x.store.Append(ctx, outcome.Records); err != nil {
		return nil, fmt.Errorf("persisting records: %w", err)
	}

	result := &Result{
		Fetched:  len(projects),
		Matched:  len(matches),
		Renamed:  len(outcome.Records),
		Failed:   len(outcome.Failures),
		Counters: outcome.Counters,
		Records:  outcome.Records,
	}

	x.logger.Info(ctx, "sync finished",
		zap.Int("fetched", result.Fetched),
		zap.Int("matched", result.Matched),
		zap.Int("renamed", result.Renamed),
		zap.Int("failed", result.Failed),
	)

	if renameErr != nil {
		return result, fmt.Errorf("renaming projects: %w", renameErr)
	}
	if len(outcome.Failures) > 0 {
		return result, fmt.Errorf("%w: %d of %d: %w",
			ErrRenameFailed, result.Failed, result.Failed+result.Renamed, errors.Join(outcome.Failures...))
	}
	return result, nil
}
