// Package retention removes export artifacts that outlived their retention
// window. The ledger rows stay; only the stored object is deleted and the
// row flagged as swept.
package retention

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-exports/core"
)

// Sweeper scans for requests older than the retention window that still
// hold an artifact, deletes the stored object, and marks the row swept.
type Sweeper struct {
	requests  core.RequestStore
	artifacts core.ArtifactStore
	logger    core.Logger
	maxAge    time.Duration
	batchSize int
	now       func() time.Time
}

type Option func(*Sweeper)

func WithLogger(logger core.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithMaxAge(maxAge time.Duration) Option {
	return func(s *Sweeper) {
		if maxAge > 0 {
			s.maxAge = maxAge
		}
	}
}

func WithBatchSize(batchSize int) Option {
	return func(s *Sweeper) {
		if batchSize > 0 {
			s.batchSize = batchSize
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSweeper(requests core.RequestStore, artifacts core.ArtifactStore, options ...Option) (*Sweeper, error) {
	if requests == nil {
		return nil, fmt.Errorf("retention: request store is required")
	}
	if artifacts == nil {
		return nil, fmt.Errorf("retention: artifact store is required")
	}
	defaults := core.DefaultConfig().Retention
	sweeper := &Sweeper{
		requests:  requests,
		artifacts: artifacts,
		maxAge:    defaults.MaxAge,
		batchSize: defaults.BatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(sweeper)
	}
	sweeper.logger = glog.Ensure(sweeper.logger)
	return sweeper, nil
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Scanned int
	Deleted int
	Missing int
	Failed  int
}

// Sweep runs one pass over the sweepable batch. Individual failures are
// logged and skipped so one broken object cannot stall the whole pass; the
// row is only marked swept after the object is gone.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	if s == nil || s.requests == nil || s.artifacts == nil {
		return SweepResult{}, fmt.Errorf("retention: sweeper is not configured")
	}
	cutoff := s.now().Add(-s.maxAge)
	candidates, err := s.requests.ListSweepable(ctx, cutoff, s.batchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("retention: list sweepable requests: %w", err)
	}

	result := SweepResult{Scanned: len(candidates)}
	for _, request := range candidates {
		deleted, missing, sweepErr := s.sweepOne(ctx, request)
		switch {
		case sweepErr != nil:
			result.Failed++
			s.logger.Error("artifact sweep failed",
				"request_id", request.ID,
				"error", sweepErr.Error(),
			)
		case deleted:
			result.Deleted++
		case missing:
			result.Missing++
		}
	}

	s.logger.Info("retention sweep finished",
		"cutoff", cutoff.Format(time.RFC3339),
		"scanned", result.Scanned,
		"deleted", result.Deleted,
		"missing", result.Missing,
		"failed", result.Failed,
	)
	return result, nil
}

// Run sweeps on the given interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("retention sweep pass failed", "error", err.Error())
			}
		}
	}
}

func (s *Sweeper) sweepOne(ctx context.Context, request core.ExportRequest) (deleted bool, missing bool, err error) {
	objectKey, err := s.artifacts.RelativeObjectPath(request.UploadURL)
	if err != nil {
		return false, false, fmt.Errorf("resolve object path: %w", err)
	}
	removed, err := s.artifacts.Delete(ctx, objectKey)
	if err != nil {
		return false, false, fmt.Errorf("delete object %s: %w", objectKey, err)
	}
	if err := s.requests.MarkSwept(ctx, request.ID); err != nil {
		return removed, !removed, fmt.Errorf("mark swept: %w", err)
	}
	return removed, !removed, nil
}
