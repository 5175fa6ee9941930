// Copyright 2025 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
)

// schedulerLockName is the lease that makes one scheduler instance active
// per store.
const schedulerLockName = "ingestion-scheduler"

// Processor runs the ingestion for a single document source.
// pipeline.Driver is the production implementation.
type Processor interface {
	Process(ctx context.Context, source *core.DocSource) ([]*core.Document, error)
}

// Config holds the scheduler's timing and retry knobs.
type Config struct {
	PollInterval   time.Duration
	LockTTL        time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MaxRetries     int
	RetryHorizon   time.Duration
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:   time.Second,
		LockTTL:        30 * time.Second,
		RetryBaseDelay: 10 * time.Second,
		RetryMaxDelay:  60 * time.Second,
		MaxRetries:     3,
		RetryHorizon:   24 * time.Hour,
	}
}

// Scheduler polls for pending document sources and processes them on a
// bounded worker pool.
type Scheduler struct {
	sources   storage.DocSourceStore
	locks     storage.LockStore
	processor Processor
	cfg       Config
	token     string
	logger    *slog.Logger

	mu       sync.Mutex
	started  bool
	pool     *ants.Pool
	cancel   context.CancelFunc
	loopDone chan struct{}
	inflight map[string]struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewScheduler creates a scheduler over the given stores and processor.
func NewScheduler(sources storage.DocSourceStore, locks storage.LockStore, processor Processor, cfg Config, opts ...Option) (*Scheduler, error) {
	if sources == nil {
		return nil, ErrDocSourceStoreRequired
	}
	if locks == nil {
		return nil, ErrLockStoreRequired
	}
	if processor == nil {
		return nil, ErrProcessorRequired
	}

	s := &Scheduler{
		sources:   sources,
		locks:     locks,
		processor: processor,
		cfg:       cfg,
		token:     core.NewUUID(),
		logger:    slog.Default(),
		inflight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start acquires the scheduler lease and begins polling with workerCount
// workers. Returns false when this instance is already running or another
// live instance holds the lease; the caller can proceed either way,
// knowing a scheduler is active somewhere.
func (s *Scheduler) Start(ctx context.Context, workerCount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return false, nil
	}
	if workerCount < 1 {
		workerCount = 1
	}

	acquired, err := s.locks.AcquireLock(ctx, schedulerLockName, s.token, s.cfg.LockTTL)
	if err != nil {
		return false, err
	}
	if !acquired {
		s.logger.Info("scheduler lease held by another instance")
		return false, nil
	}

	pool, err := ants.NewPool(workerCount, ants.WithPanicHandler(func(r any) {
		s.logger.Error("scheduler worker panic", "panic", r)
	}))
	if err != nil {
		s.locks.ReleaseLock(ctx, schedulerLockName, s.token)
		return false, err
	}

	// The poll loop outlives the Start caller's context.
	loopCtx, cancel := context.WithCancel(context.Background())
	s.pool = pool
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.started = true

	go s.pollLoop(loopCtx)

	s.logger.Info("scheduler started", "workers", workerCount)
	return true, nil
}

// Running reports whether this instance holds the scheduler lease.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stop halts polling, waits for the loop to exit, and releases the lease.
// In-flight workers finish their current source.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.loopDone
	pool := s.pool
	s.started = false
	s.mu.Unlock()

	cancel()
	<-done
	pool.Release()

	if err := s.locks.ReleaseLock(ctx, schedulerLockName, s.token); err != nil {
		s.logger.Warn("failed to release scheduler lease", "err", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// Submit dispatches a source for immediate processing instead of waiting
// for the next poll tick. Submitting a source that is already in flight
// is a no-op.
func (s *Scheduler) Submit(ctx context.Context, uuid string) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.mu.Unlock()

	source, err := s.sources.GetDocSource(ctx, uuid)
	if err != nil {
		return err
	}
	s.dispatch(source)
	return nil
}

// WaitForCompletion blocks until the source reaches a terminal status or
// the timeout elapses. Returns true when the source finished in time.
func (s *Scheduler) WaitForCompletion(ctx context.Context, uuid string, timeout time.Duration) (bool, error) {
	return s.sources.WaitForDocSource(ctx, uuid, timeout)
}

// pollLoop scans for pending work until its context is cancelled. Each
// tick also renews the scheduler lease.
func (s *Scheduler) pollLoop(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	// Scan once immediately so submitted work isn't delayed by a full tick.
	s.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := s.locks.AcquireLock(ctx, schedulerLockName, s.token, s.cfg.LockTTL)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Error("failed to renew scheduler lease", "err", err)
				}
				continue
			}
			if !renewed {
				s.logger.Warn("scheduler lease lost, resetting instance")
				s.resetAfterLeaseLoss()
				return
			}
			s.scan(ctx)
		}
	}
}

// resetAfterLeaseLoss tears the instance down from inside the poll loop
// so a later Start can run again. The lease itself is already gone, only
// local state needs cleaning up. No-op when a concurrent Stop got there
// first.
func (s *Scheduler) resetAfterLeaseLoss() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	pool := s.pool
	s.started = false
	s.mu.Unlock()

	cancel()
	pool.Release()
}

// scan dispatches every source that is ready to run: fresh sources and
// failed sources whose backoff has elapsed. Sources older than the retry
// horizon are leftovers of a dead deployment and are never dispatched.
func (s *Scheduler) scan(ctx context.Context) {
	pending, err := s.sources.ListDocSourcesByStatus(ctx, core.DocSourceCreated, core.DocSourceFailed)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("failed to scan for pending sources", "err", err)
		}
		return
	}

	now := time.Now().UTC()
	for _, source := range pending {
		if s.abandoned(source, now) {
			continue
		}
		if source.Status == core.DocSourceFailed && !s.retryEligible(source, now) {
			continue
		}
		s.dispatch(source)
	}
}

// abandoned reports whether a source is older than the retry horizon.
func (s *Scheduler) abandoned(source *core.DocSource, now time.Time) bool {
	return now.Sub(source.CreatedAt) > s.cfg.RetryHorizon
}

// retryEligible reports whether a failed source should run again: it has
// retry budget left, is still within the retry horizon of its last
// failure, and its backoff delay has elapsed.
func (s *Scheduler) retryEligible(source *core.DocSource, now time.Time) bool {
	if source.RetryCount >= s.cfg.MaxRetries {
		return false
	}
	sinceFailure := now.Sub(source.UpdatedAt)
	if sinceFailure > s.cfg.RetryHorizon {
		return false
	}
	return sinceFailure >= Backoff(source.RetryCount, s.cfg.RetryBaseDelay, s.cfg.RetryMaxDelay)
}

// dispatch queues a source on the worker pool unless it is already in
// flight.
func (s *Scheduler) dispatch(source *core.DocSource) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	if _, live := s.inflight[source.UUID]; live {
		s.mu.Unlock()
		return
	}
	s.inflight[source.UUID] = struct{}{}
	pool := s.pool
	s.mu.Unlock()

	uuid := source.UUID
	if err := pool.Submit(func() {
		defer s.clearInflight(uuid)
		s.processOne(uuid)
	}); err != nil {
		s.clearInflight(uuid)
		s.logger.Error("failed to queue source", "source", uuid, "err", err)
	}
}

func (s *Scheduler) clearInflight(uuid string) {
	s.mu.Lock()
	delete(s.inflight, uuid)
	s.mu.Unlock()
}

// processOne runs the ingestion for a single source behind its per-source
// lease. Failures are contained here: the source is marked failed and the
// worker returns to the pool.
func (s *Scheduler) processOne(uuid string) {
	ctx := context.Background()
	logger := s.logger.With("source", uuid)

	locked, err := s.locks.AcquireLock(ctx, sourceLockName(uuid), s.token, s.cfg.LockTTL)
	if err != nil {
		logger.Error("failed to acquire source lease", "err", err)
		return
	}
	if !locked {
		logger.Debug("source lease held elsewhere, skipping")
		return
	}
	defer func() {
		if err := s.locks.ReleaseLock(ctx, sourceLockName(uuid), s.token); err != nil {
			logger.Warn("failed to release source lease", "err", err)
		}
	}()

	source, err := s.sources.UpdateDocSourceStatus(ctx, uuid, core.DocSourceProcessing)
	if err != nil {
		// Terminal or already-processing sources are not an error here;
		// another instance may have won the race before our lease.
		if errors.Is(err, core.ErrInvalidStatusTransition) || errors.Is(err, storage.ErrNotFound) {
			logger.Debug("source no longer runnable", "err", err)
			return
		}
		logger.Error("failed to mark source processing", "err", err)
		return
	}

	documents, err := s.processor.Process(ctx, source)
	if err != nil {
		s.handleFailure(ctx, source, err, logger)
		return
	}

	if _, err := s.sources.UpdateDocSourceStatus(ctx, uuid, core.DocSourceCompleted); err != nil {
		logger.Error("failed to mark source completed", "err", err)
		return
	}
	logger.Info("source completed", "chunks", len(documents))
}

func (s *Scheduler) handleFailure(ctx context.Context, source *core.DocSource, procErr error, logger *slog.Logger) {
	failed, err := s.sources.MarkDocSourceFailed(ctx, source.UUID)
	if err != nil {
		logger.Error("failed to mark source failed", "err", err, "cause", procErr)
		return
	}

	if failed.RetryCount >= s.cfg.MaxRetries {
		logger.Error("source failed permanently",
			"attempts", failed.RetryCount,
			"err", procErr)
		return
	}

	delay := Backoff(failed.RetryCount, s.cfg.RetryBaseDelay, s.cfg.RetryMaxDelay)
	logger.Warn("source failed, will retry",
		"attempt", failed.RetryCount,
		"nextRetryIn", delay,
		"err", procErr)
}

func sourceLockName(uuid string) string {
	return "docsource:" + uuid
}
