package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quarrylabs/quarry/core"
	"github.com/quarrylabs/quarry/storage"
	badgerstore "github.com/quarrylabs/quarry/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProcessor counts calls and fails a configurable number of times per
// source before succeeding.
type stubProcessor struct {
	mu        sync.Mutex
	calls     map[string]int
	failTimes int
	block     chan struct{}
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{calls: make(map[string]int)}
}

func (p *stubProcessor) Process(ctx context.Context, source *core.DocSource) ([]*core.Document, error) {
	p.mu.Lock()
	p.calls[source.UUID]++
	count := p.calls[source.UUID]
	block := p.block
	p.mu.Unlock()

	if block != nil {
		<-block
	}
	if count <= p.failTimes {
		return nil, errors.New("simulated processing failure")
	}
	return []*core.Document{{UUID: core.NewUUID(), KBID: source.KBID}}, nil
}

func (p *stubProcessor) callCount(uuid string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[uuid]
}

func fastConfig() Config {
	return Config{
		PollInterval:   20 * time.Millisecond,
		LockTTL:        5 * time.Second,
		RetryBaseDelay: 10 * time.Millisecond,
		RetryMaxDelay:  40 * time.Millisecond,
		MaxRetries:     3,
		RetryHorizon:   time.Hour,
	}
}

func newSchedulerFixture(t *testing.T, processor Processor, cfg Config) (*badgerstore.MemoryStores, *Scheduler) {
	t.Helper()
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	sched, err := NewScheduler(stores.DocSources, stores.Locks, processor, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sched.Stop(context.Background()) })
	return stores, sched
}

func createSource(t *testing.T, stores *badgerstore.MemoryStores, uri string) *core.DocSource {
	t.Helper()
	source, err := stores.DocSources.CreateDocSource(context.Background(), &core.DocSourceCreate{
		KBID:       "kb-1",
		SourceType: core.DocSourceURL,
		URI:        uri,
	})
	require.NoError(t, err)
	return source
}

func TestScheduler_StartIsExclusive(t *testing.T) {
	ctx := context.Background()
	stores, first := newSchedulerFixture(t, newStubProcessor(), fastConfig())

	started, err := first.Start(ctx, 2)
	require.NoError(t, err)
	assert.True(t, started)

	// The same instance refuses a second Start.
	started, err = first.Start(ctx, 2)
	require.NoError(t, err)
	assert.False(t, started)

	// A second instance over the same store is refused while the lease is
	// live.
	second, err := NewScheduler(stores.DocSources, stores.Locks, newStubProcessor(), fastConfig())
	require.NoError(t, err)
	started, err = second.Start(ctx, 2)
	require.NoError(t, err)
	assert.False(t, started)

	// After a clean stop, the lease is free again.
	require.NoError(t, first.Stop(ctx))
	started, err = second.Start(ctx, 2)
	require.NoError(t, err)
	assert.True(t, started)
	second.Stop(ctx)
}

func TestScheduler_PollPicksUpCreatedSources(t *testing.T) {
	ctx := context.Background()
	processor := newStubProcessor()
	stores, sched := newSchedulerFixture(t, processor, fastConfig())

	source := createSource(t, stores, "https://example.com/a")

	started, err := sched.Start(ctx, 2)
	require.NoError(t, err)
	require.True(t, started)

	done, err := sched.WaitForCompletion(ctx, source.UUID, 5*time.Second)
	require.NoError(t, err)
	require.True(t, done)

	final, err := stores.DocSources.GetDocSource(ctx, source.UUID)
	require.NoError(t, err)
	assert.Equal(t, core.DocSourceCompleted, final.Status)
	assert.Equal(t, 1, processor.callCount(source.UUID))
}

func TestScheduler_SubmitIsNoOpWhileInFlight(t *testing.T) {
	ctx := context.Background()
	processor := newStubProcessor()
	processor.block = make(chan struct{})
	stores, sched := newSchedulerFixture(t, processor, Config{
		// A long poll interval keeps the loop out of this test.
		PollInterval:   time.Hour,
		LockTTL:        5 * time.Second,
		RetryBaseDelay: 10 * time.Millisecond,
		RetryMaxDelay:  40 * time.Millisecond,
		MaxRetries:     3,
		RetryHorizon:   time.Hour,
	})

	source := createSource(t, stores, "https://example.com/a")
	started, err := sched.Start(ctx, 2)
	require.NoError(t, err)
	require.True(t, started)

	require.NoError(t, sched.Submit(ctx, source.UUID))

	// Wait until the worker has picked the source up.
	require.Eventually(t, func() bool {
		return processor.callCount(source.UUID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Re-submitting while it runs must not start a second worker.
	require.NoError(t, sched.Submit(ctx, source.UUID))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, processor.callCount(source.UUID))

	close(processor.block)

	done, err := sched.WaitForCompletion(ctx, source.UUID, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestScheduler_RetriesFailedSourceWithBackoff(t *testing.T) {
	ctx := context.Background()
	processor := newStubProcessor()
	processor.failTimes = 2
	stores, sched := newSchedulerFixture(t, processor, fastConfig())

	source := createSource(t, stores, "https://example.com/flaky")

	started, err := sched.Start(ctx, 2)
	require.NoError(t, err)
	require.True(t, started)

	// Two failures, then success on the third attempt.
	require.Eventually(t, func() bool {
		current, err := stores.DocSources.GetDocSource(ctx, source.UUID)
		return err == nil && current.Status == core.DocSourceCompleted
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, 3, processor.callCount(source.UUID))
}

func TestScheduler_MaxRetriesIsPermanent(t *testing.T) {
	ctx := context.Background()
	processor := newStubProcessor()
	processor.failTimes = 100
	stores, sched := newSchedulerFixture(t, processor, fastConfig())

	source := createSource(t, stores, "https://example.com/doomed")

	started, err := sched.Start(ctx, 2)
	require.NoError(t, err)
	require.True(t, started)

	// The retry budget is exhausted after MaxRetries attempts.
	require.Eventually(t, func() bool {
		current, err := stores.DocSources.GetDocSource(ctx, source.UUID)
		return err == nil && current.RetryCount >= fastConfig().MaxRetries
	}, 10*time.Second, 20*time.Millisecond)

	// No further attempts happen once the budget is spent.
	attempts := processor.callCount(source.UUID)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, attempts, processor.callCount(source.UUID))
	assert.Equal(t, fastConfig().MaxRetries, attempts)

	final, err := stores.DocSources.GetDocSource(ctx, source.UUID)
	require.NoError(t, err)
	assert.Equal(t, core.DocSourceFailed, final.Status)
}

// cannedPendingStore serves a fixed pending list while delegating
// everything else to a real store.
type cannedPendingStore struct {
	storage.DocSourceStore
	pending []*core.DocSource
}

func (s *cannedPendingStore) ListDocSourcesByStatus(ctx context.Context, statuses ...core.DocSourceStatus) ([]*core.DocSource, error) {
	return s.pending, nil
}

func TestScheduler_SkipsSourcesPastRetryHorizon(t *testing.T) {
	ctx := context.Background()
	processor := newStubProcessor()

	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	abandoned := createSource(t, stores, "https://example.com/abandoned")
	fresh := createSource(t, stores, "https://example.com/fresh")

	// A Created source left behind long before the retry horizon.
	aged := *abandoned
	aged.CreatedAt = time.Now().UTC().Add(-72 * time.Hour)

	sched, err := NewScheduler(&cannedPendingStore{
		DocSourceStore: stores.DocSources,
		pending:        []*core.DocSource{&aged, fresh},
	}, stores.Locks, processor, fastConfig())
	require.NoError(t, err)
	t.Cleanup(func() { sched.Stop(context.Background()) })

	started, err := sched.Start(ctx, 2)
	require.NoError(t, err)
	require.True(t, started)

	done, err := sched.WaitForCompletion(ctx, fresh.UUID, 5*time.Second)
	require.NoError(t, err)
	require.True(t, done)

	// Several more poll ticks pass without the stale source being touched.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, processor.callCount(abandoned.UUID))

	current, err := stores.DocSources.GetDocSource(ctx, abandoned.UUID)
	require.NoError(t, err)
	assert.Equal(t, core.DocSourceCreated, current.Status)
}

func TestScheduler_LeaseLossResetsInstance(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	// A TTL shorter than the poll interval leaves an expiry window between
	// renewals that a rival can claim the lease in.
	cfg.PollInterval = 30 * time.Millisecond
	cfg.LockTTL = 15 * time.Millisecond
	stores, sched := newSchedulerFixture(t, newStubProcessor(), cfg)

	started, err := sched.Start(ctx, 1)
	require.NoError(t, err)
	require.True(t, started)

	rival := core.NewUUID()
	require.Eventually(t, func() bool {
		ok, err := stores.Locks.AcquireLock(ctx, schedulerLockName, rival, time.Minute)
		return err == nil && ok
	}, 2*time.Second, 5*time.Millisecond)

	// The next failed renewal resets the instance instead of leaving it
	// stuck in a started-but-not-polling state.
	require.Eventually(t, func() bool {
		return !sched.Running()
	}, 2*time.Second, 10*time.Millisecond)

	// While the rival holds the lease, a restart is refused cleanly.
	started, err = sched.Start(ctx, 1)
	require.NoError(t, err)
	assert.False(t, started)

	// Once the lease frees up, the same instance starts again.
	require.NoError(t, stores.Locks.ReleaseLock(ctx, schedulerLockName, rival))
	started, err = sched.Start(ctx, 1)
	require.NoError(t, err)
	assert.True(t, started)
	require.NoError(t, sched.Stop(ctx))
}

func TestScheduler_RetryHorizonExpires(t *testing.T) {
	processor := newStubProcessor()
	cfg := fastConfig()
	cfg.RetryHorizon = time.Nanosecond
	_, sched := newSchedulerFixture(t, processor, cfg)

	stale := &core.DocSource{
		UUID:       core.NewUUID(),
		Status:     core.DocSourceFailed,
		RetryCount: 1,
		UpdatedAt:  time.Now().UTC().Add(-time.Minute),
	}
	assert.False(t, sched.retryEligible(stale, time.Now().UTC()))
}

func TestScheduler_WaitForCompletionTimesOut(t *testing.T) {
	ctx := context.Background()
	processor := newStubProcessor()
	stores, sched := newSchedulerFixture(t, processor, Config{
		PollInterval:   time.Hour,
		LockTTL:        5 * time.Second,
		RetryBaseDelay: 10 * time.Millisecond,
		RetryMaxDelay:  40 * time.Millisecond,
		MaxRetries:     3,
		RetryHorizon:   time.Hour,
	})

	// Never dispatched: the poll interval is an hour and nothing submits it.
	source := createSource(t, stores, "https://example.com/waiting")

	started, err := sched.Start(ctx, 1)
	require.NoError(t, err)
	require.True(t, started)

	done, err := sched.WaitForCompletion(ctx, source.UUID, 300*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestScheduler_SubmitRequiresStart(t *testing.T) {
	stores, sched := newSchedulerFixture(t, newStubProcessor(), fastConfig())
	source := createSource(t, stores, "https://example.com/a")

	err := sched.Submit(context.Background(), source.UUID)
	assert.ErrorIs(t, err, ErrNotStarted)
}
