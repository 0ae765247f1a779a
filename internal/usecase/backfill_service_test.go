package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/repository"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/testutil"
	"go.uber.org/zap"
)

// flakyBackfillStore fails the nth SaveProgress call once.
type flakyBackfillStore struct {
	*testutil.MemoryBackfillStore
	mu     sync.Mutex
	calls  int
	failOn int
}

func (s *flakyBackfillStore) SaveProgress(ctx context.Context, state *entity.BackfillState, t entity.EntityType) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls == s.failOn
	s.mu.Unlock()
	if fail {
		return errors.New("connection reset by peer")
	}
	return s.MemoryBackfillStore.SaveProgress(ctx, state, t)
}

// seedBackfill adds three customers and two charges.
func seedBackfill(h *harness) int {
	for i := 1; i <= 3; i++ {
		h.source.Add(entity.Customer, map[string]interface{}{
			"id":     fmt.Sprintf("cu_%d", i),
			"object": "customer",
			"name":   fmt.Sprintf("Customer %d", i),
		})
	}
	for i := 1; i <= 2; i++ {
		h.source.Add(entity.Charge, map[string]interface{}{
			"id":       fmt.Sprintf("ch_%d", i),
			"object":   "charge",
			"customer": fmt.Sprintf("cu_%d", i),
			"amount":   float64(1000 * i),
			"currency": "usd",
		})
	}
	return 5
}

func newBackfill(svc *SyncService, store repository.BackfillRepository, attempts int) *BackfillService {
	return NewBackfillService(svc, store, BackfillConfig{
		PageSize:     1,
		StepAttempts: attempts,
		RetryBackoff: time.Millisecond,
	}, zap.NewNop())
}

func createdCount(d *testutil.FakeDestination) int {
	n := 0
	for _, w := range d.Writes {
		if w.Created {
			n++
		}
	}
	return n
}

func TestBackfill_RunsEveryListableType(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer", "charge")
	n := seedBackfill(h)
	// types without a database are completed without listing
	h.source.ListErrors[entity.Product] = errors.New("must not be listed")

	state, err := newBackfill(h.svc, testutil.NewMemoryBackfillStore(), 1).Run(ctx, testTenant)
	require.NoError(t, err)

	assert.Equal(t, entity.BackfillComplete, state.Status)
	assert.EqualValues(t, n, state.RecordsProcessed)
	assert.NotEmpty(t, state.RunID)
	assert.NotNil(t, state.FinishedAt)
	assert.Equal(t, n, h.dest.WriteCount())

	count, err := h.mappings.Count(ctx, testTenant, "")
	require.NoError(t, err)
	assert.EqualValues(t, n, count)

	// charges found their customers in the mapping cache
	assert.Empty(t, h.source.Fetches)
}

func TestBackfill_ResumesAfterRestart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer", "charge")
	n := seedBackfill(h)
	store := testutil.NewMemoryBackfillStore()

	first := newBackfill(h.svc, store, 1)
	for i := 0; i < 2; i++ {
		result, err := first.Step(ctx, testTenant)
		require.NoError(t, err)
		assert.Equal(t, entity.Customer, result.EntityType)
		assert.Equal(t, 1, result.Records)
	}

	persisted, err := store.Load(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, entity.BackfillRunning, persisted.Status)
	assert.Equal(t, "cu_2", persisted.Cursor(entity.Customer).Cursor)

	// a new process picks up at the persisted cursor
	restarted := newBackfill(h.newService(t), store, 1)
	state, err := restarted.Run(ctx, testTenant)
	require.NoError(t, err)

	assert.Equal(t, entity.BackfillComplete, state.Status)
	assert.EqualValues(t, n, state.RecordsProcessed)
	assert.Equal(t, n, createdCount(h.dest))
	assert.Equal(t, n, h.dest.WriteCount())

	count, err := h.mappings.Count(ctx, testTenant, "")
	require.NoError(t, err)
	assert.EqualValues(t, n, count)
}

func TestBackfill_ReprocessedRecordIsNotWrittenTwice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer", "charge")
	n := seedBackfill(h)
	// the write of cu_1 succeeds but its cursor is lost
	store := &flakyBackfillStore{MemoryBackfillStore: testutil.NewMemoryBackfillStore(), failOn: 1}

	state, err := newBackfill(h.svc, store, 2).Run(ctx, testTenant)
	require.NoError(t, err)

	assert.Equal(t, entity.BackfillComplete, state.Status)
	assert.EqualValues(t, n, state.RecordsProcessed)
	assert.Equal(t, n, h.dest.WriteCount())
}

func TestBackfill_SkipsPoisonRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer", "charge")
	n := seedBackfill(h)
	h.dest.FailKeys["ch_2"] = &domainErrors.DestinationError{StatusCode: 400, APICode: "validation_error", Message: "Amount is invalid"}

	state, err := newBackfill(h.svc, testutil.NewMemoryBackfillStore(), 2).Run(ctx, testTenant)
	require.NoError(t, err)

	assert.Equal(t, entity.BackfillComplete, state.Status)
	assert.EqualValues(t, n-1, state.RecordsProcessed)
	assert.Equal(t, "ch_2", state.Cursor(entity.Charge).Cursor)
	assert.Equal(t, n-1, h.dest.WriteCount())

	recorded, err := h.errors.Get(ctx, testTenant, entity.Charge)
	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.Equal(t, entity.SyncErrorDestinationWrite, recorded.Kind)
	assert.Equal(t, 2, recorded.Count)
}

func TestBackfill_StopsOnAuthFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer")
	seedBackfill(h)
	h.dest.Err = &domainErrors.DestinationError{StatusCode: 401, APICode: "unauthorized", Message: "API token is invalid."}
	store := testutil.NewMemoryBackfillStore()

	_, err := newBackfill(h.svc, store, 3).Run(ctx, testTenant)
	require.Error(t, err)
	assert.True(t, domainErrors.IsAuthError(err))

	state, err := store.Load(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, entity.BackfillRunning, state.Status)
	assert.Empty(t, state.Cursor(entity.Customer).Cursor)
}

func TestBackfill_StopsWhenListingFails(t *testing.T) {
	h := newHarness(t, "customer")
	h.source.ListErrors[entity.Customer] = &domainErrors.TransientError{Op: "GET /v1/customers", Cause: context.DeadlineExceeded}

	_, err := newBackfill(h.svc, testutil.NewMemoryBackfillStore(), 2).Run(context.Background(), testTenant)
	require.Error(t, err)
	assert.Equal(t, entity.SyncErrorTransient, domainErrors.Classify(err))
}

func TestBackfill_StartStatusAndReset(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer")
	seedBackfill(h)
	bf := newBackfill(h.svc, testutil.NewMemoryBackfillStore(), 1)

	started, err := bf.Start(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, entity.BackfillRunning, started.Status)

	require.Eventually(t, func() bool {
		state, err := bf.Status(ctx, testTenant)
		return err == nil && state.Status == entity.BackfillComplete && !bf.isRunning(testTenant)
	}, 5*time.Second, 10*time.Millisecond)

	result, err := bf.Step(ctx, testTenant)
	require.NoError(t, err)
	assert.True(t, result.Done)

	require.NoError(t, bf.Reset(ctx, testTenant))
	state, err := bf.Status(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, entity.BackfillPending, state.Status)

	_, err = bf.Status(ctx, "nobody")
	assert.ErrorIs(t, err, domainErrors.ErrUnknownTenant)
}

// gatedBackfillStore holds the first Reset until gate is closed.
type gatedBackfillStore struct {
	*testutil.MemoryBackfillStore
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (s *gatedBackfillStore) Reset(ctx context.Context, tenantID string) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.gate
	}
	return s.MemoryBackfillStore.Reset(ctx, tenantID)
}

func TestBackfill_StartHoldsSlotWhilePreparing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer")
	seedBackfill(h)
	store := &gatedBackfillStore{
		MemoryBackfillStore: testutil.NewMemoryBackfillStore(),
		entered:             make(chan struct{}),
		gate:                make(chan struct{}),
	}
	bf := newBackfill(h.svc, store, 1)

	firstDone := make(chan error, 1)
	go func() {
		_, err := bf.Start(ctx, testTenant)
		firstDone <- err
	}()
	<-store.entered

	// the first Start is still resetting state
	_, err := bf.Start(ctx, testTenant)
	assert.ErrorIs(t, err, ErrBackfillRunning)
	assert.ErrorIs(t, bf.Reset(ctx, testTenant), ErrBackfillRunning)
	_, err = bf.Run(ctx, testTenant)
	assert.ErrorIs(t, err, ErrBackfillRunning)

	close(store.gate)
	require.NoError(t, <-firstDone)

	require.Eventually(t, func() bool {
		state, err := bf.Status(ctx, testTenant)
		return err == nil && state.Status == entity.BackfillComplete && !bf.isRunning(testTenant)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, createdCount(h.dest))
}
