package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/repository"
	pkgerrors "github.com/wekeepgrowing/stripe-notion-sync/pkg/errors"
	"go.uber.org/zap"
)

// ErrBackfillRunning is returned when a tenant's backfill is already being driven.
var ErrBackfillRunning = errors.New("backfill already running")

// RecordError is a step failure caused by one listed record.
type RecordError struct {
	EntityType entity.EntityType
	SourceID   string
	Cause      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("backfill %s %s: %v", e.EntityType, e.SourceID, e.Cause)
}

func (e *RecordError) Unwrap() error { return e.Cause }

// StepResult describes one backfill step.
type StepResult struct {
	EntityType entity.EntityType `json:"entity_type,omitempty"`
	Records    int               `json:"records"`
	// TypeCompleted is true when the step reached the end of the type's list.
	TypeCompleted bool                  `json:"type_completed"`
	Done          bool                  `json:"done"`
	State         *entity.BackfillState `json:"state"`
}

// BackfillConfig tunes the backfill driver.
type BackfillConfig struct {
	PageSize     int64
	StepAttempts int
	StepInterval time.Duration
	// RetryBackoff is the first delay between attempts of a failing step.
	RetryBackoff time.Duration
}

// BackfillService drives the resumable historical sync of a tenant.
type BackfillService struct {
	sync   *SyncService
	store  repository.BackfillRepository
	cfg    BackfillConfig
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	running map[string]bool
}

func NewBackfillService(syncService *SyncService, store repository.BackfillRepository, cfg BackfillConfig, logger *zap.Logger) *BackfillService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1
	}
	if cfg.StepAttempts <= 0 {
		cfg.StepAttempts = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &BackfillService{
		sync:    syncService,
		store:   store,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
		running: make(map[string]bool),
	}
}

// Status returns the persisted backfill state of a tenant.
func (b *BackfillService) Status(ctx context.Context, tenantID string) (*entity.BackfillState, error) {
	if _, err := b.sync.tenants.Get(tenantID); err != nil {
		return nil, err
	}
	return b.store.Load(ctx, tenantID)
}

// Reset drops the tenant's backfill progress. Mappings are kept, so a new run
// converges without duplicating destination records.
func (b *BackfillService) Reset(ctx context.Context, tenantID string) error {
	if _, err := b.sync.tenants.Get(tenantID); err != nil {
		return err
	}
	if b.isRunning(tenantID) {
		return ErrBackfillRunning
	}
	return b.store.Reset(ctx, tenantID)
}

func (b *BackfillService) begin(ctx context.Context, state *entity.BackfillState) error {
	now := b.now()
	state.RunID = uuid.NewString()
	state.Status = entity.BackfillRunning
	state.RecordsProcessed = 0
	state.CurrentEntity = ""
	state.StartedAt = &now
	state.FinishedAt = nil
	state.Cursors = nil

	b.logger.Info("Backfill started",
		zap.String("tenant_id", state.TenantID),
		zap.String("run_id", state.RunID))
	return b.store.SaveStatus(ctx, state)
}

func (b *BackfillService) finish(ctx context.Context, state *entity.BackfillState) error {
	now := b.now()
	state.Status = entity.BackfillComplete
	state.CurrentEntity = ""
	state.FinishedAt = &now

	b.logger.Info("Backfill complete",
		zap.String("tenant_id", state.TenantID),
		zap.String("run_id", state.RunID),
		zap.Int64("records_processed", state.RecordsProcessed))
	return b.store.SaveStatus(ctx, state)
}

// Step processes the next page of the first incomplete listable type. Progress
// is persisted after every record, so a failed step resumes after the last
// record it finished.
func (b *BackfillService) Step(ctx context.Context, tenantID string) (*StepResult, error) {
	rt, err := b.sync.runtime(tenantID)
	if err != nil {
		return nil, err
	}

	state, err := b.store.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	switch state.Status {
	case entity.BackfillComplete:
		return &StepResult{Done: true, State: state}, nil
	case entity.BackfillPending, "":
		if err := b.begin(ctx, state); err != nil {
			return nil, err
		}
	}

	order := b.sync.registry.Listable()
	t, ok := state.NextIncomplete(order)
	if !ok {
		if err := b.finish(ctx, state); err != nil {
			return nil, err
		}
		return &StepResult{Done: true, State: state}, nil
	}

	result := &StepResult{EntityType: t, State: state}
	state.CurrentEntity = t
	cursor := state.Cursor(t)
	cursor.Started = true

	if _, configured := rt.tenant.DatabaseFor(t); !configured {
		cursor.Completed = true
		result.TypeCompleted = true
		if err := b.store.SaveProgress(ctx, state, t); err != nil {
			return nil, err
		}
		return b.afterStep(ctx, state, order, result)
	}

	def, err := b.sync.registry.Lookup(t)
	if err != nil {
		return nil, err
	}
	page, err := rt.source.List(ctx, t, provider.ListOptions{
		Limit:         b.cfg.PageSize,
		StartingAfter: cursor.Cursor,
		Expand:        def.Expand,
	})
	if err != nil {
		return result, pkgerrors.Wrap(err, fmt.Sprintf("list %s after %q", t, cursor.Cursor))
	}

	for _, rec := range page.Records {
		if _, err := b.sync.SyncRecord(ctx, tenantID, rec, false); err != nil {
			return result, &RecordError{EntityType: t, SourceID: rec.ID, Cause: err}
		}
		cursor.Cursor = rec.ID
		cursor.Processed++
		state.RecordsProcessed++
		result.Records++
		if err := b.store.SaveProgress(ctx, state, t); err != nil {
			return result, err
		}
	}

	if !page.HasMore {
		cursor.Completed = true
		result.TypeCompleted = true
		if err := b.store.SaveProgress(ctx, state, t); err != nil {
			return result, err
		}
		b.logger.Info("Backfill entity type completed",
			zap.String("tenant_id", tenantID),
			zap.String("entity_type", string(t)),
			zap.Int64("processed", cursor.Processed))
	}

	return b.afterStep(ctx, state, order, result)
}

func (b *BackfillService) afterStep(ctx context.Context, state *entity.BackfillState, order []entity.EntityType, result *StepResult) (*StepResult, error) {
	if len(state.Remaining(order)) > 0 {
		return result, nil
	}
	if err := b.finish(ctx, state); err != nil {
		return result, err
	}
	result.Done = true
	return result, nil
}

// skip advances the cursor past a record that kept failing.
func (b *BackfillService) skip(ctx context.Context, tenantID string, recErr *RecordError) error {
	state, err := b.store.Load(ctx, tenantID)
	if err != nil {
		return err
	}
	state.Cursor(recErr.EntityType).Cursor = recErr.SourceID

	b.logger.Error("Skipping backfill record after repeated failures",
		zap.String("tenant_id", tenantID),
		zap.String("entity_type", string(recErr.EntityType)),
		zap.String("source_id", recErr.SourceID),
		zap.Error(recErr.Cause))
	return b.store.SaveProgress(ctx, state, recErr.EntityType)
}

func (b *BackfillService) isRunning(tenantID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running[tenantID]
}

func (b *BackfillService) acquire(tenantID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running[tenantID] {
		return false
	}
	b.running[tenantID] = true
	return true
}

func (b *BackfillService) release(tenantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.running, tenantID)
}

// Run steps the tenant's backfill until it is complete. A failing step is
// retried with exponential backoff; a record that still fails is skipped and
// stays recorded as a sync error. Auth and listing failures stop the run.
func (b *BackfillService) Run(ctx context.Context, tenantID string) (*entity.BackfillState, error) {
	if _, err := b.sync.tenants.Get(tenantID); err != nil {
		return nil, err
	}
	if !b.acquire(tenantID) {
		return nil, ErrBackfillRunning
	}
	defer b.release(tenantID)
	return b.run(ctx, tenantID)
}

// run drives the steps. The caller holds the tenant's slot.
func (b *BackfillService) run(ctx context.Context, tenantID string) (*entity.BackfillState, error) {
	for {
		var result *StepResult
		attempt := 0
		step := func() error {
			attempt++
			r, err := b.Step(ctx, tenantID)
			result = r
			if err != nil && (domainErrors.IsAuthError(err) || errors.Is(err, domainErrors.ErrUnknownTenant)) {
				return backoff.Permanent(err)
			}
			return err
		}
		notify := func(err error, wait time.Duration) {
			b.logger.Warn("Backfill step failed, retrying",
				zap.String("tenant_id", tenantID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(err))
		}

		err := backoff.RetryNotify(step, b.newBackOff(ctx), notify)
		if err != nil {
			var recErr *RecordError
			if errors.As(err, &recErr) && !domainErrors.IsAuthError(err) && ctx.Err() == nil {
				if skipErr := b.skip(ctx, tenantID, recErr); skipErr != nil {
					return nil, skipErr
				}
				continue
			}
			b.logger.Error("Backfill stopped",
				zap.String("tenant_id", tenantID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return nil, err
		}

		if result.Done {
			return result.State, nil
		}

		if b.cfg.StepInterval > 0 {
			select {
			case <-time.After(b.cfg.StepInterval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// Start begins a fresh run in the background. Mappings from earlier runs are
// reused, so already written records are not written again. The tenant's
// slot is held from here until the background run returns.
func (b *BackfillService) Start(ctx context.Context, tenantID string) (*entity.BackfillState, error) {
	if _, err := b.sync.tenants.Get(tenantID); err != nil {
		return nil, err
	}
	if !b.acquire(tenantID) {
		return nil, ErrBackfillRunning
	}

	state, err := b.prepare(ctx, tenantID)
	if err != nil {
		b.release(tenantID)
		return nil, err
	}

	go func() {
		defer b.release(tenantID)
		runCtx := context.WithoutCancel(ctx)
		if _, err := b.run(runCtx, tenantID); err != nil {
			b.logger.Error("Background backfill failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err))
		}
	}()
	return state, nil
}

// prepare resets a finished or pending run. An interrupted run is resumed.
func (b *BackfillService) prepare(ctx context.Context, tenantID string) (*entity.BackfillState, error) {
	state, err := b.store.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if state.Status == entity.BackfillRunning {
		return state, nil
	}
	if err := b.store.Reset(ctx, tenantID); err != nil {
		return nil, err
	}
	state = &entity.BackfillState{TenantID: tenantID}
	if err := b.begin(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (b *BackfillService) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.cfg.RetryBackoff
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(b.cfg.StepAttempts-1)), ctx)
}
