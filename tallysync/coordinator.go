package tallysync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/models"
	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AnalyticsInvalidator is the slice of the cache layer the coordinator needs:
// dropping a company's cached analytics after a successful recompute.
type AnalyticsInvalidator interface {
	InvalidateCompany(ctx context.Context, companyGuid string) error
}

// StepRunner executes one data step and reports how many records it touched.
// The voucher step calls progress as batches land so polls can show movement.
type StepRunner func(ctx context.Context, step SyncStep, companyGuid string, syncedAt time.Time, progress func(done, total int)) (int, error)

// RecomputeFunc rebuilds all derived analytics for one company. It runs as
// the final sync step, before cache invalidation.
type RecomputeFunc func(ctx context.Context, db *gorm.DB, companyGuid string) error

// Coordinator serializes refreshes per company. At most one sync runs for a
// company at a time; a second manual trigger is rejected, a second auto
// trigger is deferred and retried once the running sync finishes.
type Coordinator struct {
	DB     *gorm.DB
	Client Client
	Cache  AnalyticsInvalidator
	Locker *redislock.Client
	Logger *logrus.Logger

	// Test seams. When nil, defaultStepRunner / defaultRecompute are used.
	StepRunner StepRunner
	Recompute  RecomputeFunc

	mu     sync.Mutex
	states map[string]*companyState
}

type companyState struct {
	running      bool
	deferredAuto bool
	run          *SyncRun
	lastRun      *SyncRun
}

func NewCoordinator(db *gorm.DB, client Client, cache AnalyticsInvalidator, locker *redislock.Client, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		DB:     db,
		Client: client,
		Cache:  cache,
		Locker: locker,
		Logger: logger,
		states: make(map[string]*companyState),
	}
}

func (c *Coordinator) state(companyGuid string) *companyState {
	st, ok := c.states[companyGuid]
	if !ok {
		st = &companyState{}
		c.states[companyGuid] = st
	}
	return st
}

// StartSync begins a refresh for the company unless one is already running.
// Manual triggers get an immediate busy rejection; auto triggers are marked
// deferred and re-fired after the running sync completes.
func (c *Coordinator) StartSync(ctx context.Context, companyGuid string, trigger SyncTrigger) (*StartSyncResponse, error) {
	if companyGuid == "" {
		return nil, utils.NewConfigurationError("company_guid")
	}

	c.mu.Lock()
	st := c.state(companyGuid)
	if st.running {
		if trigger == SyncTriggerAuto {
			st.deferredAuto = true
			c.mu.Unlock()
			return &StartSyncResponse{Accepted: false, Reason: "deferred: sync in progress"}, nil
		}
		c.mu.Unlock()
		return nil, utils.ErrSyncBusy
	}
	run := &SyncRun{
		CompanyGuid: companyGuid,
		Trigger:     trigger,
		Status:      SyncStatusRunning,
		StartedAt:   time.Now(),
		StepCounts:  make(map[SyncStep]int),
	}
	st.running = true
	st.run = run
	c.mu.Unlock()

	go c.runSync(companyGuid, run)

	return &StartSyncResponse{Accepted: true}, nil
}

func (c *Coordinator) runSync(companyGuid string, run *SyncRun) {
	ctx := utils.SetCompanyGuidInContext(context.Background(), companyGuid)

	if c.Locker != nil {
		lock, err := c.Locker.Obtain(ctx, "tallysync:run:"+companyGuid, 30*time.Minute, nil)
		if err != nil {
			c.finish(companyGuid, run, "", fmt.Errorf("obtain sync lease: %w", err))
			return
		}
		defer lock.Release(context.Background())
	}

	syncedAt := time.Now()
	stepRunner := c.StepRunner
	if stepRunner == nil {
		ig := &ingester{db: c.DB, client: c.Client, logger: c.Logger}
		stepRunner = ig.runStep
	}
	recompute := c.Recompute
	if recompute == nil {
		recompute = defaultRecompute
	}

	for _, step := range StepOrder {
		c.setStep(run, step)

		var count int
		var err error
		if step == StepAnalytics {
			err = recompute(ctx, c.DB, companyGuid)
		} else {
			count, err = stepRunner(ctx, step, companyGuid, syncedAt, func(done, total int) {
				c.setProgress(run, done, total)
			})
		}
		if err != nil {
			c.finish(companyGuid, run, step, utils.NewStepFailure(string(step), err))
			return
		}
		c.recordStep(run, step, count)
	}

	// Invalidation is sequenced strictly after the recompute so readers
	// never repopulate the cache from pre-sync tables.
	if c.Cache != nil {
		if err := c.Cache.InvalidateCompany(ctx, companyGuid); err != nil && c.Logger != nil {
			c.Logger.WithFields(logrus.Fields{
				"company_guid": companyGuid,
			}).WithError(err).Warn("cache invalidation after sync failed")
		}
	}
	if c.DB != nil {
		if err := models.MarkCompanyRefreshed(ctx, c.DB, companyGuid, time.Now()); err != nil && c.Logger != nil {
			c.Logger.WithError(err).Warn("failed to stamp last_full_refresh_at")
		}
	}

	c.finish(companyGuid, run, "", nil)
}

// defaultRecompute runs the derivation chain in dependency order: aging first
// (dashboard metrics read its rows), then cycles, then scores (which read the
// cycle rows).
func defaultRecompute(ctx context.Context, db *gorm.DB, companyGuid string) error {
	if _, err := models.ComputeOutstandingAging(ctx, db, companyGuid); err != nil {
		return err
	}
	if err := models.RebuildDashboardMetrics(ctx, db, companyGuid); err != nil {
		return err
	}
	if err := models.ComputePaymentCycles(ctx, db, companyGuid); err != nil {
		return err
	}
	return models.ComputeVendorScores(ctx, db, companyGuid)
}

func (c *Coordinator) setStep(run *SyncRun, step SyncStep) {
	c.mu.Lock()
	run.CurrentStep = step
	run.ProgressCurrent = 0
	run.ProgressTotal = 0
	run.stepStartedAt = time.Now()
	c.mu.Unlock()
}

func (c *Coordinator) setProgress(run *SyncRun, done, total int) {
	c.mu.Lock()
	run.ProgressCurrent = done
	run.ProgressTotal = total
	c.mu.Unlock()
}

func (c *Coordinator) recordStep(run *SyncRun, step SyncStep, count int) {
	c.mu.Lock()
	run.StepCounts[step] = count
	c.mu.Unlock()
}

func (c *Coordinator) finish(companyGuid string, run *SyncRun, failedStep SyncStep, err error) {
	now := time.Now()

	c.mu.Lock()
	if err != nil {
		run.Status = SyncStatusFailed
		run.FailedStep = failedStep
		run.Error = err.Error()
	} else {
		run.Status = SyncStatusSuccess
	}
	run.FinishedAt = &now
	st := c.state(companyGuid)
	st.running = false
	st.run = nil
	st.lastRun = run
	retryAuto := st.deferredAuto
	st.deferredAuto = false
	c.mu.Unlock()

	if c.Logger != nil {
		entry := c.Logger.WithFields(logrus.Fields{
			"company_guid": companyGuid,
			"trigger":      run.Trigger,
			"duration_ms":  now.Sub(run.StartedAt).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Error("sync failed")
		} else {
			entry.Info("sync completed")
		}
	}

	if retryAuto {
		if _, startErr := c.StartSync(context.Background(), companyGuid, SyncTriggerAuto); startErr != nil && c.Logger != nil {
			c.Logger.WithError(startErr).Warn("deferred auto sync could not start")
		}
	}
}

// Progress reports the state of the running sync, or the outcome of the last
// completed one. ETA is extrapolated from voucher-step throughput and is
// absent until enough batches have landed to extrapolate from.
func (c *Coordinator) Progress(companyGuid string) *ProgressResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[companyGuid]
	if !ok || (st.run == nil && st.lastRun == nil) {
		return &ProgressResponse{Status: SyncStatusIdle}
	}

	run := st.run
	if run == nil {
		run = st.lastRun
		resp := &ProgressResponse{
			IsRunning:     false,
			Trigger:       run.Trigger,
			Status:        run.Status,
			PerStepCounts: copyStepCounts(run.StepCounts),
			FailedStep:    run.FailedStep,
			LastError:     run.Error,
		}
		if run.FinishedAt != nil {
			resp.ElapsedMs = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
		}
		return resp
	}

	resp := &ProgressResponse{
		IsRunning:       true,
		Trigger:         run.Trigger,
		Status:          run.Status,
		CurrentStep:     run.CurrentStep,
		ElapsedMs:       time.Since(run.StartedAt).Milliseconds(),
		PerStepCounts:   copyStepCounts(run.StepCounts),
		ProgressCurrent: run.ProgressCurrent,
		ProgressTotal:   run.ProgressTotal,
	}
	if run.ProgressCurrent > 0 && run.ProgressTotal > run.ProgressCurrent {
		elapsed := time.Since(run.stepStartedAt)
		perItem := elapsed / time.Duration(run.ProgressCurrent)
		remaining := time.Duration(run.ProgressTotal-run.ProgressCurrent) * perItem
		resp.EstimatedRemainingMs = remaining.Milliseconds()
	}
	return resp
}

func copyStepCounts(in map[SyncStep]int) map[SyncStep]int {
	out := make(map[SyncStep]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
