/*
sweeper.go - Automated response-timeout sweeper

PURPOSE:
  Periodically scans assigned-but-unaccepted requests whose response
  deadline has passed and drives them through the timeout transition,
  which reassigns each to the next eligible assistant.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Every transition goes through the controller, which re-validates
    preconditions with conditional writes; a request that was accepted
    or reassigned between the scan and the transition is skipped, so
    concurrent accepts never lose
  - The sweep is idempotent: running it twice in a row is harmless

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewTimeoutSweeper(store, ctrl, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: RunSweep endpoint (manual sweep)
  - assign/controller.go: Timeout transition
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/salonhub/assist-engine/assign"
)

// TimeoutSweeper expires unanswered assignments on a schedule.
type TimeoutSweeper struct {
	Store         assign.RequestStore
	Controller    *assign.Controller
	CheckInterval time.Duration
	Enabled       bool
	Logger        *zap.Logger

	// Now is overridable for tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// SweepResult summarizes one pass over the assigned requests.
type SweepResult struct {
	Checked    int
	TimedOut   int
	Reassigned int
	RequestIDs []string
}

// NewTimeoutSweeper creates a sweeper with a one-minute check interval.
func NewTimeoutSweeper(store assign.RequestStore, ctrl *assign.Controller, logger *zap.Logger) *TimeoutSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeoutSweeper{
		Store:         store,
		Controller:    ctrl,
		CheckInterval: 1 * time.Minute,
		Enabled:       true,
		Logger:        logger,
		Now:           time.Now,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (ts *TimeoutSweeper) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.Enabled {
		ts.Logger.Info("sweeper disabled, not starting")
		return
	}

	ts.ticker = time.NewTicker(ts.CheckInterval)
	ts.wg.Add(1)

	go ts.run()

	ts.Logger.Info("sweeper started", zap.Duration("check_interval", ts.CheckInterval))
}

// Stop stops the sweeper.
func (ts *TimeoutSweeper) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.ticker != nil {
		ts.ticker.Stop()
		close(ts.stop)
		ts.wg.Wait()
		ts.Logger.Info("sweeper stopped")
	}
}

func (ts *TimeoutSweeper) run() {
	defer ts.wg.Done()

	// Run immediately on start
	ts.Sweep(context.Background())

	for {
		select {
		case <-ts.ticker.C:
			ts.Sweep(context.Background())
		case <-ts.stop:
			return
		}
	}
}

// Sweep makes one pass: every assigned request past its response deadline is
// timed out and handed to the next assistant in line.
func (ts *TimeoutSweeper) Sweep(ctx context.Context) SweepResult {
	var result SweepResult
	now := ts.Now()

	status := assign.StatusAssigned
	reqs, err := ts.Store.List(ctx, assign.RequestFilter{Status: &status})
	if err != nil {
		ts.Logger.Error("sweep: failed to list assigned requests", zap.Error(err))
		return result
	}

	for i := range reqs {
		r := &reqs[i]
		result.Checked++

		if r.AcceptedAt != nil || !r.ResponseExpired(now) {
			continue
		}

		out, err := ts.Controller.Timeout(ctx, r.ID)
		switch {
		case err == nil:
			result.TimedOut++
			result.RequestIDs = append(result.RequestIDs, string(r.ID))
			if out.Assistant != nil {
				result.Reassigned++
			}
		case errors.Is(err, assign.ErrAlreadyAccepted),
			errors.Is(err, assign.ErrResponseNotExpired),
			errors.Is(err, assign.ErrRequestStateChanged),
			errors.Is(err, assign.ErrRequestNotFound):
			// Lost the race to an accept or another transition; nothing to do.
			continue
		default:
			ts.Logger.Error("sweep: timeout transition failed",
				zap.String("request_id", string(r.ID)),
				zap.Error(err))
		}
	}

	if result.TimedOut > 0 {
		ts.Logger.Info("sweep completed",
			zap.Int("checked", result.Checked),
			zap.Int("timed_out", result.TimedOut),
			zap.Int("reassigned", result.Reassigned))
	}
	return result
}
