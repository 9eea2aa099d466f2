package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// SlaSweeper periodically scans running SLA windows, marks the ones past
// their target as breached and emits at-risk signals for windows close to
// it. Window updates are version guarded; a window that a concurrent ticket
// change touched first is skipped and picked up on the next pass.
type SlaSweeper struct {
	windows    repository.SlaWindowRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clock      sla.Clock
	interval   time.Duration
	risk       time.Duration
	batchSize  int
	logger     *zap.Logger
}

// SweeperDependencies bundles collaborators for the sweeper.
type SweeperDependencies struct {
	SlaWindowRepo repository.SlaWindowRepository
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Clock         sla.Clock
	Interval      time.Duration
	RiskThreshold time.Duration
	BatchSize     int
	Logger        *zap.Logger
}

// NewSlaSweeper constructs the sweeper.
func NewSlaSweeper(deps SweeperDependencies) *SlaSweeper {
	clock := deps.Clock
	if clock == nil {
		clock = sla.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlaSweeper{
		windows:    deps.SlaWindowRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		clock:      clock,
		interval:   deps.Interval,
		risk:       deps.RiskThreshold,
		batchSize:  deps.BatchSize,
		logger:     logger,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
// A zero interval disables the sweeper.
func (w *SlaSweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("sla sweeper disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("sla sweeper started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla sweeper stopped")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass over running windows.
func (w *SlaSweeper) SweepOnce(ctx context.Context) {
	running, err := w.windows.ListRunning(ctx, w.batchSize)
	if err != nil {
		w.logger.Warn("sweep listing failed", zap.Error(err))
		return
	}

	now := w.clock.Now()
	for i := range running {
		window := &running[i]
		remaining := sla.Remaining(window, now)
		switch {
		case remaining < 0:
			w.markBreached(ctx, window, now)
		case sla.AtRisk(window, now, w.risk):
			w.emitSlaEvent(ctx, events.EventSlaAtRisk, window, now)
			w.metrics.RecordSlaAtRisk(string(window.Kind))
		}
	}
}

func (w *SlaSweeper) markBreached(ctx context.Context, window *domain.SlaWindow, now time.Time) {
	sla.Complete(window, now)
	if window.State != domain.SlaStateBreached {
		return
	}
	if err := w.windows.Update(ctx, window); err != nil {
		if util.HasCode(err, util.CodeConflict) {
			return
		}
		w.logger.Warn("breach update failed",
			zap.String("window_id", window.ID),
			zap.Error(err))
		return
	}
	w.metrics.RecordSlaBreach(string(window.Kind))
	w.emitSlaEvent(ctx, events.EventSlaBreached, window, now)
}

func (w *SlaSweeper) emitSlaEvent(ctx context.Context, eventType events.EventType, window *domain.SlaWindow, now time.Time) {
	if w.dispatcher == nil {
		return
	}
	_ = w.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  window.TicketID,
		Actor:     events.System(),
		Timestamp: now,
		Payload: events.SlaPayload{
			Kind:      window.Kind,
			Remaining: sla.Remaining(window, now),
			DueAt:     sla.DueAt(window, now),
		},
	})
}
