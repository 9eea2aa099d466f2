package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

var sweepBase = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeWindowRepo struct {
	running   []domain.SlaWindow
	updated   []domain.SlaWindow
	updateErr error
}

func (f *fakeWindowRepo) Create(context.Context, *domain.SlaWindow) error { return nil }

func (f *fakeWindowRepo) Update(_ context.Context, window *domain.SlaWindow) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, *window)
	return nil
}

func (f *fakeWindowRepo) GetCurrent(context.Context, string, domain.SlaWindowKind) (*domain.SlaWindow, error) {
	return nil, nil
}

func (f *fakeWindowRepo) ListByTicket(context.Context, string) ([]domain.SlaWindow, error) {
	return nil, nil
}

func (f *fakeWindowRepo) ListRunning(context.Context, int) ([]domain.SlaWindow, error) {
	return f.running, nil
}

func runningWindow(ticketID string, target time.Duration, startedAt time.Time) domain.SlaWindow {
	w := sla.NewWindow(ticketID, domain.SlaWindowResolution, target, startedAt)
	w.ID = "win-" + ticketID
	w.Version = 1
	return *w
}

func newSweeper(repo *fakeWindowRepo, dispatcher events.Dispatcher, now time.Time) (*SlaSweeper, *observability.Metrics) {
	metrics := observability.NewMetrics()
	sweeper := NewSlaSweeper(SweeperDependencies{
		SlaWindowRepo: repo,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Clock:         fixedClock{now: now},
		Interval:      time.Minute,
		RiskThreshold: 30 * time.Minute,
		BatchSize:     100,
	})
	return sweeper, metrics
}

func captureEvents(dispatcher events.Dispatcher, types ...events.EventType) *[]events.Event {
	var captured []events.Event
	for _, eventType := range types {
		dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			captured = append(captured, e)
			return nil
		})
	}
	return &captured
}

func TestSweepOnce_MarksOverdueWindowBreached(t *testing.T) {
	repo := &fakeWindowRepo{running: []domain.SlaWindow{
		runningWindow("t1", time.Hour, sweepBase),
	}}
	dispatcher := events.NewInMemoryDispatcher()
	captured := captureEvents(dispatcher, events.EventSlaBreached)

	sweeper, metrics := newSweeper(repo, dispatcher, sweepBase.Add(2*time.Hour))
	sweeper.SweepOnce(context.Background())

	require.Len(t, repo.updated, 1)
	assert.Equal(t, domain.SlaStateBreached, repo.updated[0].State)
	assert.Equal(t, 2*time.Hour, repo.updated[0].AccumulatedActive)

	require.Len(t, *captured, 1)
	assert.Equal(t, "t1", (*captured)[0].TicketID)
	payload, ok := (*captured)[0].Payload.(events.SlaPayload)
	require.True(t, ok)
	assert.Equal(t, domain.SlaWindowResolution, payload.Kind)

	breaches := metrics.Snapshot()["sla_breaches"].(map[string]int64)
	assert.Equal(t, int64(1), breaches[string(domain.SlaWindowResolution)])
}

func TestSweepOnce_EmitsAtRiskWithoutPersisting(t *testing.T) {
	repo := &fakeWindowRepo{running: []domain.SlaWindow{
		runningWindow("t1", time.Hour, sweepBase),
	}}
	dispatcher := events.NewInMemoryDispatcher()
	captured := captureEvents(dispatcher, events.EventSlaAtRisk)

	// 45 minutes in, 15 remaining, risk threshold 30m.
	sweeper, metrics := newSweeper(repo, dispatcher, sweepBase.Add(45*time.Minute))
	sweeper.SweepOnce(context.Background())

	assert.Empty(t, repo.updated, "at-risk windows stay untouched in storage")
	require.Len(t, *captured, 1)
	payload := (*captured)[0].Payload.(events.SlaPayload)
	assert.Equal(t, 15*time.Minute, payload.Remaining)

	atRisk := metrics.Snapshot()["sla_at_risk"].(map[string]int64)
	assert.Equal(t, int64(1), atRisk[string(domain.SlaWindowResolution)])
}

func TestSweepOnce_HealthyWindowUntouched(t *testing.T) {
	repo := &fakeWindowRepo{running: []domain.SlaWindow{
		runningWindow("t1", 4*time.Hour, sweepBase),
	}}
	dispatcher := events.NewInMemoryDispatcher()
	captured := captureEvents(dispatcher, events.EventSlaAtRisk, events.EventSlaBreached)

	sweeper, _ := newSweeper(repo, dispatcher, sweepBase.Add(time.Hour))
	sweeper.SweepOnce(context.Background())

	assert.Empty(t, repo.updated)
	assert.Empty(t, *captured)
}

func TestSweepOnce_ConflictSkipsBreachEvent(t *testing.T) {
	repo := &fakeWindowRepo{
		running:   []domain.SlaWindow{runningWindow("t1", time.Hour, sweepBase)},
		updateErr: util.NewConflict("sla window modified concurrently", nil),
	}
	dispatcher := events.NewInMemoryDispatcher()
	captured := captureEvents(dispatcher, events.EventSlaBreached)

	sweeper, metrics := newSweeper(repo, dispatcher, sweepBase.Add(2*time.Hour))
	sweeper.SweepOnce(context.Background())

	assert.Empty(t, *captured, "a concurrently modified window is left for the next pass")
	breaches := metrics.Snapshot()["sla_breaches"].(map[string]int64)
	assert.Empty(t, breaches)
}

func TestRun_DisabledWithoutInterval(t *testing.T) {
	repo := &fakeWindowRepo{}
	sweeper := NewSlaSweeper(SweeperDependencies{
		SlaWindowRepo: repo,
		Interval:      0,
	})

	done := make(chan struct{})
	go func() {
		sweeper.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper with zero interval should return immediately")
	}
}
