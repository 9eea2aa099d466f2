package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/automation"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

var ticketBase = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// stepClock is a manually advanced clock.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]domain.Ticket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("t-%d", r.seq)
	ticket.Version = 1
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.Version++
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *memTicketRepo) GetByExternalKey(_ context.Context, key string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ExternalKey == key {
			t := ticket
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		result = append(result, ticket)
	}
	return result, nil
}

type memWindowRepo struct {
	mu      sync.Mutex
	seq     int
	windows []domain.SlaWindow
}

func (r *memWindowRepo) Create(_ context.Context, window *domain.SlaWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	window.ID = fmt.Sprintf("w-%d", r.seq)
	window.Version = 1
	r.windows = append(r.windows, *window)
	return nil
}

func (r *memWindowRepo) Update(_ context.Context, window *domain.SlaWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.windows {
		if r.windows[i].ID == window.ID {
			window.Version++
			r.windows[i] = *window
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memWindowRepo) GetCurrent(_ context.Context, ticketID string, kind domain.SlaWindowKind) (*domain.SlaWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.windows) - 1; i >= 0; i-- {
		if r.windows[i].TicketID == ticketID && r.windows[i].Kind == kind {
			w := r.windows[i]
			return &w, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memWindowRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.SlaWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.SlaWindow
	for _, window := range r.windows {
		if window.TicketID == ticketID {
			result = append(result, window)
		}
	}
	return result, nil
}

func (r *memWindowRepo) ListRunning(_ context.Context, _ int) ([]domain.SlaWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.SlaWindow
	for _, window := range r.windows {
		if window.State == domain.SlaStateRunning {
			result = append(result, window)
		}
	}
	return result, nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	seq      int
	messages []domain.TicketMessage
}

func (r *memMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	msg.ID = fmt.Sprintf("m-%d", r.seq)
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketMessage
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	return result, nil
}

type memHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (r *memHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type memCategoryRepo struct{ categories map[string]domain.Category }

func (r *memCategoryRepo) Create(_ context.Context, c *domain.Category) error { return nil }
func (r *memCategoryRepo) Update(_ context.Context, c *domain.Category) error { return nil }

func (r *memCategoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	category, ok := r.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &category, nil
}

func (r *memCategoryRepo) ListActive(_ context.Context) ([]domain.Category, error) {
	return nil, nil
}

type memStaffRepo struct{ members map[string]domain.StaffMember }

func (r *memStaffRepo) Create(_ context.Context, m *domain.StaffMember) error { return nil }
func (r *memStaffRepo) Update(_ context.Context, m *domain.StaffMember) error { return nil }

func (r *memStaffRepo) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	member, ok := r.members[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &member, nil
}

func (r *memStaffRepo) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	return nil, pgx.ErrNoRows
}

func (r *memStaffRepo) List(_ context.Context, _ repository.StaffFilter) ([]domain.StaffMember, error) {
	return nil, nil
}

// stubResolver hands back a fixed policy or a fixed error.
type stubResolver struct {
	policy *domain.SlaPolicy
	err    error
}

func (r *stubResolver) Resolve(_ context.Context, _ sla.PolicyScope) (*domain.SlaPolicy, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.policy, nil
}

type ticketFixture struct {
	svc        *TicketService
	tickets    *memTicketRepo
	windows    *memWindowRepo
	messages   *memMessageRepo
	history    *memHistoryRepo
	clock      *stepClock
	dispatcher events.Dispatcher
}

func newTicketFixture(resolver sla.PolicyResolver, rules repository.RuleRepository) *ticketFixture {
	f := &ticketFixture{
		tickets:    newMemTicketRepo(),
		windows:    &memWindowRepo{},
		messages:   &memMessageRepo{},
		history:    &memHistoryRepo{},
		clock:      &stepClock{now: ticketBase},
		dispatcher: events.NewInMemoryDispatcher(),
	}
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:    f.tickets,
		SlaWindowRepo: f.windows,
		MessageRepo:   f.messages,
		HistoryRepo:   f.history,
		CategoryRepo: &memCategoryRepo{categories: map[string]domain.Category{
			"cat-1": {ID: "cat-1", Name: "Hardware", IsActive: true},
		}},
		StaffRepo: &memStaffRepo{members: map[string]domain.StaffMember{
			"staff-1": {ID: "staff-1", Name: "Agent One", Role: domain.StaffRoleAgent, Active: true},
		}},
		RuleRepo:      rules,
		Lifecycle:     lifecycle.NewLifecycle(resolver, nil),
		Locker:        lifecycle.NewTicketLocker(),
		Dispatcher:    f.dispatcher,
		Metrics:       observability.NewMetrics(),
		Clock:         f.clock,
		RiskThreshold: 30 * time.Minute,
	})
	return f
}

func defaultResolver() *stubResolver {
	return &stubResolver{policy: &domain.SlaPolicy{
		FirstResponseTarget: time.Hour,
		ResolutionTarget:    4 * time.Hour,
	}}
}

func (f *ticketFixture) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), "user-1", TicketCreateInput{
		CategoryID:  "cat-1",
		Title:       "printer on fire",
		Description: "third floor",
	})
	require.NoError(t, err)
	return ticket
}

func (f *ticketFixture) mustTransition(t *testing.T, ticketID string, statuses ...domain.TicketStatus) {
	t.Helper()
	for _, status := range statuses {
		_, err := f.svc.ChangeStatus(context.Background(), ticketID, status, events.System(), 0)
		require.NoError(t, err, "transition to %s", status)
	}
}

func (f *ticketFixture) currentWindow(t *testing.T, ticketID string, kind domain.SlaWindowKind) *domain.SlaWindow {
	t.Helper()
	window, err := f.windows.GetCurrent(context.Background(), ticketID, kind)
	require.NoError(t, err)
	return window
}

func TestCreateTicket_StartsBothWindows(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	ticket := f.createTicket(t)

	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, domain.TicketPriorityP3, ticket.Priority, "priority defaults when omitted")
	assert.True(t, strings.HasPrefix(ticket.ExternalKey, "HD-"))

	fr := f.currentWindow(t, ticket.ID, domain.SlaWindowFirstResponse)
	res := f.currentWindow(t, ticket.ID, domain.SlaWindowResolution)
	assert.Equal(t, domain.SlaStateRunning, fr.State)
	assert.Equal(t, time.Hour, fr.TargetDuration)
	assert.Equal(t, domain.SlaStateRunning, res.State)
	assert.Equal(t, 4*time.Hour, res.TargetDuration)
}

func TestCreateTicket_PolicyMissIsNonBlocking(t *testing.T) {
	f := newTicketFixture(&stubResolver{err: util.NewPolicyNotFound(nil)}, nil)
	ticket := f.createTicket(t)

	windows, err := f.windows.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, windows, "ticket is created without windows when no policy matches")
}

func TestCreateTicket_InactiveCategoryRejected(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	_, err := f.svc.CreateTicket(context.Background(), "user-1", TicketCreateInput{
		CategoryID: "cat-missing",
		Title:      "x",
	})
	assert.True(t, util.HasCode(err, util.CodeNotFound))
}

func TestChangeStatus_WaitingPausesOnlyResolution(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	ticket := f.createTicket(t)

	f.mustTransition(t, ticket.ID, domain.TicketStatusTriaged, domain.TicketStatusInProgress)
	f.clock.Advance(time.Hour)
	f.mustTransition(t, ticket.ID, domain.TicketStatusWaitingOnRequester)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SlaPausedAt)

	res := f.currentWindow(t, ticket.ID, domain.SlaWindowResolution)
	assert.Equal(t, domain.SlaStatePaused, res.State)
	assert.Equal(t, time.Hour, res.AccumulatedActive)

	fr := f.currentWindow(t, ticket.ID, domain.SlaWindowFirstResponse)
	assert.Equal(t, domain.SlaStateRunning, fr.State, "first-response clock keeps running while waiting")

	// Waiting time is free: two hours later the resolution window has the
	// same remaining budget.
	f.clock.Advance(2 * time.Hour)
	f.mustTransition(t, ticket.ID, domain.TicketStatusInProgress)

	stored, err = f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.SlaPausedAt)
	res = f.currentWindow(t, ticket.ID, domain.SlaWindowResolution)
	assert.Equal(t, domain.SlaStateRunning, res.State)
	assert.Equal(t, time.Hour, res.AccumulatedActive)
}

func TestChangeStatus_ResolveSettlesWindows(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	ticket := f.createTicket(t)

	f.clock.Advance(2 * time.Hour)
	f.mustTransition(t, ticket.ID, domain.TicketStatusResolved)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)

	res := f.currentWindow(t, ticket.ID, domain.SlaWindowResolution)
	assert.Equal(t, domain.SlaStateMet, res.State)
	assert.Equal(t, 2*time.Hour, res.AccumulatedActive)

	// No reply ever happened, so resolving settles first response too; two
	// hours of silence against a one hour target is a breach.
	fr := f.currentWindow(t, ticket.ID, domain.SlaWindowFirstResponse)
	assert.Equal(t, domain.SlaStateBreached, fr.State)
}

func TestChangeStatus_ReopenStartsFreshResolutionWindow(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	ticket := f.createTicket(t)

	f.clock.Advance(time.Hour)
	f.mustTransition(t, ticket.ID, domain.TicketStatusResolved)
	frozen := f.currentWindow(t, ticket.ID, domain.SlaWindowResolution)

	f.clock.Advance(24 * time.Hour)
	f.mustTransition(t, ticket.ID, domain.TicketStatusReopened)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CompletedAt)

	fresh := f.currentWindow(t, ticket.ID, domain.SlaWindowResolution)
	assert.NotEqual(t, frozen.ID, fresh.ID)
	assert.Equal(t, domain.SlaStateRunning, fresh.State)
	assert.Zero(t, fresh.AccumulatedActive, "reopen does not inherit spent time")

	windows, err := f.windows.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, windows, 3, "the frozen window is kept for reporting")
}

func TestChangeStatus_RejectsInvalidEdge(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	ticket := f.createTicket(t)

	_, err := f.svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusClosed, events.System(), 0)
	assert.True(t, util.HasCode(err, util.CodeInvalidTransition))
}

func TestChangeStatus_ClosedOnlyReopens(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	ticket := f.createTicket(t)
	f.mustTransition(t, ticket.ID, domain.TicketStatusResolved, domain.TicketStatusClosed)

	_, err := f.svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusInProgress, events.System(), 0)
	assert.True(t, util.HasCode(err, util.CodeAlreadyTerminal))

	f.mustTransition(t, ticket.ID, domain.TicketStatusReopened)
}

func TestAddMessage_FirstStaffReplyRecordsFirstResponse(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	ticket := f.createTicket(t)
	staff := &domain.StaffMember{ID: "staff-1", Role: domain.StaffRoleAgent, Active: true}

	// An internal note is not a response to the requester.
	_, err := f.svc.AddMessage(context.Background(), domain.SubjectTypeStaff, staff.ID, staff, ticket.ID, domain.MessageTypeInternalNote, "checking the asset db")
	require.NoError(t, err)
	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.FirstResponseAt)

	f.clock.Advance(30 * time.Minute)
	_, err = f.svc.AddMessage(context.Background(), domain.SubjectTypeStaff, staff.ID, staff, ticket.ID, domain.MessageTypePublicReply, "on our way")
	require.NoError(t, err)

	stored, err = f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FirstResponseAt)
	firstRecorded := *stored.FirstResponseAt

	fr := f.currentWindow(t, ticket.ID, domain.SlaWindowFirstResponse)
	assert.Equal(t, domain.SlaStateMet, fr.State)
	assert.Equal(t, 30*time.Minute, fr.AccumulatedActive)

	// A later reply must not move the recorded response time.
	f.clock.Advance(time.Hour)
	_, err = f.svc.AddMessage(context.Background(), domain.SubjectTypeStaff, staff.ID, staff, ticket.ID, domain.MessageTypePublicReply, "fixed")
	require.NoError(t, err)
	stored, err = f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, firstRecorded, *stored.FirstResponseAt)
}

func TestAddMessage_UserCannotPostInternalNote(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	ticket := f.createTicket(t)

	_, err := f.svc.AddMessage(context.Background(), domain.SubjectTypeUser, "user-1", nil, ticket.ID, domain.MessageTypeInternalNote, "sneaky")
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))

	_, err = f.svc.AddMessage(context.Background(), domain.SubjectTypeUser, "user-2", nil, ticket.ID, domain.MessageTypePublicReply, "not mine")
	assert.True(t, util.HasCode(err, util.CodeForbidden))
}

func TestAssignTicket_RecordsHistoryAndValidatesStaff(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	ticket := f.createTicket(t)

	err := f.svc.AssignTicket(context.Background(), ticket.ID, "staff-1", events.System(), 0)
	require.NoError(t, err)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssigneeID)
	assert.Equal(t, "staff-1", *stored.AssigneeID)

	err = f.svc.AssignTicket(context.Background(), ticket.ID, "staff-ghost", events.System(), 0)
	assert.True(t, util.HasCode(err, util.CodeNotFound))

	history, err := f.history.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	var sawAssignee bool
	for _, entry := range history {
		if entry.ChangeType == domain.ChangeTypeAssignee {
			sawAssignee = true
		}
	}
	assert.True(t, sawAssignee)
}

func TestAutomation_RuleRunsOnCreate(t *testing.T) {
	rule := &domain.AutomationRule{
		ID:      "rule-esc",
		Name:    "bump default priority",
		Enabled: true,
		Conditions: []domain.AutomationCondition{
			{Field: domain.FieldPriority, Operator: domain.OperatorEquals, Value: "P3"},
		},
		Actions: []domain.AutomationAction{
			{Type: domain.ActionSetPriority, Params: map[string]string{"priority": "P1"}},
		},
	}
	f := newTicketFixture(defaultResolver(), newFakeRuleRepo(rule))
	f.svc.BindAutomation(automation.NewExecutor(f.svc, nil, 5, nil))

	ticket := f.createTicket(t)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityP1, stored.Priority)

	history, err := f.history.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	var sawAutomation bool
	for _, entry := range history {
		if entry.ChangeType == domain.ChangeTypeAutomation {
			sawAutomation = true
		}
	}
	assert.True(t, sawAutomation, "rule matches land in the audit trail")
}

func TestSlaStatus_ProjectsWithoutMutating(t *testing.T) {
	f := newTicketFixture(defaultResolver(), nil)
	ticket := f.createTicket(t)

	f.clock.Advance(45 * time.Minute)
	view, err := f.svc.SlaStatus(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, view.Windows, 2)
	assert.False(t, view.Paused)

	for _, window := range view.Windows {
		switch window.Kind {
		case domain.SlaWindowFirstResponse:
			assert.Equal(t, 15*time.Minute, window.Remaining)
			assert.True(t, window.AtRisk)
			require.NotNil(t, window.DueAt)
			assert.Equal(t, ticketBase.Add(time.Hour), *window.DueAt)
		case domain.SlaWindowResolution:
			assert.Equal(t, 3*time.Hour+15*time.Minute, window.Remaining)
			assert.False(t, window.AtRisk)
		}
	}

	fr := f.currentWindow(t, ticket.ID, domain.SlaWindowFirstResponse)
	assert.Equal(t, int64(1), fr.Version, "projection must not write windows back")
}
