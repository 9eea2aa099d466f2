package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/automation"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketService coordinates ticket workflows: creation, the status change
// pipeline, SLA window bookkeeping and automation re-entry. Changes to one
// ticket are linearized through a per-ticket lock.
type TicketService struct {
	tickets    repository.TicketRepository
	windows    repository.SlaWindowRepository
	messages   repository.TicketMessageRepository
	history    repository.TicketHistoryRepository
	teams      repository.TeamRepository
	categories repository.CategoryRepository
	staff      repository.StaffRepository
	rules      repository.RuleRepository
	lifecycle  *lifecycle.Lifecycle
	locker     *lifecycle.TicketLocker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clock      sla.Clock
	risk       time.Duration
	logger     *zap.Logger

	executor *automation.Executor
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	SlaWindowRepo repository.SlaWindowRepository
	MessageRepo   repository.TicketMessageRepository
	HistoryRepo   repository.TicketHistoryRepository
	TeamRepo      repository.TeamRepository
	CategoryRepo  repository.CategoryRepository
	StaffRepo     repository.StaffRepository
	RuleRepo      repository.RuleRepository
	Lifecycle     *lifecycle.Lifecycle
	Locker        *lifecycle.TicketLocker
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Clock         sla.Clock
	RiskThreshold time.Duration
	Logger        *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CategoryID  string
	TeamID      *string
	Title       string
	Description string
	Priority    domain.TicketPriority
	Tags        []string
}

// TicketUserFilter describes end-user listing filters.
type TicketUserFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketStaffFilter describes staff listing filters.
type TicketStaffFilter struct {
	CategoryID  *string
	TeamID      *string
	AssigneeID  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// SlaWindowView is the caller-facing projection of one SLA window.
type SlaWindowView struct {
	Kind      domain.SlaWindowKind  `json:"kind"`
	State     domain.SlaWindowState `json:"state"`
	Target    time.Duration         `json:"target_ms"`
	Remaining time.Duration         `json:"remaining_ms"`
	DueAt     *time.Time            `json:"due_at,omitempty"`
	AtRisk    bool                  `json:"at_risk"`
}

// SlaStatusView reports live SLA standing for a ticket.
type SlaStatusView struct {
	TicketID string          `json:"ticket_id"`
	Paused   bool            `json:"paused"`
	Windows  []SlaWindowView `json:"windows"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = sla.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		windows:    deps.SlaWindowRepo,
		messages:   deps.MessageRepo,
		history:    deps.HistoryRepo,
		teams:      deps.TeamRepo,
		categories: deps.CategoryRepo,
		staff:      deps.StaffRepo,
		rules:      deps.RuleRepo,
		lifecycle:  deps.Lifecycle,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		clock:      clock,
		risk:       deps.RiskThreshold,
		logger:     logger,
	}
}

// BindAutomation attaches the action executor. Done after construction
// because the executor mutates tickets through this service.
func (s *TicketService) BindAutomation(executor *automation.Executor) {
	s.executor = executor
}

// CreateTicket creates a ticket for a user and starts its SLA windows. A
// missing policy leaves the ticket without windows rather than failing the
// creation.
func (s *TicketService) CreateTicket(ctx context.Context, userID string, input TicketCreateInput) (*domain.Ticket, error) {
	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !category.IsActive {
		return nil, util.NewValidationError("category inactive", map[string]any{"category_id": category.ID})
	}
	if input.TeamID != nil {
		team, err := s.teams.GetByID(ctx, *input.TeamID)
		if err != nil {
			return nil, util.MapError(err)
		}
		if !team.IsActive {
			return nil, util.NewValidationError("team inactive", map[string]any{"team_id": team.ID})
		}
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, util.NewValidationError("title required", nil)
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		RequesterID: userID,
		CategoryID:  input.CategoryID,
		TeamID:      input.TeamID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusNew,
		Priority:    input.Priority,
		Tags:        input.Tags,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityP3
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}

	now := s.clock.Now()
	windows, policyErr := s.lifecycle.StartWindows(ctx, ticket, now)
	if policyErr != nil {
		s.logger.Warn("ticket created without SLA windows",
			zap.String("ticket_id", ticket.ID),
			zap.Error(policyErr))
	}
	if err := s.persistNewWindows(ctx, windows); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(userID),
		Payload: events.TicketCreatedPayload{
			CategoryID: ticket.CategoryID,
			TeamID:     ticket.TeamID,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
		},
	})
	s.runAutomation(ctx, events.EventTicketCreated, ticket, 0)
	return ticket, nil
}

// ChangeStatus applies a workflow transition. depth is the automation
// recursion depth, zero for direct caller actions.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID string, newStatus domain.TicketStatus, actor events.Actor, depth int) (*domain.Ticket, error) {
	ticket, evts, changed, err := s.applyTransition(ctx, ticketID, newStatus, actor)
	if err != nil {
		return nil, err
	}
	s.publishAll(ctx, evts)
	if changed {
		s.runAutomation(ctx, events.EventTicketStatusChanged, ticket, depth)
	}
	return ticket, nil
}

// applyTransition holds the per-ticket lock for the load/validate/persist
// section. Automation runs after the lock is released so re-entrant actions
// on the same ticket do not deadlock.
func (s *TicketService) applyTransition(ctx context.Context, ticketID string, newStatus domain.TicketStatus, actor events.Actor) (*domain.Ticket, []events.Event, bool, error) {
	unlock := s.locker.Lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, false, util.MapError(err)
	}
	windows, err := s.loadWindows(ctx, ticketID)
	if err != nil {
		return nil, nil, false, err
	}
	existingFR := windows.FirstResponse
	existingRes := windows.Resolution
	oldStatus := ticket.Status

	outcome, err := s.lifecycle.ApplyTransition(ctx, ticket, windows, newStatus, actor, s.clock.Now())
	if err != nil {
		return nil, nil, false, err
	}
	if !outcome.Changed {
		return ticket, nil, false, nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, nil, false, util.MapError(err)
	}
	if err := s.persistWindows(ctx, existingFR, existingRes, outcome.NewResolution); err != nil {
		return nil, nil, false, err
	}
	s.recordStatusChange(ctx, actor, ticket.ID, oldStatus, ticket.Status)
	s.metrics.RecordTransition(string(oldStatus), string(ticket.Status))
	return ticket, outcome.Events, true, nil
}

// AssignTicket sets the ticket assignee.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID, staffID string, actor events.Actor, depth int) error {
	member, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		return util.MapError(err)
	}
	if !member.Active {
		return util.NewValidationError("staff member inactive", map[string]any{"staff_id": staffID})
	}

	var oldAssignee *string
	ticket, err := s.updateLocked(ctx, ticketID, func(ticket *domain.Ticket, _ *lifecycle.Windows) error {
		oldAssignee = ticket.AssigneeID
		ticket.AssigneeID = &member.ID
		return nil
	})
	if err != nil {
		return err
	}

	s.recordChange(ctx, actor, ticket.ID, domain.ChangeTypeAssignee,
		map[string]any{"assignee_id": oldAssignee},
		map[string]any{"assignee_id": member.ID})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketAssignedPayload{
			AssigneeStaffID: ticket.AssigneeID,
			TeamID:          ticket.TeamID,
		},
	})
	s.runAutomation(ctx, events.EventTicketAssigned, ticket, depth)
	return nil
}

// TransferTicketTeam moves the ticket to another team. SLA targets are
// re-resolved against the new scope; accumulated active time is kept.
func (s *TicketService) TransferTicketTeam(ctx context.Context, ticketID, teamID string, actor events.Actor, depth int) error {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return util.MapError(err)
	}
	if !team.IsActive {
		return util.NewValidationError("team inactive", map[string]any{"team_id": teamID})
	}

	var oldTeam *string
	ticket, err := s.updateLocked(ctx, ticketID, func(ticket *domain.Ticket, windows *lifecycle.Windows) error {
		oldTeam = ticket.TeamID
		ticket.TeamID = &team.ID
		if err := s.lifecycle.RetargetWindows(ctx, ticket, windows); err != nil {
			// Keep existing targets when the new scope has no policy.
			s.logger.Warn("keeping SLA targets after transfer",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordChange(ctx, actor, ticket.ID, domain.ChangeTypeTeam,
		map[string]any{"team_id": oldTeam},
		map[string]any{"team_id": team.ID})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketAssignedPayload{
			AssigneeStaffID: ticket.AssigneeID,
			TeamID:          ticket.TeamID,
		},
	})
	s.runAutomation(ctx, events.EventTicketAssigned, ticket, depth)
	return nil
}

// ChangePriority changes the ticket priority and re-resolves SLA targets,
// since priority is a policy dimension.
func (s *TicketService) ChangePriority(ctx context.Context, ticketID string, priority domain.TicketPriority, actor events.Actor, depth int) error {
	if priority.Rank() > 4 {
		return util.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	var oldPriority domain.TicketPriority
	ticket, err := s.updateLocked(ctx, ticketID, func(ticket *domain.Ticket, windows *lifecycle.Windows) error {
		oldPriority = ticket.Priority
		ticket.Priority = priority
		if err := s.lifecycle.RetargetWindows(ctx, ticket, windows); err != nil {
			s.logger.Warn("keeping SLA targets after priority change",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordChange(ctx, actor, ticket.ID, domain.ChangeTypePriority,
		map[string]any{"priority": oldPriority},
		map[string]any{"priority": priority})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: priority,
		},
	})
	s.runAutomation(ctx, events.EventTicketPriorityChanged, ticket, depth)
	return nil
}

// SetStatus implements automation.TicketMutator. Rule evaluation triggered
// by the mutation runs one level deeper than the chain that requested it.
func (s *TicketService) SetStatus(ctx context.Context, ticketID string, status domain.TicketStatus, actor events.Actor, depth int) error {
	_, err := s.ChangeStatus(ctx, ticketID, status, actor, depth+1)
	return err
}

// Assign implements automation.TicketMutator.
func (s *TicketService) Assign(ctx context.Context, ticketID, staffID string, actor events.Actor, depth int) error {
	return s.AssignTicket(ctx, ticketID, staffID, actor, depth+1)
}

// TransferTeam implements automation.TicketMutator.
func (s *TicketService) TransferTeam(ctx context.Context, ticketID, teamID string, actor events.Actor, depth int) error {
	return s.TransferTicketTeam(ctx, ticketID, teamID, actor, depth+1)
}

// SetPriority implements automation.TicketMutator.
func (s *TicketService) SetPriority(ctx context.Context, ticketID string, priority domain.TicketPriority, actor events.Actor, depth int) error {
	return s.ChangePriority(ctx, ticketID, priority, actor, depth+1)
}

// AddMessage appends a message to a ticket thread. The first public staff
// reply records the ticket's first response.
func (s *TicketService) AddMessage(ctx context.Context, subject domain.SubjectType, subjectID string, staffMember *domain.StaffMember, ticketID string, messageType domain.TicketMessageType, body string) (*domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}

	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		MessageType: messageType,
		Body:        strings.TrimSpace(body),
	}
	switch subject {
	case domain.SubjectTypeUser:
		if ticket.RequesterID != subjectID {
			return nil, util.NewForbidden("not the ticket requester")
		}
		if messageType != domain.MessageTypePublicReply {
			return nil, util.NewValidationError("users can only post public replies", nil)
		}
		msg.AuthorType = domain.AuthorTypeUser
		authorID := subjectID
		msg.AuthorID = &authorID
	case domain.SubjectTypeStaff:
		if staffMember == nil {
			return nil, util.NewForbidden("staff context required")
		}
		if messageType != domain.MessageTypePublicReply && messageType != domain.MessageTypeInternalNote {
			return nil, util.NewValidationError("invalid message type for staff", nil)
		}
		msg.AuthorType = domain.AuthorTypeStaff
		msg.AuthorID = &staffMember.ID
	default:
		return nil, util.NewForbidden("unknown subject")
	}

	if msg.Body == "" {
		return nil, util.NewValidationError("message body required", nil)
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, util.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    actorFromSubject(subject, subjectID),
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			MessageType: msg.MessageType,
			AuthorType:  msg.AuthorType,
			AuthorID:    msg.AuthorID,
			BodyPreview: stringPreview(msg.Body, 120),
		},
	})

	if subject == domain.SubjectTypeStaff && messageType == domain.MessageTypePublicReply {
		if err := s.recordFirstResponse(ctx, ticket.ID, staffActor(staffMember.ID)); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// recordFirstResponse settles the first-response window on the first public
// staff reply. Later replies are no-ops.
func (s *TicketService) recordFirstResponse(ctx context.Context, ticketID string, actor events.Actor) error {
	unlock := s.locker.Lock(ticketID)
	var evts []events.Event
	err := func() error {
		defer unlock()

		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return util.MapError(err)
		}
		if ticket.FirstResponseAt != nil {
			return nil
		}
		windows, err := s.loadWindows(ctx, ticketID)
		if err != nil {
			return err
		}
		evts = s.lifecycle.RecordFirstResponse(ticket, windows, actor, s.clock.Now())
		if len(evts) == 0 {
			return nil
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return util.MapError(err)
		}
		if windows.FirstResponse != nil {
			if err := s.windows.Update(ctx, windows.FirstResponse); err != nil {
				return err
			}
		}
		s.recordChange(ctx, actor, ticket.ID, domain.ChangeTypeFirstResponse,
			nil, map[string]any{"first_response_at": ticket.FirstResponseAt})
		return nil
	}()
	if err != nil {
		return err
	}
	s.publishAll(ctx, evts)
	return nil
}

// AllowedNextStatuses returns the transitions the workflow permits from the
// ticket's current status.
func (s *TicketService) AllowedNextStatuses(ctx context.Context, ticketID string) (domain.TicketStatus, []domain.TicketStatus, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return "", nil, util.MapError(err)
	}
	return ticket.Status, lifecycle.AllowedTargets(ticket.Status), nil
}

// SlaStatus projects the live SLA standing of a ticket without mutating
// stored windows.
func (s *TicketService) SlaStatus(ctx context.Context, ticketID string) (*SlaStatusView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	windows, err := s.loadWindows(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	view := &SlaStatusView{TicketID: ticket.ID, Paused: ticket.SlaPausedAt != nil}
	for _, window := range []*domain.SlaWindow{windows.FirstResponse, windows.Resolution} {
		if window == nil {
			continue
		}
		item := SlaWindowView{
			Kind:      window.Kind,
			State:     window.State,
			Target:    window.TargetDuration,
			Remaining: sla.Remaining(window, now),
			AtRisk:    sla.AtRisk(window, now, s.risk),
		}
		if !window.Terminal() {
			dueAt := sla.DueAt(window, now)
			item.DueAt = &dueAt
		}
		view.Windows = append(view.Windows, item)
	}
	return view, nil
}

// ListUserTickets returns paginated tickets for a requester.
func (s *TicketService) ListUserTickets(ctx context.Context, userID string, filter TicketUserFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		RequesterID: &userID,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
}

// GetTicketForUser fetches a ticket ensuring ownership. Internal notes are
// filtered out of the thread.
func (s *TicketService) GetTicketForUser(ctx context.Context, userID, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, util.MapError(err)
	}
	if ticket.RequesterID != userID {
		return nil, nil, util.NewForbidden("not the ticket requester")
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, util.MapError(err)
	}
	visible := make([]domain.TicketMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.MessageType.RequesterVisible() {
			visible = append(visible, msg)
		}
	}
	return ticket, visible, nil
}

// ListHistoryForUser returns a ticket's audit trail to its requester.
func (s *TicketService) ListHistoryForUser(ctx context.Context, userID, ticketID string) ([]domain.TicketHistory, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.RequesterID != userID {
		return nil, util.NewForbidden("not the ticket requester")
	}
	return s.history.ListByTicket(ctx, ticketID)
}

// ListStaffTickets returns tickets accessible to a staff member. Non-admin
// staff are scoped to their team.
func (s *TicketService) ListStaffTickets(ctx context.Context, staffMember *domain.StaffMember, filter TicketStaffFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		CategoryID:  filter.CategoryID,
		TeamID:      filter.TeamID,
		AssigneeID:  filter.AssigneeID,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if staffMember != nil && !staffMember.IsAdmin() && staffMember.TeamID != nil {
		repoFilter.TeamID = staffMember.TeamID
	}
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// GetTicketForStaff fetches a ticket with its full thread for staff.
func (s *TicketService) GetTicketForStaff(ctx context.Context, staffMember *domain.StaffMember, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, util.MapError(err)
	}
	if !staffCanAccessTicket(staffMember, ticket) {
		return nil, nil, util.NewForbidden("ticket outside staff scope")
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, util.MapError(err)
	}
	return ticket, msgs, nil
}

// ListHistory returns the audit trail for staff review.
func (s *TicketService) ListHistory(ctx context.Context, staffMember *domain.StaffMember, ticketID string) ([]domain.TicketHistory, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !staffCanAccessTicket(staffMember, ticket) {
		return nil, util.NewForbidden("ticket outside staff scope")
	}
	return s.history.ListByTicket(ctx, ticketID)
}

// updateLocked runs mutate under the ticket lock and persists the ticket and
// its windows.
func (s *TicketService) updateLocked(ctx context.Context, ticketID string, mutate func(*domain.Ticket, *lifecycle.Windows) error) (*domain.Ticket, error) {
	unlock := s.locker.Lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	windows, err := s.loadWindows(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := mutate(ticket, windows); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}
	if err := s.persistWindows(ctx, windows.FirstResponse, windows.Resolution, nil); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) loadWindows(ctx context.Context, ticketID string) (*lifecycle.Windows, error) {
	windows := &lifecycle.Windows{}
	fr, err := s.windows.GetCurrent(ctx, ticketID, domain.SlaWindowFirstResponse)
	if err != nil && err != pgx.ErrNoRows {
		return nil, util.MapError(err)
	}
	windows.FirstResponse = fr
	res, err := s.windows.GetCurrent(ctx, ticketID, domain.SlaWindowResolution)
	if err != nil && err != pgx.ErrNoRows {
		return nil, util.MapError(err)
	}
	windows.Resolution = res
	return windows, nil
}

func (s *TicketService) persistNewWindows(ctx context.Context, windows *lifecycle.Windows) error {
	for _, window := range []*domain.SlaWindow{windows.FirstResponse, windows.Resolution} {
		if window == nil {
			continue
		}
		if err := s.windows.Create(ctx, window); err != nil {
			return util.MapError(err)
		}
	}
	return nil
}

func (s *TicketService) persistWindows(ctx context.Context, firstResponse, resolution, created *domain.SlaWindow) error {
	for _, window := range []*domain.SlaWindow{firstResponse, resolution} {
		if window == nil {
			continue
		}
		if err := s.windows.Update(ctx, window); err != nil {
			return err
		}
	}
	if created != nil {
		if err := s.windows.Create(ctx, created); err != nil {
			return util.MapError(err)
		}
	}
	return nil
}

// runAutomation evaluates the rule set against the ticket after a change and
// executes the matched actions. depth counts automation-triggered rounds;
// the executor refuses chains past its limit.
func (s *TicketService) runAutomation(ctx context.Context, change events.EventType, ticket *domain.Ticket, depth int) {
	if s.executor == nil || s.rules == nil {
		return
	}
	rules, err := s.rules.ListForScope(ctx, ticket.TeamID)
	if err != nil {
		s.logger.Warn("rule lookup failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return
	}
	eval := automation.Evaluate(change, ticket, rules)
	if len(eval.Matches) == 0 {
		return
	}
	for _, match := range eval.Matches {
		s.metrics.RecordAutomationMatch()
		s.publishEvent(ctx, events.Event{
			Type:     events.EventAutomationRuleMatched,
			TicketID: ticket.ID,
			Actor:    events.System(),
			Payload: events.AutomationRuleMatchedPayload{
				RuleID:      match.Rule.ID,
				RuleName:    match.Rule.Name,
				ActionCount: len(match.Actions),
			},
		})
		s.recordChange(ctx, events.System(), ticket.ID, domain.ChangeTypeAutomation,
			nil, map[string]any{"rule_id": match.Rule.ID, "rule_name": match.Rule.Name})
	}
	for _, execErr := range s.executor.Execute(ctx, ticket.ID, eval.Actions(), depth) {
		s.metrics.RecordAutomationError()
		s.logger.Warn("automation action failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("rule_id", execErr.RuleID),
			zap.String("action", string(execErr.Type)),
			zap.Error(execErr.Err))
	}
}

func (s *TicketService) recordStatusChange(ctx context.Context, actor events.Actor, ticketID string, oldStatus, newStatus domain.TicketStatus) {
	s.recordChange(ctx, actor, ticketID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": newStatus})
}

func (s *TicketService) recordChange(ctx context.Context, actor events.Actor, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: authorTypeForActor(actor),
		ChangedByID:   actorID(actor),
		ChangeType:    changeType,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("history write failed",
			zap.String("ticket_id", ticketID),
			zap.Error(err))
	}
}

func (s *TicketService) publishAll(ctx context.Context, evts []events.Event) {
	for _, event := range evts {
		s.publishEvent(ctx, event)
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func staffCanAccessTicket(staffMember *domain.StaffMember, ticket *domain.Ticket) bool {
	if staffMember == nil {
		return false
	}
	if staffMember.IsAdmin() {
		return true
	}
	if staffMember.TeamID == nil {
		return true
	}
	return ticket.TeamID == nil || *ticket.TeamID == *staffMember.TeamID
}

func generateTicketKey() string {
	return "HD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func userActor(userID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeUser, UserID: &userID}
}

func staffActor(staffID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeStaff, StaffID: &staffID}
}

func actorFromSubject(subject domain.SubjectType, id string) events.Actor {
	switch subject {
	case domain.SubjectTypeStaff:
		return staffActor(id)
	case domain.SubjectTypeSystem:
		return events.System()
	default:
		return userActor(id)
	}
}

func authorTypeForActor(actor events.Actor) domain.MessageAuthorType {
	switch actor.Type {
	case domain.SubjectTypeStaff:
		return domain.AuthorTypeStaff
	case domain.SubjectTypeSystem:
		return domain.AuthorTypeSystem
	default:
		return domain.AuthorTypeUser
	}
}

func actorID(actor events.Actor) *string {
	switch actor.Type {
	case domain.SubjectTypeStaff:
		return actor.StaffID
	case domain.SubjectTypeUser:
		return actor.UserID
	default:
		return nil
	}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
