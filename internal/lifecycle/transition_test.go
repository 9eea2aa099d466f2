package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

var allStatuses = []domain.TicketStatus{
	domain.TicketStatusNew,
	domain.TicketStatusTriaged,
	domain.TicketStatusAssigned,
	domain.TicketStatusInProgress,
	domain.TicketStatusWaitingOnRequester,
	domain.TicketStatusWaitingOnVendor,
	domain.TicketStatusResolved,
	domain.TicketStatusClosed,
	domain.TicketStatusReopened,
}

func TestCanTransition_MatchesWorkflowTable(t *testing.T) {
	allowed := map[domain.TicketStatus][]domain.TicketStatus{
		domain.TicketStatusNew:                {domain.TicketStatusTriaged, domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusWaitingOnRequester, domain.TicketStatusWaitingOnVendor, domain.TicketStatusResolved},
		domain.TicketStatusTriaged:            {domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusWaitingOnRequester, domain.TicketStatusWaitingOnVendor, domain.TicketStatusResolved},
		domain.TicketStatusAssigned:           {domain.TicketStatusInProgress, domain.TicketStatusWaitingOnRequester, domain.TicketStatusWaitingOnVendor, domain.TicketStatusResolved},
		domain.TicketStatusInProgress:         {domain.TicketStatusWaitingOnRequester, domain.TicketStatusWaitingOnVendor, domain.TicketStatusResolved},
		domain.TicketStatusWaitingOnRequester: {domain.TicketStatusInProgress, domain.TicketStatusResolved},
		domain.TicketStatusWaitingOnVendor:    {domain.TicketStatusInProgress, domain.TicketStatusResolved},
		domain.TicketStatusResolved:           {domain.TicketStatusReopened, domain.TicketStatusClosed},
		domain.TicketStatusClosed:             {domain.TicketStatusReopened},
		domain.TicketStatusReopened:           {domain.TicketStatusTriaged, domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusWaitingOnRequester, domain.TicketStatusWaitingOnVendor, domain.TicketStatusResolved},
	}

	// Every (from, to) pair is either in the table, a self-transition, or
	// denied with INVALID_TRANSITION. No edge may be both.
	for _, from := range allStatuses {
		allowedSet := make(map[domain.TicketStatus]bool)
		for _, to := range allowed[from] {
			allowedSet[to] = true
		}
		for _, to := range allStatuses {
			decision := CanTransition(from, to)
			if from == to || allowedSet[to] {
				assert.True(t, decision.Allowed, "%s -> %s should be allowed", from, to)
				assert.Empty(t, decision.Reason)
			} else {
				assert.False(t, decision.Allowed, "%s -> %s should be denied", from, to)
				assert.Equal(t, util.CodeInvalidTransition, decision.Reason)
			}
		}
	}
}

func TestCanTransition_SelfTransitionAlwaysAllowed(t *testing.T) {
	for _, status := range allStatuses {
		assert.True(t, CanTransition(status, status).Allowed, "self transition on %s", status)
	}
}

func TestCanTransition_ClosedToInProgressDenied(t *testing.T) {
	decision := CanTransition(domain.TicketStatusClosed, domain.TicketStatusInProgress)
	assert.False(t, decision.Allowed)
	assert.Equal(t, util.CodeInvalidTransition, decision.Reason)

	// The supported route goes through REOPENED.
	assert.True(t, CanTransition(domain.TicketStatusClosed, domain.TicketStatusReopened).Allowed)
	assert.True(t, CanTransition(domain.TicketStatusReopened, domain.TicketStatusInProgress).Allowed)
}

func TestAllowedTargets_ReturnsCopy(t *testing.T) {
	targets := AllowedTargets(domain.TicketStatusNew)
	assert.Len(t, targets, 6)
	targets[0] = domain.TicketStatusClosed
	assert.Equal(t, domain.TicketStatusTriaged, AllowedTargets(domain.TicketStatusNew)[0])
}

func TestAllowedTargets_UnknownStatusEmpty(t *testing.T) {
	assert.Empty(t, AllowedTargets(domain.TicketStatus("BOGUS")))
}
