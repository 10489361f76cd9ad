package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/internal/domain/event"
	"github.com/garyjia/po-authorization/pkg/utils"
)

// NotificationService tells people about work waiting for them.
// Delivery failures are logged and never fail the caller.
type NotificationService interface {
	HandleLevelOpened(ctx context.Context, evt *event.Event) error
	HandleInfoRequested(ctx context.Context, evt *event.Event) error

	// SendPendingDigest sends one summary per approver with pending steps and
	// returns how many messages were delivered
	SendPendingDigest(ctx context.Context) (int, error)
}

type notificationServiceImpl struct {
	headers     port.HeaderRepository
	steps       port.StepRepository
	assignments port.AssignmentRepository
	directory   port.AuthorizerDirectory
	sender      port.MessageSender
	logger      Logger
	now         func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	headers port.HeaderRepository,
	steps port.StepRepository,
	assignments port.AssignmentRepository,
	directory port.AuthorizerDirectory,
	sender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		headers:     headers,
		steps:       steps,
		assignments: assignments,
		directory:   directory,
		sender:      sender,
		logger:      logger,
		now:         time.Now,
	}
}

func (n *notificationServiceImpl) HandleLevelOpened(ctx context.Context, evt *event.Event) error {
	header, err := n.headers.GetByID(ctx, evt.HeaderID)
	if err != nil || header == nil {
		n.logger.Error("Cannot notify approvers, header unavailable", "header_id", evt.HeaderID, "error", err)
		return nil
	}

	for _, stepID := range evt.GetPayloadInts(event.KeyStepIDs) {
		step, err := n.steps.GetByID(ctx, stepID)
		if err != nil || step == nil {
			n.logger.Error("Cannot notify approvers, step unavailable", "step_id", stepID, "error", err)
			continue
		}
		if step.Status != entity.StepStatusPending || step.Superseded {
			continue
		}

		candidates, err := n.directory.ResolveCandidates(ctx, step.Level, step.AuthorizerType, step.CostCenter, n.now())
		if err != nil {
			n.logger.Error("Failed to resolve approvers", "step_id", stepID, "error", err)
			continue
		}

		msg := fmt.Sprintf("Purchase order #%d (%s, %s) needs your authorization at level %s.",
			header.ID, header.CostCenter, utils.FormatCents(header.NetAmountCents), step.Level.Label)
		for _, p := range candidates {
			n.send(ctx, p, msg)
		}
	}
	return nil
}

func (n *notificationServiceImpl) HandleInfoRequested(ctx context.Context, evt *event.Event) error {
	header, err := n.headers.GetByID(ctx, evt.HeaderID)
	if err != nil || header == nil {
		n.logger.Error("Cannot notify requester, header unavailable", "header_id", evt.HeaderID, "error", err)
		return nil
	}

	persons, err := n.assignments.GetPersons(ctx, []string{header.RequesterID})
	if err != nil {
		n.logger.Error("Failed to load requester", "requester_id", header.RequesterID, "error", err)
		return nil
	}

	msg := fmt.Sprintf("%s asked for more information on purchase order #%d: %s",
		evt.GetPayloadString(event.KeyActor), header.ID, evt.GetPayloadString(event.KeyComment))
	for _, p := range persons {
		n.send(ctx, p, msg)
	}
	return nil
}

func (n *notificationServiceImpl) SendPendingDigest(ctx context.Context) (int, error) {
	pending, err := n.steps.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending steps: %w", err)
	}

	asOf := n.now()
	people := make(map[string]entity.Person)
	headersByPerson := make(map[string]map[int64]bool)
	for _, step := range pending {
		candidates, err := n.directory.ResolveCandidates(ctx, step.Level, step.AuthorizerType, step.CostCenter, asOf)
		if err != nil {
			n.logger.Error("Failed to resolve approvers", "step_id", step.ID, "error", err)
			continue
		}
		for _, p := range candidates {
			people[p.ID] = p
			if headersByPerson[p.ID] == nil {
				headersByPerson[p.ID] = make(map[int64]bool)
			}
			headersByPerson[p.ID][step.HeaderID] = true
		}
	}

	sent := 0
	for id, headerSet := range headersByPerson {
		ids := make([]int64, 0, len(headerSet))
		for h := range headerSet {
			ids = append(ids, h)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		labels := make([]string, 0, len(ids))
		for _, h := range ids {
			labels = append(labels, fmt.Sprintf("#%d", h))
		}
		msg := fmt.Sprintf("You have %d purchase order(s) waiting for authorization: %s",
			len(ids), strings.Join(labels, ", "))
		if n.send(ctx, people[id], msg) {
			sent++
		}
	}

	n.logger.Info("Pending digest sent", "recipients", sent, "pending_steps", len(pending))
	return sent, nil
}

func (n *notificationServiceImpl) send(ctx context.Context, p entity.Person, msg string) bool {
	if n.sender == nil {
		return false
	}
	if p.LarkOpenID == "" {
		n.logger.Info("Skipping notification, person has no Lark account", "person_id", p.ID)
		return false
	}
	if err := n.sender.SendText(ctx, p.LarkOpenID, msg); err != nil {
		n.logger.Error("Failed to send notification", "person_id", p.ID, "error", err)
		return false
	}
	return true
}
