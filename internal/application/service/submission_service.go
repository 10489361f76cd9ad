package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/internal/domain/event"
	"github.com/garyjia/po-authorization/internal/domain/rule"
	"github.com/garyjia/po-authorization/pkg/utils"
)

// SubmissionService takes headers from intake into the approval workflow
type SubmissionService interface {
	CreateHeader(ctx context.Context, header *entity.Header) error

	// Submit matches a rule for every header and opens its owner level
	Submit(ctx context.Context, headerIDs []int64, actor string) (*entity.BatchOutcome, error)

	// Preview returns the matched rule and the full step plan without persisting anything
	Preview(ctx context.Context, headerID int64) (*entity.Rule, []entity.ResolvedStep, error)
}

type submissionServiceImpl struct {
	headers    port.HeaderRepository
	steps      port.StepRepository
	catalog    port.CatalogRepository
	txManager  port.TransactionManager
	rules      RuleService
	generator  StepGenerator
	aggregator HeaderAggregator
	publisher  EventPublisher
	logger     Logger
	now        func() time.Time
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(
	headers port.HeaderRepository,
	steps port.StepRepository,
	catalog port.CatalogRepository,
	txManager port.TransactionManager,
	rules RuleService,
	generator StepGenerator,
	aggregator HeaderAggregator,
	publisher EventPublisher,
	logger Logger,
) SubmissionService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &submissionServiceImpl{
		headers:    headers,
		steps:      steps,
		catalog:    catalog,
		txManager:  txManager,
		rules:      rules,
		generator:  generator,
		aggregator: aggregator,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *submissionServiceImpl) CreateHeader(ctx context.Context, header *entity.Header) error {
	if header == nil {
		return fmt.Errorf("%w: header is required", entity.ErrValidation)
	}
	header.RequesterID = strings.TrimSpace(header.RequesterID)
	header.CostCenter = strings.TrimSpace(header.CostCenter)
	header.Category = strings.TrimSpace(header.Category)
	if err := utils.ValidateActor(header.RequesterID); err != nil {
		return fmt.Errorf("%w: requester: %v", entity.ErrValidation, err)
	}
	if header.CostCenter == "" {
		return fmt.Errorf("%w: cost center is required", entity.ErrValidation)
	}
	if header.NetAmountCents < 0 {
		return fmt.Errorf("%w: net amount cannot be negative", entity.ErrValidation)
	}

	now := s.now()
	header.AggregateStatus = entity.AggregatePending
	header.RuleID = nil
	header.CreatedAt = now
	header.ModifiedAt = now
	return s.headers.Create(ctx, header)
}

func (s *submissionServiceImpl) Submit(ctx context.Context, headerIDs []int64, actor string) (*entity.BatchOutcome, error) {
	if err := utils.ValidateHeaderIDs(headerIDs); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if err := utils.ValidateActor(actor); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	actor = strings.TrimSpace(actor)

	outcome := &entity.BatchOutcome{}
	for _, id := range utils.DedupeIDs(headerIDs) {
		outcome.Add(s.submitOne(ctx, id, actor))
	}
	s.logger.Info("Submission batch finished",
		"headers", len(outcome.Results),
		"transitioned", outcome.Transitioned,
		"skipped", len(outcome.SkippedIDs()),
		"failed", len(outcome.Failed()))
	return outcome, nil
}

func (s *submissionServiceImpl) submitOne(ctx context.Context, headerID int64, actor string) entity.HeaderOutcome {
	result := entity.HeaderOutcome{HeaderID: headerID}
	var events []*event.Event

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		header, err := s.headers.Lock(txCtx, headerID)
		if err != nil {
			return err
		}
		if header == nil {
			return fmt.Errorf("%w: %d", entity.ErrHeaderNotFound, headerID)
		}
		if header.AggregateStatus.IsFinal() {
			result.Skipped, result.Reason, result.Status = true, entity.ReasonAlreadyFinal, header.AggregateStatus
			return nil
		}

		existing, err := s.steps.ListByHeader(txCtx, headerID)
		if err != nil {
			return err
		}
		for _, st := range existing {
			if st.Counts() {
				result.Skipped, result.Reason, result.Status = true, entity.ReasonAlreadySubmitted, header.AggregateStatus
				return nil
			}
		}

		matched, err := s.resolveRule(txCtx, header)
		if err != nil {
			return err
		}
		if err := s.headers.SetResolution(txCtx, headerID, header.BusinessRuleType, &matched.ID); err != nil {
			return err
		}
		header.RuleID = &matched.ID

		now := s.now()
		opened, err := s.generator.OpenOwnerLevel(txCtx, header, actor, now)
		if err != nil {
			return err
		}

		change, err := s.aggregator.Recompute(txCtx, headerID, now)
		if err != nil {
			return err
		}
		result.Status = change.Current

		correlation := fmt.Sprintf("submit-%d-%d", headerID, now.UnixNano())
		events = append(events, event.NewEventWithCorrelation(event.TypeHeaderSubmitted, headerID, map[string]interface{}{
			event.KeyActor: actor,
			"rule_id":      matched.ID,
		}, correlation))
		if opened != nil {
			result.Transitioned = len(opened.Steps)
			events = append(events, levelOpenedEvent(headerID, opened, correlation))
		}
		return nil
	})

	if err != nil {
		s.logger.Error("Header submission failed", "header_id", headerID, "error", err)
		return entity.HeaderOutcome{HeaderID: headerID, Error: err.Error()}
	}

	s.publisher.Publish(ctx, events...)
	return result
}

// resolveRule classifies the header from master data and evaluates the active rule set
func (s *submissionServiceImpl) resolveRule(ctx context.Context, header *entity.Header) (*entity.Rule, error) {
	if strings.TrimSpace(header.Category) == "" {
		return nil, entity.ErrMissingCategory
	}

	cc, err := s.catalog.GetCostCenter(ctx, header.CostCenter)
	if err != nil {
		return nil, err
	}
	if cc == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownCostCenter, header.CostCenter)
	}

	category, err := s.catalog.GetCategory(ctx, header.Category)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("%w: unknown category %s", entity.ErrMissingCategory, header.Category)
	}

	brt := category.BusinessRuleType
	if !brt.IsValid() {
		brt = header.BusinessRuleType
	}
	if !brt.IsValid() {
		return nil, fmt.Errorf("%w: category %s has no business rule type", entity.ErrMissingCategory, category.Code)
	}
	header.BusinessRuleType = brt

	return s.rules.Evaluate(ctx, rule.Query{
		BusinessRuleType: brt,
		CostCenter:       header.CostCenter,
		Category:         header.Category,
		NetAmountCents:   header.NetAmountCents,
	})
}

func (s *submissionServiceImpl) Preview(ctx context.Context, headerID int64) (*entity.Rule, []entity.ResolvedStep, error) {
	header, err := s.headers.GetByID(ctx, headerID)
	if err != nil {
		return nil, nil, err
	}
	if header == nil {
		return nil, nil, fmt.Errorf("%w: %d", entity.ErrHeaderNotFound, headerID)
	}

	var matched *entity.Rule
	if header.RuleID != nil {
		matched, err = s.rules.GetRule(ctx, *header.RuleID)
	} else {
		matched, err = s.resolveRule(ctx, header)
	}
	if err != nil {
		return nil, nil, err
	}
	if matched == nil {
		return nil, nil, errors.New("matched rule no longer exists")
	}

	plan, err := s.generator.Plan(ctx, header, matched, s.now())
	if err != nil {
		return nil, nil, err
	}
	return matched, plan, nil
}

func levelOpenedEvent(headerID int64, opened *OpenedLevel, correlation string) *event.Event {
	return event.NewEventWithCorrelation(event.TypeLevelOpened, headerID, map[string]interface{}{
		event.KeyLevel:   opened.Level.Label,
		event.KeyStepIDs: opened.StepIDs(),
	}, correlation)
}
