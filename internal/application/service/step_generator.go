package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/internal/domain/rule"
)

// OpenedLevel describes the steps persisted when a level was opened
type OpenedLevel struct {
	Level    entity.Level
	Steps    []*entity.ApprovalStep
	Resolved []entity.ResolvedStep
}

// StepIDs returns the ids of the persisted steps
func (o *OpenedLevel) StepIDs() []int64 {
	ids := make([]int64, 0, len(o.Steps))
	for _, s := range o.Steps {
		ids = append(ids, s.ID)
	}
	return ids
}

// StepGenerator turns a matched rule into approval steps, one level at a time
type StepGenerator interface {
	// Plan returns every step the header will go through, owner step first, without persisting
	Plan(ctx context.Context, header *entity.Header, r *entity.Rule, asOf time.Time) ([]entity.ResolvedStep, error)

	// OpenOwnerLevel persists the owner step unless the header already has one.
	// It returns nil when nothing was created.
	OpenOwnerLevel(ctx context.Context, header *entity.Header, actor string, asOf time.Time) (*OpenedLevel, error)

	// OpenNextLevel persists the lowest rule level that has not been opened yet.
	// It returns nil while counting steps are still pending or when no level is left.
	OpenNextLevel(ctx context.Context, header *entity.Header, r *entity.Rule, actor string, asOf time.Time) (*OpenedLevel, error)
}

type stepGeneratorImpl struct {
	steps     port.StepRepository
	history   port.HistoryRepository
	directory port.AuthorizerDirectory
	logger    Logger
}

// NewStepGenerator creates a new step generator
func NewStepGenerator(
	steps port.StepRepository,
	history port.HistoryRepository,
	directory port.AuthorizerDirectory,
	logger Logger,
) StepGenerator {
	return &stepGeneratorImpl{
		steps:     steps,
		history:   history,
		directory: directory,
		logger:    logger,
	}
}

func (g *stepGeneratorImpl) Plan(ctx context.Context, header *entity.Header, r *entity.Rule, asOf time.Time) ([]entity.ResolvedStep, error) {
	planned := []entity.ResolvedStep{ownerStep(header)}
	for _, s := range rule.OrderedSteps(r) {
		planned = append(planned, entity.ResolvedStep{
			Kind:           entity.StepKindRule,
			AuthorizerType: s.AuthorizerType,
			Level:          s.Level,
			CostCenter:     header.CostCenter,
		})
	}

	for i := range planned {
		candidates, err := g.directory.ResolveCandidates(ctx, planned[i].Level, planned[i].AuthorizerType, planned[i].CostCenter, asOf)
		if err != nil {
			return nil, err
		}
		planned[i].Candidates = candidates
	}
	return planned, nil
}

func (g *stepGeneratorImpl) OpenOwnerLevel(ctx context.Context, header *entity.Header, actor string, asOf time.Time) (*OpenedLevel, error) {
	existing, err := g.steps.ListByHeader(ctx, header.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	for _, s := range existing {
		if s.Kind == entity.StepKindOwner && !s.Superseded {
			return nil, nil
		}
	}
	return g.persist(ctx, header, entity.OwnerLevel(), []entity.ResolvedStep{ownerStep(header)}, actor, asOf)
}

func (g *stepGeneratorImpl) OpenNextLevel(ctx context.Context, header *entity.Header, r *entity.Rule, actor string, asOf time.Time) (*OpenedLevel, error) {
	existing, err := g.steps.ListByHeader(ctx, header.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}

	live := make(map[entity.StepKey]bool, len(existing))
	for _, s := range existing {
		if !s.Counts() {
			continue
		}
		if s.Status == entity.StepStatusPending || s.Status == entity.StepStatusRejected {
			return nil, nil
		}
		live[s.Key()] = true
	}

	for _, level := range rule.Levels(r) {
		missing := make([]entity.ResolvedStep, 0)
		for _, s := range rule.StepsAt(r, level) {
			planned := entity.ResolvedStep{
				Kind:           entity.StepKindRule,
				AuthorizerType: s.AuthorizerType,
				Level:          s.Level,
				CostCenter:     header.CostCenter,
			}
			if !live[planned.Key()] {
				missing = append(missing, planned)
			}
		}
		if len(missing) > 0 {
			return g.persist(ctx, header, level, missing, actor, asOf)
		}
	}
	return nil, nil
}

func (g *stepGeneratorImpl) persist(ctx context.Context, header *entity.Header, level entity.Level, planned []entity.ResolvedStep, actor string, asOf time.Time) (*OpenedLevel, error) {
	opened := &OpenedLevel{Level: level}
	for _, p := range planned {
		candidates, err := g.directory.ResolveCandidates(ctx, p.Level, p.AuthorizerType, p.CostCenter, asOf)
		if err != nil {
			return nil, err
		}
		p.Candidates = candidates
		if len(candidates) == 0 {
			g.logger.Error("No authorizer assigned to step",
				"header_id", header.ID,
				"level", p.Level.Label,
				"authorizer_type", p.TypeLabel(),
				"cost_center", p.CostCenter)
		}

		step := &entity.ApprovalStep{
			HeaderID:       header.ID,
			Kind:           p.Kind,
			AuthorizerType: p.AuthorizerType,
			Level:          p.Level,
			CostCenter:     p.CostCenter,
			Status:         entity.StepStatusPending,
			CreatedAt:      asOf,
			ModifiedAt:     asOf,
			ModifiedBy:     actor,
		}
		if err := g.steps.Create(ctx, step); err != nil {
			return nil, fmt.Errorf("failed to create step: %w", err)
		}

		if err := g.history.Append(ctx, &entity.HistoryEntry{
			StepID:    step.ID,
			HeaderID:  header.ID,
			ToStatus:  entity.StepStatusPending,
			Actor:     actor,
			Timestamp: asOf,
		}); err != nil {
			return nil, fmt.Errorf("failed to record step creation: %w", err)
		}

		opened.Steps = append(opened.Steps, step)
		opened.Resolved = append(opened.Resolved, p)
	}

	g.logger.Info("Approval level opened",
		"header_id", header.ID,
		"level", level.Label,
		"steps", len(opened.Steps))
	return opened, nil
}

func ownerStep(header *entity.Header) entity.ResolvedStep {
	return entity.ResolvedStep{
		Kind:       entity.StepKindOwner,
		Level:      entity.OwnerLevel(),
		CostCenter: header.CostCenter,
	}
}
