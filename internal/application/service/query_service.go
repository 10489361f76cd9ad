package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
)

// QueryService answers read-only questions about headers and approvers
type QueryService interface {
	GetHeader(ctx context.Context, headerID int64) (*entity.Header, error)
	HeaderSteps(ctx context.Context, headerID int64) ([]*entity.ApprovalStep, error)
	HeaderHistory(ctx context.Context, headerID int64) ([]*entity.HistoryEntry, error)

	// PendingForActor lists the open steps the actor may act on right now
	PendingForActor(ctx context.Context, actorID string) ([]*entity.ApprovalStep, error)
}

type queryServiceImpl struct {
	headers   port.HeaderRepository
	steps     port.StepRepository
	history   port.HistoryRepository
	directory port.AuthorizerDirectory
	now       func() time.Time
}

// NewQueryService creates a new query service
func NewQueryService(
	headers port.HeaderRepository,
	steps port.StepRepository,
	history port.HistoryRepository,
	directory port.AuthorizerDirectory,
) QueryService {
	return &queryServiceImpl{
		headers:   headers,
		steps:     steps,
		history:   history,
		directory: directory,
		now:       time.Now,
	}
}

func (q *queryServiceImpl) GetHeader(ctx context.Context, headerID int64) (*entity.Header, error) {
	header, err := q.headers.GetByID(ctx, headerID)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, fmt.Errorf("%w: %d", entity.ErrHeaderNotFound, headerID)
	}
	return header, nil
}

func (q *queryServiceImpl) HeaderSteps(ctx context.Context, headerID int64) ([]*entity.ApprovalStep, error) {
	if _, err := q.GetHeader(ctx, headerID); err != nil {
		return nil, err
	}
	return q.steps.ListByHeader(ctx, headerID)
}

func (q *queryServiceImpl) HeaderHistory(ctx context.Context, headerID int64) ([]*entity.HistoryEntry, error) {
	if _, err := q.GetHeader(ctx, headerID); err != nil {
		return nil, err
	}
	return q.history.ListByHeader(ctx, headerID)
}

func (q *queryServiceImpl) PendingForActor(ctx context.Context, actorID string) ([]*entity.ApprovalStep, error) {
	asOf := q.now()
	assignments, err := q.directory.ResolveAssignmentsForActor(ctx, actorID, asOf)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return []*entity.ApprovalStep{}, nil
	}

	pending, err := q.steps.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	return CoveredSteps(pending, assignments, asOf), nil
}
