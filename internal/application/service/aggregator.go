package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
)

// AggregateChange reports the aggregate status before and after a recompute
type AggregateChange struct {
	HeaderID int64
	Previous entity.AggregateStatus
	Current  entity.AggregateStatus
}

// Changed reports whether the recompute moved the header
func (c AggregateChange) Changed() bool {
	return c.Previous != c.Current
}

// DeriveAggregate folds the counting steps of a header into its status.
// A header without counting steps stays PENDING.
func DeriveAggregate(steps []*entity.ApprovalStep) entity.AggregateStatus {
	counted, pending := 0, false
	for _, s := range steps {
		if !s.Counts() {
			continue
		}
		counted++
		switch s.Status {
		case entity.StepStatusRejected:
			return entity.AggregateRejected
		case entity.StepStatusPending:
			pending = true
		}
	}
	if counted == 0 || pending {
		return entity.AggregatePending
	}
	return entity.AggregateApproved
}

// HeaderAggregator recomputes and stores a header's aggregate status
type HeaderAggregator interface {
	Recompute(ctx context.Context, headerID int64, at time.Time) (AggregateChange, error)
}

type aggregatorImpl struct {
	headers port.HeaderRepository
	steps   port.StepRepository
	logger  Logger
}

// NewHeaderAggregator creates a new header aggregator
func NewHeaderAggregator(headers port.HeaderRepository, steps port.StepRepository, logger Logger) HeaderAggregator {
	return &aggregatorImpl{headers: headers, steps: steps, logger: logger}
}

func (a *aggregatorImpl) Recompute(ctx context.Context, headerID int64, at time.Time) (AggregateChange, error) {
	header, err := a.headers.GetByID(ctx, headerID)
	if err != nil {
		return AggregateChange{}, fmt.Errorf("failed to load header: %w", err)
	}
	if header == nil {
		return AggregateChange{}, fmt.Errorf("%w: %d", entity.ErrHeaderNotFound, headerID)
	}

	steps, err := a.steps.ListByHeader(ctx, headerID)
	if err != nil {
		return AggregateChange{}, fmt.Errorf("failed to list steps: %w", err)
	}

	change := AggregateChange{
		HeaderID: headerID,
		Previous: header.AggregateStatus,
		Current:  DeriveAggregate(steps),
	}

	// the modification time moves on every recompute, even when the status holds
	if err := a.headers.UpdateAggregateStatus(ctx, headerID, change.Current, at); err != nil {
		return AggregateChange{}, err
	}
	if !change.Changed() {
		return change, nil
	}
	a.logger.Info("Header aggregate status changed",
		"header_id", headerID,
		"from", change.Previous,
		"to", change.Current)
	return change, nil
}
