package service

import (
	"context"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/internal/domain/event"
)

// ERPSyncService forwards final header decisions to the ERP
type ERPSyncService interface {
	HandleDecision(ctx context.Context, evt *event.Event) error
}

type erpSyncServiceImpl struct {
	client  port.ERPClient
	history port.HistoryRepository
	logger  Logger
}

// NewERPSyncService creates a new ERP sync service
func NewERPSyncService(client port.ERPClient, history port.HistoryRepository, logger Logger) ERPSyncService {
	return &erpSyncServiceImpl{client: client, history: history, logger: logger}
}

// HandleDecision pushes APPROVED or REJECTED to the ERP. An approval is not
// pushed for a header whose history holds a rejection.
func (s *erpSyncServiceImpl) HandleDecision(ctx context.Context, evt *event.Event) error {
	var status entity.AggregateStatus
	switch evt.Type {
	case event.TypeHeaderApproved:
		status = entity.AggregateApproved
	case event.TypeHeaderRejected:
		status = entity.AggregateRejected
	default:
		return nil
	}

	if status == entity.AggregateApproved {
		rejected, err := s.history.HasRejection(ctx, evt.HeaderID)
		if err != nil {
			s.logger.Error("ERP sync skipped, history unavailable", "header_id", evt.HeaderID, "error", err)
			return nil
		}
		if rejected {
			s.logger.Info("ERP sync skipped, header has a prior rejection", "header_id", evt.HeaderID)
			return nil
		}
	}

	if err := s.client.UpdateStatus(ctx, evt.HeaderID, status); err != nil {
		s.logger.Error("ERP sync failed", "header_id", evt.HeaderID, "status", status, "error", err)
		return nil
	}
	s.logger.Info("ERP sync completed", "header_id", evt.HeaderID, "status", status)
	return nil
}
