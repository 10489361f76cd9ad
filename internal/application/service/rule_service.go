package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/internal/domain/event"
	"github.com/garyjia/po-authorization/internal/domain/rule"
	"github.com/garyjia/po-authorization/pkg/utils"
)

// RuleService manages the versioned rule set and selects rules for headers
type RuleService interface {
	// Snapshot returns the active rule set, or nil when none was imported yet
	Snapshot(ctx context.Context) (*entity.RuleSetSnapshot, error)
	Evaluate(ctx context.Context, q rule.Query) (*entity.Rule, error)
	GetRule(ctx context.Context, id int64) (*entity.Rule, error)

	// Replace validates rules and stores them as the next version
	Replace(ctx context.Context, rules []*entity.Rule, actor string, expectedVersion int64) (int64, error)

	ImportWorkbook(ctx context.Context, r io.Reader, actor string, expectedVersion int64) (int64, error)
	ExportWorkbook(ctx context.Context, w io.Writer) error
}

type ruleServiceImpl struct {
	rules     port.RuleRepository
	catalog   port.CatalogRepository
	codec     port.RuleSheetCodec
	archive   port.WorkbookArchive
	publisher EventPublisher
	logger    Logger

	mu     sync.RWMutex
	cached *entity.RuleSetSnapshot
}

// NewRuleService creates a new rule service. codec and archive may be nil
// when workbook import and export are not needed.
func NewRuleService(
	rules port.RuleRepository,
	catalog port.CatalogRepository,
	codec port.RuleSheetCodec,
	archive port.WorkbookArchive,
	publisher EventPublisher,
	logger Logger,
) RuleService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &ruleServiceImpl{
		rules:     rules,
		catalog:   catalog,
		codec:     codec,
		archive:   archive,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *ruleServiceImpl) Snapshot(ctx context.Context) (*entity.RuleSetSnapshot, error) {
	version, err := s.rules.CurrentVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set version: %w", err)
	}

	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil && cached.Version == version {
		return cached, nil
	}

	snapshot, err := s.rules.LoadActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rule set: %w", err)
	}

	s.mu.Lock()
	s.cached = snapshot
	s.mu.Unlock()
	return snapshot, nil
}

func (s *ruleServiceImpl) Evaluate(ctx context.Context, q rule.Query) (*entity.Rule, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(snapshot, q)
}

func (s *ruleServiceImpl) GetRule(ctx context.Context, id int64) (*entity.Rule, error) {
	if snapshot, err := s.Snapshot(ctx); err == nil {
		if r := snapshot.RuleByID(id); r != nil {
			return r, nil
		}
	}
	return s.rules.GetRule(ctx, id)
}

func (s *ruleServiceImpl) Replace(ctx context.Context, rules []*entity.Rule, actor string, expectedVersion int64) (int64, error) {
	if err := utils.ValidateActor(actor); err != nil {
		return 0, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	actor = strings.TrimSpace(actor)

	idx, err := loadCatalogIndex(ctx, s.catalog)
	if err != nil {
		return 0, err
	}
	if err := rule.Validate(rules, idx); err != nil {
		s.logger.Error("Rule set rejected", "actor", actor, "error", err)
		return 0, err
	}

	version, err := s.rules.ReplaceAll(ctx, rules, actor, expectedVersion)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()

	s.logger.Info("Rule set replaced", "version", version, "rules", len(rules), "actor", actor)
	s.publisher.Publish(ctx, event.NewEvent(event.TypeRuleSetReplaced, 0, map[string]interface{}{
		event.KeyVersion: version,
		event.KeyActor:   actor,
	}))
	return version, nil
}

func (s *ruleServiceImpl) ImportWorkbook(ctx context.Context, r io.Reader, actor string, expectedVersion int64) (int64, error) {
	if s.codec == nil {
		return 0, fmt.Errorf("rule workbook import is not configured")
	}
	if err := utils.ValidateActor(actor); err != nil {
		return 0, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	actor = strings.TrimSpace(actor)

	content, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read workbook: %w", err)
	}

	rules, err := s.codec.Decode(bytes.NewReader(content))
	if err != nil {
		return 0, err
	}

	version, err := s.Replace(ctx, rules, actor, expectedVersion)
	if err != nil {
		return 0, err
	}

	if s.archive != nil {
		if path, err := s.archive.Save(ctx, version, actor, content); err != nil {
			s.logger.Error("Failed to archive rule workbook", "version", version, "error", err)
		} else {
			s.logger.Info("Rule workbook archived", "version", version, "path", path)
		}
	}
	return version, nil
}

func (s *ruleServiceImpl) ExportWorkbook(ctx context.Context, w io.Writer) error {
	if s.codec == nil {
		return fmt.Errorf("rule workbook export is not configured")
	}

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snapshot == nil {
		snapshot = &entity.RuleSetSnapshot{}
	}

	types, err := s.catalog.ListAuthorizerTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list authorizer types: %w", err)
	}
	codes := make([]string, 0, len(types))
	for _, t := range types {
		codes = append(codes, t.Code)
	}
	return s.codec.Encode(w, snapshot, codes)
}
