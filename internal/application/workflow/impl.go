package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/application/service"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/internal/domain/event"
	domainwf "github.com/garyjia/po-authorization/internal/domain/workflow"
	"github.com/garyjia/po-authorization/pkg/utils"
)

// DefaultMaxCascadeIterations bounds CascadeApprove per header
const DefaultMaxCascadeIterations = 10

const resolvedInfoComment = "information request resolved"

// engineImpl is the concrete implementation of ApprovalEngine
type engineImpl struct {
	headers    port.HeaderRepository
	steps      port.StepRepository
	history    port.HistoryRepository
	txManager  port.TransactionManager
	directory  port.AuthorizerDirectory
	rules      service.RuleService
	generator  service.StepGenerator
	aggregator service.HeaderAggregator
	logger     service.Logger

	publisher     service.EventPublisher
	privileged    map[string]bool
	maxIterations int
	now           func() time.Time
}

// EngineOption configures the approval engine
type EngineOption func(*engineImpl)

// WithPublisher sets where committed events go
func WithPublisher(p service.EventPublisher) EngineOption {
	return func(e *engineImpl) {
		e.publisher = p
	}
}

// WithPrivilegedActors sets the actors allowed to override and cascade
func WithPrivilegedActors(actors ...string) EngineOption {
	return func(e *engineImpl) {
		for _, a := range actors {
			if a = strings.TrimSpace(a); a != "" {
				e.privileged[a] = true
			}
		}
	}
}

// WithMaxCascadeIterations sets the cascade cap
func WithMaxCascadeIterations(n int) EngineOption {
	return func(e *engineImpl) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new approval engine
func NewEngine(
	headers port.HeaderRepository,
	steps port.StepRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	directory port.AuthorizerDirectory,
	rules service.RuleService,
	generator service.StepGenerator,
	aggregator service.HeaderAggregator,
	logger service.Logger,
	opts ...EngineOption,
) ApprovalEngine {
	e := &engineImpl{
		headers:       headers,
		steps:         steps,
		history:       history,
		txManager:     txManager,
		directory:     directory,
		rules:         rules,
		generator:     generator,
		aggregator:    aggregator,
		logger:        logger,
		privileged:    make(map[string]bool),
		maxIterations: DefaultMaxCascadeIterations,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// decision carries one batch request down to the per-header transaction
type decision struct {
	trigger    domainwf.Trigger
	actor      string
	comment    string
	reasonCode string
	override   bool
}

// headerRun collects what happened to one header inside its transaction
type headerRun struct {
	outcome     entity.HeaderOutcome
	events      []*event.Event
	correlation string
}

func (r *headerRun) skip(reason string, status entity.AggregateStatus) {
	r.outcome.Skipped = true
	r.outcome.Reason = reason
	r.outcome.Status = status
}

func (e *engineImpl) Approve(ctx context.Context, headerIDs []int64, actor, comment string, override bool) (*entity.BatchOutcome, error) {
	actor, err := e.validate(headerIDs, actor, override)
	if err != nil {
		return nil, err
	}
	d := decision{trigger: domainwf.TriggerApprove, actor: actor, comment: comment, override: override}
	return e.batch(ctx, headerIDs, func(ctx context.Context, run *headerRun, header *entity.Header) error {
		return e.decide(ctx, run, header, d)
	}), nil
}

func (e *engineImpl) Reject(ctx context.Context, headerIDs []int64, actor, motiveCode, comment string, override bool) (*entity.BatchOutcome, error) {
	actor, err := e.validate(headerIDs, actor, override)
	if err != nil {
		return nil, err
	}
	motiveCode = strings.TrimSpace(motiveCode)
	if motiveCode == "" {
		return nil, fmt.Errorf("%w: rejection motive is required", entity.ErrValidation)
	}
	d := decision{trigger: domainwf.TriggerReject, actor: actor, comment: comment, reasonCode: motiveCode, override: override}
	return e.batch(ctx, headerIDs, func(ctx context.Context, run *headerRun, header *entity.Header) error {
		return e.decide(ctx, run, header, d)
	}), nil
}

func (e *engineImpl) RequestMoreInfo(ctx context.Context, headerIDs []int64, actor, description string) (*entity.BatchOutcome, error) {
	actor, err := e.validate(headerIDs, actor, false)
	if err != nil {
		return nil, err
	}
	description = strings.TrimSpace(utils.SanitizeString(description))
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", entity.ErrValidation)
	}
	d := decision{trigger: domainwf.TriggerRequestInfo, actor: actor, comment: description}
	return e.batch(ctx, headerIDs, func(ctx context.Context, run *headerRun, header *entity.Header) error {
		return e.requestInfo(ctx, run, header, d)
	}), nil
}

func (e *engineImpl) ResolveInfoRequest(ctx context.Context, headerIDs []int64, actor string) (*entity.BatchOutcome, error) {
	actor, err := e.validate(headerIDs, actor, false)
	if err != nil {
		return nil, err
	}
	return e.batch(ctx, headerIDs, func(ctx context.Context, run *headerRun, header *entity.Header) error {
		return e.resolveInfo(ctx, run, header, actor)
	}), nil
}

func (e *engineImpl) CascadeApprove(ctx context.Context, headerIDs []int64, actor string) (*entity.BatchOutcome, error) {
	actor, err := e.validate(headerIDs, actor, true)
	if err != nil {
		return nil, err
	}
	d := decision{trigger: domainwf.TriggerApprove, actor: actor, comment: "cascade approval", override: true}
	return e.batch(ctx, headerIDs, func(ctx context.Context, run *headerRun, header *entity.Header) error {
		return e.cascade(ctx, run, header, d)
	}), nil
}

// validate checks the batch input and returns the trimmed actor id every later
// lookup and history entry uses
func (e *engineImpl) validate(headerIDs []int64, actor string, needsPrivilege bool) (string, error) {
	if err := utils.ValidateHeaderIDs(headerIDs); err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if err := utils.ValidateActor(actor); err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	actor = strings.TrimSpace(actor)
	if needsPrivilege && !e.privileged[actor] {
		return "", fmt.Errorf("%w: %s", entity.ErrNotPrivileged, actor)
	}
	return actor, nil
}

// batch runs apply for every header in its own transaction holding the header lock.
// Events are published only after the header's transaction committed.
func (e *engineImpl) batch(ctx context.Context, headerIDs []int64, apply func(context.Context, *headerRun, *entity.Header) error) *entity.BatchOutcome {
	outcome := &entity.BatchOutcome{}
	for _, id := range utils.DedupeIDs(headerIDs) {
		run := &headerRun{
			outcome:     entity.HeaderOutcome{HeaderID: id},
			correlation: uuid.NewString(),
		}

		err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			header, err := e.headers.Lock(txCtx, id)
			if err != nil {
				return err
			}
			if header == nil {
				return fmt.Errorf("%w: %d", entity.ErrHeaderNotFound, id)
			}
			if header.AggregateStatus.IsFinal() {
				run.skip(entity.ReasonAlreadyFinal, header.AggregateStatus)
				return nil
			}
			return apply(txCtx, run, header)
		})

		if err != nil {
			e.logger.Error("Header decision aborted", "header_id", id, "error", err)
			outcome.Add(entity.HeaderOutcome{HeaderID: id, Error: err.Error()})
			continue
		}

		if e.publisher != nil && len(run.events) > 0 {
			e.publisher.Publish(ctx, run.events...)
		}
		outcome.Add(run.outcome)
	}

	e.logger.Info("Batch finished",
		"headers", len(outcome.Results),
		"transitioned", outcome.Transitioned,
		"skipped", len(outcome.SkippedIDs()),
		"failed", len(outcome.Failed()))
	return outcome
}

// decide applies an approve or reject decision to the current level of one header
func (e *engineImpl) decide(ctx context.Context, run *headerRun, header *entity.Header, d decision) error {
	if d.trigger == domainwf.TriggerApprove {
		rejected, err := e.history.HasRejection(ctx, header.ID)
		if err != nil {
			return err
		}
		if rejected {
			run.skip(entity.ReasonPriorRejection, header.AggregateStatus)
			return nil
		}
	}

	targets, reason, err := e.targets(ctx, header, d)
	if err != nil {
		return err
	}
	if reason != "" {
		run.skip(reason, header.AggregateStatus)
		return nil
	}

	n, err := e.transition(ctx, header, targets, d)
	if err != nil {
		return err
	}
	run.outcome.Transitioned += n

	if d.trigger == domainwf.TriggerApprove {
		if err := e.openNextLevel(ctx, run, header, d.actor); err != nil {
			return err
		}
	}
	return e.recompute(ctx, run, header, d.actor)
}

// cascade repeats approve-and-open until the header is decided or the cap is reached
func (e *engineImpl) cascade(ctx context.Context, run *headerRun, header *entity.Header, d decision) error {
	rejected, err := e.history.HasRejection(ctx, header.ID)
	if err != nil {
		return err
	}
	if rejected {
		run.skip(entity.ReasonPriorRejection, header.AggregateStatus)
		return nil
	}

	for i := 0; i < e.maxIterations; i++ {
		targets, reason, err := e.targets(ctx, header, d)
		if err != nil {
			return err
		}
		if reason != "" {
			if run.outcome.Transitioned == 0 {
				run.skip(reason, header.AggregateStatus)
			}
			return e.recompute(ctx, run, header, d.actor)
		}

		n, err := e.transition(ctx, header, targets, d)
		if err != nil {
			return err
		}
		run.outcome.Transitioned += n

		if err := e.openNextLevel(ctx, run, header, d.actor); err != nil {
			return err
		}
		if err := e.recompute(ctx, run, header, d.actor); err != nil {
			return err
		}
		if run.outcome.Status.IsFinal() {
			return nil
		}
	}

	e.logger.Error("Cascade stopped at iteration cap", "header_id", header.ID, "cap", e.maxIterations)
	run.outcome.Reason = entity.ReasonCascadeCap
	return nil
}

// targets returns the counting pending steps the decision applies to, or a skip reason
func (e *engineImpl) targets(ctx context.Context, header *entity.Header, d decision) ([]*entity.ApprovalStep, string, error) {
	steps, err := e.steps.ListByHeader(ctx, header.ID)
	if err != nil {
		return nil, "", err
	}

	pending := make([]*entity.ApprovalStep, 0)
	for _, s := range steps {
		if s.Counts() && s.Status == entity.StepStatusPending {
			pending = append(pending, s)
		}
	}
	if len(pending) == 0 {
		return nil, entity.ReasonNoPendingSteps, nil
	}
	if d.override {
		return pending, "", nil
	}

	assignments, err := e.directory.ResolveAssignmentsForActor(ctx, d.actor, e.now())
	if err != nil {
		return nil, "", err
	}
	covered := service.CoveredSteps(pending, assignments, e.now())
	if len(covered) == 0 {
		e.logger.Info("Actor skipped, no matching assignment", "header_id", header.ID, "actor", d.actor)
		return nil, entity.ReasonNotAuthorized, nil
	}
	return covered, "", nil
}

// transition moves each target out of PENDING with a conditional update.
// A step another request already moved counts as a no-op.
func (e *engineImpl) transition(ctx context.Context, header *entity.Header, targets []*entity.ApprovalStep, d decision) (int, error) {
	at := e.now()
	count := 0
	for _, s := range targets {
		to, err := fire(ctx, s, d.trigger)
		if err != nil {
			return count, err
		}

		ok, err := e.steps.TransitionIfPending(ctx, s.ID, to, d.actor, d.reasonCode, d.comment, at)
		if err != nil {
			return count, err
		}
		if !ok {
			continue
		}

		if err := e.history.Append(ctx, &entity.HistoryEntry{
			StepID:     s.ID,
			HeaderID:   header.ID,
			FromStatus: s.Status,
			ToStatus:   to,
			Actor:      d.actor,
			Comment:    d.comment,
			Timestamp:  at,
		}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (e *engineImpl) openNextLevel(ctx context.Context, run *headerRun, header *entity.Header, actor string) error {
	if header.RuleID == nil {
		return nil
	}
	matched, err := e.rules.GetRule(ctx, *header.RuleID)
	if err != nil {
		return err
	}
	if matched == nil {
		return fmt.Errorf("rule %d of header %d no longer exists", *header.RuleID, header.ID)
	}

	opened, err := e.generator.OpenNextLevel(ctx, header, matched, actor, e.now())
	if err != nil {
		return err
	}
	if opened != nil {
		run.events = append(run.events, event.NewEventWithCorrelation(event.TypeLevelOpened, header.ID, map[string]interface{}{
			event.KeyLevel:   opened.Level.Label,
			event.KeyStepIDs: opened.StepIDs(),
		}, run.correlation))
	}
	return nil
}

func (e *engineImpl) recompute(ctx context.Context, run *headerRun, header *entity.Header, actor string) error {
	change, err := e.aggregator.Recompute(ctx, header.ID, e.now())
	if err != nil {
		return err
	}
	run.outcome.Status = change.Current
	header.AggregateStatus = change.Current

	if !change.Changed() {
		return nil
	}
	var typ event.Type
	switch change.Current {
	case entity.AggregateApproved:
		typ = event.TypeHeaderApproved
	case entity.AggregateRejected:
		typ = event.TypeHeaderRejected
	default:
		return nil
	}
	run.events = append(run.events, event.NewEventWithCorrelation(typ, header.ID, map[string]interface{}{
		event.KeyActor:  actor,
		event.KeyStatus: string(change.Current),
	}, run.correlation))
	return nil
}

// requestInfo adds a NEEDS_INFO marker next to every pending step the actor covers.
// The pending steps themselves stay open.
func (e *engineImpl) requestInfo(ctx context.Context, run *headerRun, header *entity.Header, d decision) error {
	targets, reason, err := e.targets(ctx, header, d)
	if err != nil {
		return err
	}
	if reason != "" {
		run.skip(reason, header.AggregateStatus)
		return nil
	}

	existing, err := e.steps.ListByHeader(ctx, header.ID)
	if err != nil {
		return err
	}
	open := make(map[entity.StepKey]bool)
	for _, s := range existing {
		if s.Status == entity.StepStatusNeedsInfo && !s.Superseded {
			open[s.Key()] = true
		}
	}

	at := e.now()
	for _, s := range targets {
		if open[s.Key()] {
			continue
		}
		to, err := fire(ctx, s, d.trigger)
		if err != nil {
			return err
		}

		marker := &entity.ApprovalStep{
			HeaderID:       header.ID,
			Kind:           s.Kind,
			AuthorizerType: s.AuthorizerType,
			Level:          s.Level,
			CostCenter:     s.CostCenter,
			Status:         to,
			Comment:        d.comment,
			CreatedAt:      at,
			ModifiedAt:     at,
			ModifiedBy:     d.actor,
		}
		if err := e.steps.Create(ctx, marker); err != nil {
			return err
		}
		if err := e.history.Append(ctx, &entity.HistoryEntry{
			StepID:     marker.ID,
			HeaderID:   header.ID,
			FromStatus: s.Status,
			ToStatus:   marker.Status,
			Actor:      d.actor,
			Comment:    d.comment,
			Timestamp:  at,
		}); err != nil {
			return err
		}
		run.outcome.Transitioned++
	}

	run.outcome.Status = header.AggregateStatus
	if run.outcome.Transitioned > 0 {
		run.events = append(run.events, event.NewEventWithCorrelation(event.TypeInfoRequested, header.ID, map[string]interface{}{
			event.KeyActor:   d.actor,
			event.KeyComment: d.comment,
		}, run.correlation))
	}
	return nil
}

// resolveInfo supersedes the header's open NEEDS_INFO markers. Only the requester
// or a privileged actor may do this.
func (e *engineImpl) resolveInfo(ctx context.Context, run *headerRun, header *entity.Header, actor string) error {
	if actor != header.RequesterID && !e.privileged[actor] {
		run.skip(entity.ReasonNotAuthorized, header.AggregateStatus)
		return nil
	}

	steps, err := e.steps.ListByHeader(ctx, header.ID)
	if err != nil {
		return err
	}

	at := e.now()
	for _, s := range steps {
		if s.Status != entity.StepStatusNeedsInfo || s.Superseded {
			continue
		}
		ok, err := e.steps.Supersede(ctx, s.ID, actor, at)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := e.history.Append(ctx, &entity.HistoryEntry{
			StepID:     s.ID,
			HeaderID:   header.ID,
			FromStatus: s.Status,
			ToStatus:   s.Status,
			Actor:      actor,
			Comment:    resolvedInfoComment,
			Timestamp:  at,
		}); err != nil {
			return err
		}
		run.outcome.Transitioned++
	}

	if run.outcome.Transitioned == 0 {
		run.skip(entity.ReasonNoInfoRequests, header.AggregateStatus)
		return nil
	}
	run.outcome.Status = header.AggregateStatus
	return nil
}

// fire runs the trigger through the step's state machine and returns the new status
func fire(ctx context.Context, s *entity.ApprovalStep, trigger domainwf.Trigger) (entity.StepStatus, error) {
	machine, err := BuildStepStateMachine(domainwf.State(s.Status))
	if err != nil {
		return "", err
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return "", fmt.Errorf("step %d: %w", s.ID, err)
	}
	return entity.StepStatus(machine.State()), nil
}
