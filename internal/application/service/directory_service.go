package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
)

type directoryServiceImpl struct {
	assignments port.AssignmentRepository
	logger      Logger
}

// NewAuthorizerDirectory builds the directory on top of stored assignments
func NewAuthorizerDirectory(assignments port.AssignmentRepository, logger Logger) port.AuthorizerDirectory {
	return &directoryServiceImpl{assignments: assignments, logger: logger}
}

// ResolveCandidates returns persons whose active assignment matches the level and type.
// Assignments for the exact cost center win; global ones are used only when none exist.
func (d *directoryServiceImpl) ResolveCandidates(ctx context.Context, level entity.Level, authorizerType *string, costCenter string, asOf time.Time) ([]entity.Person, error) {
	all, err := d.assignments.ListByLevel(ctx, level.Label)
	if err != nil {
		return nil, fmt.Errorf("list assignments for level %s: %w", level.Label, err)
	}

	var specific, global []string
	for _, a := range all {
		if !a.ActiveAt(asOf) || !a.MatchesType(authorizerType) {
			continue
		}
		switch {
		case a.IsGlobal():
			global = append(global, a.PersonID)
		case *a.CostCenter == costCenter:
			specific = append(specific, a.PersonID)
		}
	}

	ids := specific
	if len(ids) == 0 {
		ids = global
	}
	if len(ids) == 0 {
		return []entity.Person{}, nil
	}

	persons, err := d.assignments.GetPersons(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("load candidate persons: %w", err)
	}
	return persons, nil
}

// ResolveAssignmentsForActor returns the actor's assignments in force at asOf
func (d *directoryServiceImpl) ResolveAssignmentsForActor(ctx context.Context, actorID string, asOf time.Time) ([]*entity.AuthorizerAssignment, error) {
	all, err := d.assignments.ListByPerson(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for %s: %w", actorID, err)
	}

	active := make([]*entity.AuthorizerAssignment, 0, len(all))
	for _, a := range all {
		if a.ActiveAt(asOf) {
			active = append(active, a)
		}
	}
	return active, nil
}

// CoveredSteps filters steps down to those any of the assignments lets its holder act on
func CoveredSteps(steps []*entity.ApprovalStep, assignments []*entity.AuthorizerAssignment, asOf time.Time) []*entity.ApprovalStep {
	out := make([]*entity.ApprovalStep, 0)
	for _, s := range steps {
		for _, a := range assignments {
			if a.Covers(s, asOf) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
