package rule

import (
	"sort"
	"strings"

	"github.com/garyjia/po-authorization/internal/domain/entity"
)

// OrderedSteps collapses repeated (type, level) entries and sorts the rest by level,
// then by authorizer type label.
func OrderedSteps(r *entity.Rule) []entity.ApproverStep {
	if r == nil {
		return nil
	}

	type key struct{ typ, level string }
	seen := make(map[key]bool, len(r.ApproverSteps))
	out := make([]entity.ApproverStep, 0, len(r.ApproverSteps))
	for _, s := range r.ApproverSteps {
		k := key{s.TypeLabel(), s.Level.Label}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := entity.CompareLevels(out[i].Level, out[j].Level); c != 0 {
			return c < 0
		}
		return strings.Compare(out[i].TypeLabel(), out[j].TypeLabel()) < 0
	})
	return out
}

// Levels returns the distinct levels of a rule in opening order
func Levels(r *entity.Rule) []entity.Level {
	levels := make([]entity.Level, 0)
	for _, s := range OrderedSteps(r) {
		if len(levels) == 0 || levels[len(levels)-1].Label != s.Level.Label {
			levels = append(levels, s.Level)
		}
	}
	return levels
}

// StepsAt returns the ordered approver steps of one level
func StepsAt(r *entity.Rule, level entity.Level) []entity.ApproverStep {
	out := make([]entity.ApproverStep, 0)
	for _, s := range OrderedSteps(r) {
		if s.Level.Label == level.Label {
			out = append(out, s)
		}
	}
	return out
}
