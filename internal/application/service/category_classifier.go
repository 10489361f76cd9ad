package service

import (
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/pkg/utils"
)

// categoryPrefixes maps legacy category-name prefixes to their classification.
// Longer prefixes come first so INDIRECTO is not read as DIRECTO.
var categoryPrefixes = []struct {
	prefix string
	brt    entity.BusinessRuleType
}{
	{"INTERCOMPAÑIA", entity.BusinessRuleIntercompany},
	{"INTERCOMPANY", entity.BusinessRuleIntercompany},
	{"INDIRECTO", entity.BusinessRuleIndirect},
	{"INDIRECT", entity.BusinessRuleIndirect},
	{"DIRECTO", entity.BusinessRuleDirect},
	{"DIRECT", entity.BusinessRuleDirect},
}

// ClassifyCategoryName is the one-time backfill heuristic for categories that
// predate the explicit business rule type field.
func ClassifyCategoryName(name string) (entity.BusinessRuleType, bool) {
	for _, p := range categoryPrefixes {
		if utils.HasNormalizedPrefix(name, p.prefix) {
			return p.brt, true
		}
	}
	return "", false
}
