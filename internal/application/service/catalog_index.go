package service

import (
	"context"
	"fmt"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/internal/domain/rule"
)

// catalogIndex is an in-memory view of master data used to validate a rule set
type catalogIndex struct {
	costCenters map[string]bool
	categories  map[string]bool
	types       map[string]bool
	typeOrder   []string
	levels      map[string]entity.Level
}

func loadCatalogIndex(ctx context.Context, catalog port.CatalogRepository) (*catalogIndex, error) {
	idx := &catalogIndex{
		costCenters: make(map[string]bool),
		categories:  make(map[string]bool),
		types:       make(map[string]bool),
		levels:      make(map[string]entity.Level),
	}

	ccs, err := catalog.ListCostCenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cost centers: %w", err)
	}
	for _, cc := range ccs {
		idx.costCenters[cc.Code] = true
	}

	cats, err := catalog.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	for _, c := range cats {
		idx.categories[c.Code] = true
	}

	types, err := catalog.ListAuthorizerTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load authorizer types: %w", err)
	}
	for _, t := range types {
		idx.types[t.Code] = true
		idx.typeOrder = append(idx.typeOrder, t.Code)
	}

	levels, err := catalog.ListLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	for _, l := range levels {
		idx.levels[l.Label] = l
	}
	return idx, nil
}

func (c *catalogIndex) HasCostCenter(code string) bool     { return c.costCenters[code] }
func (c *catalogIndex) HasCategory(code string) bool       { return c.categories[code] }
func (c *catalogIndex) HasAuthorizerType(code string) bool { return c.types[code] }

func (c *catalogIndex) Level(label string) (entity.Level, bool) {
	l, ok := c.levels[label]
	return l, ok
}

var _ rule.Catalog = (*catalogIndex)(nil)
