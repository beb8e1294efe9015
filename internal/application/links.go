package application

import (
	"context"

	"github.com/Sevewell/enty/internal/domain"
)

// ListLinksAsOf returns the references leaving an entity that are effective
// on asOf, from ENTITY-typed attributes and from relation instances, as the
// linkage mode allows. Both kinds go through the same date predicate.
func (s *GraphService) ListLinksAsOf(ctx context.Context, entityID uint, asOf domain.Date) ([]domain.Linkage, error) {
	if _, err := s.mustEntity(ctx, entityID); err != nil {
		return nil, err
	}

	links := make([]domain.Linkage, 0)
	if s.attributesEnabled() {
		values, err := s.repo.GetAllValuesAsOf(ctx, entityID, &asOf)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			if link, ok := domain.LinkFromAttribute(entityID, v); ok {
				links = append(links, link)
			}
		}
	}
	if s.relationsEnabled() {
		edges, err := s.repo.ListOutgoing(ctx, entityID, &asOf)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			links = append(links, domain.LinkFromRelation(e))
		}
	}
	return domain.VisibleLinks(links, asOf), nil
}
