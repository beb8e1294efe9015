package application

import (
	"context"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
)

type ConnectInput struct {
	RelationClassID uint         `json:"relation_class_id"`
	FromEntityID    uint         `json:"from_entity_id"`
	ToEntityID      uint         `json:"to_entity_id"`
	DateEvent       *domain.Date `json:"date_event"`
}

// Connect records a relation instance. Both endpoints must exist, differ,
// and belong to the classes the relation class links.
func (s *GraphService) Connect(ctx context.Context, in ConnectInput) (domain.RelationEdge, error) {
	if err := s.requireRelations(); err != nil {
		return domain.RelationEdge{}, err
	}
	in.DateEvent = domain.OrNil(in.DateEvent)
	if err := requireID("relation_class_id", in.RelationClassID); err != nil {
		return domain.RelationEdge{}, err
	}
	if err := requireID("from_entity_id", in.FromEntityID); err != nil {
		return domain.RelationEdge{}, err
	}
	if err := requireID("to_entity_id", in.ToEntityID); err != nil {
		return domain.RelationEdge{}, err
	}
	if in.FromEntityID == in.ToEntityID {
		return domain.RelationEdge{}, apperrors.Invalid("to_entity_id", "an entity cannot be related to itself")
	}

	rc, err := s.repo.GetRelationClass(ctx, in.RelationClassID)
	if err != nil {
		return domain.RelationEdge{}, err
	}
	from, err := s.repo.GetEntity(ctx, in.FromEntityID)
	if err != nil {
		return domain.RelationEdge{}, err
	}
	to, err := s.repo.GetEntity(ctx, in.ToEntityID)
	if err != nil {
		return domain.RelationEdge{}, err
	}
	if from.EntityClassID != rc.FromEntityClassID {
		return domain.RelationEdge{}, apperrors.Invalid("from_entity_id", "entity class does not match the relation class")
	}
	if to.EntityClassID != rc.ToEntityClassID {
		return domain.RelationEdge{}, apperrors.Invalid("to_entity_id", "entity class does not match the relation class")
	}

	created, err := s.repo.CreateRelation(ctx, domain.RelationInstance{
		RelationClassID: rc.ID,
		FromEntityID:    from.ID,
		ToEntityID:      to.ID,
		DateEvent:       in.DateEvent,
	})
	if err != nil {
		return domain.RelationEdge{}, err
	}
	return s.repo.GetRelation(ctx, created.ID)
}

func (s *GraphService) Disconnect(ctx context.Context, id uint) error {
	if err := s.requireRelations(); err != nil {
		return err
	}
	if err := requireID("id", id); err != nil {
		return err
	}
	return s.repo.DeleteRelation(ctx, id)
}

func (s *GraphService) GetRelation(ctx context.Context, id uint) (domain.RelationEdge, error) {
	if err := s.requireRelations(); err != nil {
		return domain.RelationEdge{}, err
	}
	return s.repo.GetRelation(ctx, id)
}

// ListOutgoing lists relations leaving the entity. A nil asOf lists all of
// them regardless of event date.
func (s *GraphService) ListOutgoing(ctx context.Context, entityID uint, asOf *domain.Date) ([]domain.RelationEdge, error) {
	if err := s.requireRelations(); err != nil {
		return nil, err
	}
	if _, err := s.mustEntity(ctx, entityID); err != nil {
		return nil, err
	}
	return s.repo.ListOutgoing(ctx, entityID, s.scoped(asOf))
}

func (s *GraphService) ListIncoming(ctx context.Context, entityID uint, asOf *domain.Date) ([]domain.RelationEdge, error) {
	if err := s.requireRelations(); err != nil {
		return nil, err
	}
	if _, err := s.mustEntity(ctx, entityID); err != nil {
		return nil, err
	}
	return s.repo.ListIncoming(ctx, entityID, s.scoped(asOf))
}

func (s *GraphService) scoped(asOf *domain.Date) *domain.Date {
	if !s.opts.TemporalScoping {
		return nil
	}
	return asOf
}
