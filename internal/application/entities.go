package application

import (
	"context"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
)

// EntityInput describes an instance write. Values, keyed by attribute class
// id, are recorded best-effort after the instance itself is stored.
// Blank dates count as absent. On update an absent bound keeps the stored
// one; ClearDateIn and ClearDateOut make that side unbounded.
type EntityInput struct {
	Title        string          `json:"title"`
	DateIn       *domain.Date    `json:"date_in"`
	DateOut      *domain.Date    `json:"date_out"`
	ClearDateIn  bool            `json:"clear_date_in,omitempty"`
	ClearDateOut bool            `json:"clear_date_out,omitempty"`
	Values       map[uint]string `json:"values,omitempty"`
	DateEvent    *domain.Date    `json:"date_event,omitempty"`
}

func (in EntityInput) normalized() EntityInput {
	in.DateIn = domain.OrNil(in.DateIn)
	in.DateOut = domain.OrNil(in.DateOut)
	in.DateEvent = domain.OrNil(in.DateEvent)
	return in
}

// boundsOver applies the input's bounds on top of the stored ones.
func (in EntityInput) boundsOver(current domain.Entity) (*domain.Date, *domain.Date) {
	dateIn, dateOut := current.DateIn, current.DateOut
	if in.DateIn != nil || in.ClearDateIn {
		dateIn = in.DateIn
	}
	if in.DateOut != nil || in.ClearDateOut {
		dateOut = in.DateOut
	}
	return dateIn, dateOut
}

func (s *GraphService) CreateEntity(ctx context.Context, entityClassID uint, in EntityInput) (domain.Submission, error) {
	in = in.normalized()
	if err := requireID("entity_class_id", entityClassID); err != nil {
		return domain.Submission{}, err
	}
	title, err := cleanTitle("title", in.Title, maxInstanceTitle)
	if err != nil {
		return domain.Submission{}, err
	}
	if err := validateInterval(in.DateIn, in.DateOut); err != nil {
		return domain.Submission{}, err
	}
	if _, err := s.repo.GetEntityClass(ctx, entityClassID); err != nil {
		return domain.Submission{}, err
	}

	entity, err := s.repo.CreateEntity(ctx, domain.Entity{
		Title:         title,
		EntityClassID: entityClassID,
		DateIn:        in.DateIn,
		DateOut:       in.DateOut,
	})
	if err != nil {
		return domain.Submission{}, err
	}
	s.log.Info("entity created", "entity_id", entity.ID, "entity_class_id", entityClassID)

	facts, warnings, err := s.recordValues(ctx, entity, in.Values, in.DateEvent)
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.Submission{Entity: entity, Facts: facts, Warnings: warnings}, nil
}

func (s *GraphService) UpdateEntity(ctx context.Context, id uint, in EntityInput) (domain.Submission, error) {
	in = in.normalized()
	current, err := s.mustEntity(ctx, id)
	if err != nil {
		return domain.Submission{}, err
	}
	title, err := cleanTitle("title", in.Title, maxInstanceTitle)
	if err != nil {
		return domain.Submission{}, err
	}
	dateIn, dateOut := in.boundsOver(current)
	if err := validateInterval(dateIn, dateOut); err != nil {
		return domain.Submission{}, err
	}

	entity, err := s.repo.UpdateEntity(ctx, domain.Entity{
		ID:            current.ID,
		Title:         title,
		EntityClassID: current.EntityClassID,
		DateIn:        dateIn,
		DateOut:       dateOut,
	})
	if err != nil {
		return domain.Submission{}, err
	}

	facts, warnings, err := s.recordValues(ctx, entity, in.Values, in.DateEvent)
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.Submission{Entity: entity, Facts: facts, Warnings: warnings}, nil
}

func (s *GraphService) DeleteEntity(ctx context.Context, id uint) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	if err := s.repo.DeleteEntity(ctx, id); err != nil {
		return err
	}
	s.log.Info("entity deleted", "entity_id", id)
	return nil
}

func (s *GraphService) GetEntity(ctx context.Context, id uint) (domain.Entity, error) {
	return s.mustEntity(ctx, id)
}

// ListEntities returns every instance, optionally of one class, ignoring
// validity intervals.
func (s *GraphService) ListEntities(ctx context.Context, entityClassID *uint) ([]domain.Entity, error) {
	if entityClassID != nil {
		if _, err := s.repo.GetEntityClass(ctx, *entityClassID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListEntities(ctx, entityClassID)
}

// ListEntitiesAsOf returns the instances that exist on asOf.
func (s *GraphService) ListEntitiesAsOf(ctx context.Context, entityClassID *uint, asOf domain.Date) ([]domain.Entity, error) {
	if entityClassID != nil {
		if _, err := s.repo.GetEntityClass(ctx, *entityClassID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListEntitiesAsOf(ctx, entityClassID, asOf)
}

// BrowseEntities is the list read used by the outer surfaces: as-of when
// temporal scoping is on, plain otherwise.
func (s *GraphService) BrowseEntities(ctx context.Context, entityClassID *uint, asOf domain.Date) ([]domain.Entity, error) {
	if s.opts.TemporalScoping {
		return s.ListEntitiesAsOf(ctx, entityClassID, asOf)
	}
	return s.ListEntities(ctx, entityClassID)
}

// EntityDetail assembles an instance with its class, the attribute values
// effective on asOf split into scalars and references, and its relations.
// Without temporal scoping the latest known values are shown instead.
func (s *GraphService) EntityDetail(ctx context.Context, id uint, asOf domain.Date) (domain.EntityDetail, error) {
	entity, err := s.mustEntity(ctx, id)
	if err != nil {
		return domain.EntityDetail{}, err
	}
	class, err := s.repo.GetEntityClass(ctx, entity.EntityClassID)
	if err != nil {
		return domain.EntityDetail{}, err
	}

	var bound *domain.Date
	if s.opts.TemporalScoping {
		bound = &asOf
	}

	values, err := s.repo.GetAllValuesAsOf(ctx, id, bound)
	if err != nil {
		return domain.EntityDetail{}, err
	}

	detail := domain.EntityDetail{
		Entity:     entity,
		Class:      class,
		AsOf:       bound,
		Attributes: make([]domain.AttributeValue, 0, len(values)),
		References: make([]domain.AttributeValue, 0),
		Outgoing:   make([]domain.RelationEdge, 0),
		Incoming:   make([]domain.RelationEdge, 0),
	}
	for _, v := range values {
		if v.IsReference() {
			detail.References = append(detail.References, v)
			continue
		}
		detail.Attributes = append(detail.Attributes, v)
	}

	if s.relationsEnabled() {
		if detail.Outgoing, err = s.repo.ListOutgoing(ctx, id, bound); err != nil {
			return domain.EntityDetail{}, err
		}
		if detail.Incoming, err = s.repo.ListIncoming(ctx, id, bound); err != nil {
			return domain.EntityDetail{}, err
		}
	}
	return detail, nil
}

// entityExists is used by reference validation; a missing target is not an
// error here.
func (s *GraphService) entityExists(ctx context.Context, id uint) (bool, error) {
	if _, err := s.repo.GetEntity(ctx, id); err != nil {
		if apperrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
