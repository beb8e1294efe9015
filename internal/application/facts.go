package application

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
)

// RecordFact appends one value for an attribute of an entity. ENTITY-typed
// values must name an existing instance and are stored as its decimal id.
func (s *GraphService) RecordFact(ctx context.Context, entityID, attributeClassID uint, value string, dateEvent *domain.Date) (domain.Fact, error) {
	dateEvent = domain.OrNil(dateEvent)
	entity, err := s.mustEntity(ctx, entityID)
	if err != nil {
		return domain.Fact{}, err
	}
	return s.recordFact(ctx, entity, attributeClassID, value, dateEvent)
}

func (s *GraphService) recordFact(ctx context.Context, entity domain.Entity, attributeClassID uint, value string, dateEvent *domain.Date) (domain.Fact, error) {
	ac, err := s.attributeForEntity(ctx, entity, attributeClassID)
	if err != nil {
		return domain.Fact{}, err
	}
	value, err = s.normalizeValue(ctx, ac, value)
	if err != nil {
		return domain.Fact{}, err
	}
	return s.repo.RecordFact(ctx, domain.Fact{
		Value:            value,
		AttributeClassID: ac.ID,
		EntityID:         entity.ID,
		DateEvent:        dateEvent,
	})
}

func (s *GraphService) attributeForEntity(ctx context.Context, entity domain.Entity, attributeClassID uint) (domain.AttributeClass, error) {
	if err := requireID("attribute_class_id", attributeClassID); err != nil {
		return domain.AttributeClass{}, err
	}
	ac, err := s.repo.GetAttributeClass(ctx, attributeClassID)
	if err != nil {
		return domain.AttributeClass{}, err
	}
	if ac.EntityClassID != entity.EntityClassID {
		return domain.AttributeClass{}, apperrors.Invalid("attribute_class_id", "attribute does not belong to the entity's class")
	}
	return ac, nil
}

func (s *GraphService) normalizeValue(ctx context.Context, ac domain.AttributeClass, value string) (string, error) {
	if !ac.IsReference() {
		return value, nil
	}
	target, ok := domain.ParseEntityRef(value)
	if !ok {
		return "", apperrors.Invalid("value", "must be an entity id")
	}
	exists, err := s.entityExists(ctx, target)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", apperrors.Dangling("value", "referenced entity "+strconv.FormatUint(uint64(target), 10)+" does not exist")
	}
	return strconv.FormatUint(uint64(target), 10), nil
}

// RecordFacts records several attribute values for one entity. Each value
// commits on its own: blank values are skipped and rejected values become
// warnings without affecting the others.
func (s *GraphService) RecordFacts(ctx context.Context, entityID uint, values map[uint]string, dateEvent *domain.Date) (domain.Submission, error) {
	dateEvent = domain.OrNil(dateEvent)
	entity, err := s.mustEntity(ctx, entityID)
	if err != nil {
		return domain.Submission{}, err
	}
	facts, warnings, err := s.recordValues(ctx, entity, values, dateEvent)
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.Submission{Entity: entity, Facts: facts, Warnings: warnings}, nil
}

func (s *GraphService) recordValues(ctx context.Context, entity domain.Entity, values map[uint]string, dateEvent *domain.Date) ([]domain.Fact, []domain.Warning, error) {
	facts := make([]domain.Fact, 0, len(values))
	warnings := make([]domain.Warning, 0)

	ids := make([]uint, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		value := values[id]
		if strings.TrimSpace(value) == "" {
			continue
		}
		fact, err := s.recordFact(ctx, entity, id, value, dateEvent)
		switch {
		case err == nil:
			facts = append(facts, fact)
		case apperrors.IsAny(err, apperrors.ErrInvalid, apperrors.ErrNotFound, apperrors.ErrDanglingReference):
			s.log.Warn("attribute value skipped", "entity_id", entity.ID, "attribute_class_id", id, "error", err)
			warnings = append(warnings, domain.Warning{AttributeClassID: id, Message: err.Error()})
		default:
			return nil, nil, apperrors.Wrapf(err, "record attribute %d", id)
		}
	}
	return facts, warnings, nil
}

func (s *GraphService) GetValueAsOf(ctx context.Context, entityID, attributeClassID uint, asOf domain.Date) (domain.Fact, bool, error) {
	entity, err := s.mustEntity(ctx, entityID)
	if err != nil {
		return domain.Fact{}, false, err
	}
	if _, err := s.attributeForEntity(ctx, entity, attributeClassID); err != nil {
		return domain.Fact{}, false, err
	}
	return s.repo.GetValueAsOf(ctx, entityID, attributeClassID, &asOf)
}

func (s *GraphService) GetAllValuesAsOf(ctx context.Context, entityID uint, asOf domain.Date) ([]domain.AttributeValue, error) {
	if _, err := s.mustEntity(ctx, entityID); err != nil {
		return nil, err
	}
	return s.repo.GetAllValuesAsOf(ctx, entityID, &asOf)
}

// GetLatestValues resolves every attribute to its most recently recorded
// value with no date bound.
func (s *GraphService) GetLatestValues(ctx context.Context, entityID uint) ([]domain.AttributeValue, error) {
	if _, err := s.mustEntity(ctx, entityID); err != nil {
		return nil, err
	}
	return s.repo.GetAllValuesAsOf(ctx, entityID, nil)
}

func (s *GraphService) FactHistory(ctx context.Context, entityID, attributeClassID uint) ([]domain.Fact, error) {
	entity, err := s.mustEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if _, err := s.attributeForEntity(ctx, entity, attributeClassID); err != nil {
		return nil, err
	}
	return s.repo.FactHistory(ctx, entityID, attributeClassID)
}

// CorrectFact rewrites a recorded fact in place. It is the only mutation of
// the fact log and is reserved for administrators.
func (s *GraphService) CorrectFact(ctx context.Context, factID uint, value string, dateEvent *domain.Date) (domain.Fact, error) {
	dateEvent = domain.OrNil(dateEvent)
	if err := requireID("fact_id", factID); err != nil {
		return domain.Fact{}, err
	}
	current, err := s.repo.GetFact(ctx, factID)
	if err != nil {
		return domain.Fact{}, err
	}
	ac, err := s.repo.GetAttributeClass(ctx, current.AttributeClassID)
	if err != nil {
		return domain.Fact{}, err
	}
	value, err = s.normalizeValue(ctx, ac, value)
	if err != nil {
		return domain.Fact{}, err
	}
	fact, err := s.repo.CorrectFact(ctx, factID, value, dateEvent)
	if err != nil {
		return domain.Fact{}, err
	}
	s.log.Warn("fact corrected in place", "fact_id", factID, "entity_id", fact.EntityID, "attribute_class_id", fact.AttributeClassID)
	return fact, nil
}
