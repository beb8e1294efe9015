package application

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
)

type AttributeClassInput struct {
	Title        string `json:"title"`
	DataType     string `json:"data_type"`
	OrderDisplay *int   `json:"order_display"`
}

type RelationClassInput struct {
	Title             string `json:"title"`
	FromEntityClassID uint   `json:"from_entity_class_id"`
	ToEntityClassID   uint   `json:"to_entity_class_id"`
}

func (s *GraphService) CreateEntityClass(ctx context.Context, title string) (domain.EntityClass, error) {
	title, err := cleanTitle("title", title, maxClassTitle)
	if err != nil {
		return domain.EntityClass{}, err
	}
	exists, err := s.repo.EntityClassTitleExists(ctx, title, 0)
	if err != nil {
		return domain.EntityClass{}, err
	}
	if exists {
		return domain.EntityClass{}, apperrors.Duplicate("title", "an entity class with this title already exists")
	}
	return s.repo.CreateEntityClass(ctx, domain.EntityClass{Title: title})
}

func (s *GraphService) UpdateEntityClass(ctx context.Context, id uint, title string) (domain.EntityClass, error) {
	if err := requireID("id", id); err != nil {
		return domain.EntityClass{}, err
	}
	title, err := cleanTitle("title", title, maxClassTitle)
	if err != nil {
		return domain.EntityClass{}, err
	}
	if _, err := s.repo.GetEntityClass(ctx, id); err != nil {
		return domain.EntityClass{}, err
	}
	exists, err := s.repo.EntityClassTitleExists(ctx, title, id)
	if err != nil {
		return domain.EntityClass{}, err
	}
	if exists {
		return domain.EntityClass{}, apperrors.Duplicate("title", "an entity class with this title already exists")
	}
	return s.repo.UpdateEntityClass(ctx, domain.EntityClass{ID: id, Title: title})
}

func (s *GraphService) DeleteEntityClass(ctx context.Context, id uint) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	if err := s.repo.DeleteEntityClass(ctx, id); err != nil {
		return err
	}
	s.log.Info("entity class deleted", "entity_class_id", id)
	return nil
}

func (s *GraphService) GetEntityClass(ctx context.Context, id uint) (domain.EntityClass, error) {
	return s.repo.GetEntityClass(ctx, id)
}

func (s *GraphService) ListEntityClasses(ctx context.Context) ([]domain.EntityClass, error) {
	return s.repo.ListEntityClasses(ctx)
}

func (s *GraphService) validateAttributeClass(in AttributeClassInput) (AttributeClassInput, error) {
	title, err := cleanTitle("title", in.Title, maxClassTitle)
	if err != nil {
		return in, err
	}
	dataType := strings.TrimSpace(in.DataType)
	if dataType == "" {
		return in, apperrors.Invalid("data_type", "is required")
	}
	if utf8.RuneCountInString(dataType) > maxDataType {
		return in, apperrors.Invalid("data_type", "must be at most 50 characters")
	}
	if domain.IsReferenceType(dataType) {
		dataType = domain.DataTypeEntity
		if !s.attributesEnabled() {
			return in, apperrors.Invalid("data_type", "ENTITY attributes are disabled in relation linkage mode")
		}
	}
	if in.OrderDisplay != nil && (*in.OrderDisplay < minOrderDisplay || *in.OrderDisplay > maxOrderDisplay) {
		return in, apperrors.Invalid("order_display", "must be between 1 and 999")
	}
	return AttributeClassInput{Title: title, DataType: dataType, OrderDisplay: in.OrderDisplay}, nil
}

func (s *GraphService) CreateAttributeClass(ctx context.Context, entityClassID uint, in AttributeClassInput) (domain.AttributeClass, error) {
	if err := requireID("entity_class_id", entityClassID); err != nil {
		return domain.AttributeClass{}, err
	}
	in, err := s.validateAttributeClass(in)
	if err != nil {
		return domain.AttributeClass{}, err
	}
	if _, err := s.repo.GetEntityClass(ctx, entityClassID); err != nil {
		return domain.AttributeClass{}, err
	}
	exists, err := s.repo.AttributeClassTitleExists(ctx, entityClassID, in.Title, 0)
	if err != nil {
		return domain.AttributeClass{}, err
	}
	if exists {
		return domain.AttributeClass{}, apperrors.Duplicate("title", "an attribute with this title already exists for the entity class")
	}
	return s.repo.CreateAttributeClass(ctx, domain.AttributeClass{
		Title:         in.Title,
		EntityClassID: entityClassID,
		DataType:      in.DataType,
		OrderDisplay:  in.OrderDisplay,
	})
}

// attributeOfClass loads an attribute class and checks it belongs to the
// addressed entity class. A mismatch reads as not found.
func (s *GraphService) attributeOfClass(ctx context.Context, entityClassID, id uint) (domain.AttributeClass, error) {
	ac, err := s.repo.GetAttributeClass(ctx, id)
	if err != nil {
		return domain.AttributeClass{}, err
	}
	if ac.EntityClassID != entityClassID {
		return domain.AttributeClass{}, apperrors.NotFound("attribute class")
	}
	return ac, nil
}

func (s *GraphService) UpdateAttributeClass(ctx context.Context, entityClassID, id uint, in AttributeClassInput) (domain.AttributeClass, error) {
	in, err := s.validateAttributeClass(in)
	if err != nil {
		return domain.AttributeClass{}, err
	}
	if _, err := s.attributeOfClass(ctx, entityClassID, id); err != nil {
		return domain.AttributeClass{}, err
	}
	exists, err := s.repo.AttributeClassTitleExists(ctx, entityClassID, in.Title, id)
	if err != nil {
		return domain.AttributeClass{}, err
	}
	if exists {
		return domain.AttributeClass{}, apperrors.Duplicate("title", "an attribute with this title already exists for the entity class")
	}
	return s.repo.UpdateAttributeClass(ctx, domain.AttributeClass{
		ID:            id,
		Title:         in.Title,
		EntityClassID: entityClassID,
		DataType:      in.DataType,
		OrderDisplay:  in.OrderDisplay,
	})
}

func (s *GraphService) DeleteAttributeClass(ctx context.Context, entityClassID, id uint) error {
	if _, err := s.attributeOfClass(ctx, entityClassID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteAttributeClass(ctx, id); err != nil {
		return err
	}
	s.log.Info("attribute class deleted", "entity_class_id", entityClassID, "attribute_class_id", id)
	return nil
}

func (s *GraphService) ListAttributeClasses(ctx context.Context, entityClassID uint) ([]domain.AttributeClass, error) {
	if _, err := s.repo.GetEntityClass(ctx, entityClassID); err != nil {
		return nil, err
	}
	return s.repo.ListAttributeClasses(ctx, entityClassID)
}

func (s *GraphService) validateRelationClass(ctx context.Context, in RelationClassInput) (RelationClassInput, error) {
	if err := s.requireRelations(); err != nil {
		return in, err
	}
	title, err := cleanTitle("title", in.Title, maxClassTitle)
	if err != nil {
		return in, err
	}
	if err := requireID("from_entity_class_id", in.FromEntityClassID); err != nil {
		return in, err
	}
	if err := requireID("to_entity_class_id", in.ToEntityClassID); err != nil {
		return in, err
	}
	if _, err := s.repo.GetEntityClass(ctx, in.FromEntityClassID); err != nil {
		if apperrors.IsNotFound(err) {
			return in, apperrors.Invalid("from_entity_class_id", "entity class does not exist")
		}
		return in, err
	}
	if _, err := s.repo.GetEntityClass(ctx, in.ToEntityClassID); err != nil {
		if apperrors.IsNotFound(err) {
			return in, apperrors.Invalid("to_entity_class_id", "entity class does not exist")
		}
		return in, err
	}
	in.Title = title
	return in, nil
}

func (s *GraphService) CreateRelationClass(ctx context.Context, in RelationClassInput) (domain.RelationClass, error) {
	in, err := s.validateRelationClass(ctx, in)
	if err != nil {
		return domain.RelationClass{}, err
	}
	exists, err := s.repo.RelationClassTitleExists(ctx, in.Title, in.FromEntityClassID, in.ToEntityClassID, 0)
	if err != nil {
		return domain.RelationClass{}, err
	}
	if exists {
		return domain.RelationClass{}, apperrors.Duplicate("title", "a relation class with this title already links these entity classes")
	}
	return s.repo.CreateRelationClass(ctx, domain.RelationClass{
		Title:             in.Title,
		FromEntityClassID: in.FromEntityClassID,
		ToEntityClassID:   in.ToEntityClassID,
	})
}

func (s *GraphService) UpdateRelationClass(ctx context.Context, id uint, in RelationClassInput) (domain.RelationClass, error) {
	in, err := s.validateRelationClass(ctx, in)
	if err != nil {
		return domain.RelationClass{}, err
	}
	if _, err := s.repo.GetRelationClass(ctx, id); err != nil {
		return domain.RelationClass{}, err
	}
	exists, err := s.repo.RelationClassTitleExists(ctx, in.Title, in.FromEntityClassID, in.ToEntityClassID, id)
	if err != nil {
		return domain.RelationClass{}, err
	}
	if exists {
		return domain.RelationClass{}, apperrors.Duplicate("title", "a relation class with this title already links these entity classes")
	}
	return s.repo.UpdateRelationClass(ctx, domain.RelationClass{
		ID:                id,
		Title:             in.Title,
		FromEntityClassID: in.FromEntityClassID,
		ToEntityClassID:   in.ToEntityClassID,
	})
}

func (s *GraphService) DeleteRelationClass(ctx context.Context, id uint) error {
	if err := s.requireRelations(); err != nil {
		return err
	}
	if err := s.repo.DeleteRelationClass(ctx, id); err != nil {
		return err
	}
	s.log.Info("relation class deleted", "relation_class_id", id)
	return nil
}

func (s *GraphService) GetRelationClass(ctx context.Context, id uint) (domain.RelationClass, error) {
	if err := s.requireRelations(); err != nil {
		return domain.RelationClass{}, err
	}
	return s.repo.GetRelationClass(ctx, id)
}

func (s *GraphService) ListRelationClasses(ctx context.Context, entityClassID *uint) ([]domain.RelationClass, error) {
	if err := s.requireRelations(); err != nil {
		return nil, err
	}
	return s.repo.ListRelationClasses(ctx, entityClassID)
}
