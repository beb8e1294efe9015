package gormstore

import (
	"context"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
	"gorm.io/gorm"
)

type GraphRepository struct {
	db *gorm.DB
}

var _ domain.GraphRepository = (*GraphRepository)(nil)

func NewGraphRepository(db *gorm.DB) *GraphRepository {
	return &GraphRepository{db: db}
}

func toEntityClass(m EntityClassModel) domain.EntityClass {
	return domain.EntityClass{ID: m.ID, Title: m.Title}
}

func toAttributeClass(m AttributeClassModel) domain.AttributeClass {
	return domain.AttributeClass{
		ID:            m.ID,
		Title:         m.Title,
		EntityClassID: m.EntityClassID,
		DataType:      m.DataType,
		OrderDisplay:  m.OrderDisplay,
	}
}

func duplicate(err error, field, message string) error {
	if apperrors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Duplicate(field, message)
	}
	return err
}

func (r *GraphRepository) CreateEntityClass(ctx context.Context, value domain.EntityClass) (domain.EntityClass, error) {
	m := EntityClassModel{Title: value.Title}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.EntityClass{}, duplicate(err, "title", "entity class already exists")
	}
	return toEntityClass(m), nil
}

func (r *GraphRepository) UpdateEntityClass(ctx context.Context, value domain.EntityClass) (domain.EntityClass, error) {
	var m EntityClassModel
	if err := r.db.WithContext(ctx).First(&m, value.ID).Error; err != nil {
		return domain.EntityClass{}, notFound(err, "entity class")
	}
	if err := r.db.WithContext(ctx).Model(&m).Update("title", value.Title).Error; err != nil {
		return domain.EntityClass{}, duplicate(err, "title", "entity class already exists")
	}
	m.Title = value.Title
	return toEntityClass(m), nil
}

// DeleteEntityClass removes the class together with everything that hangs
// off it: attribute classes, relation classes touching it, its instances,
// their facts and every relation instance touching those instances.
func (r *GraphRepository) DeleteEntityClass(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m EntityClassModel
		if err := tx.First(&m, id).Error; err != nil {
			return notFound(err, "entity class")
		}

		instances := tx.Model(&EntityInstanceModel{}).Select("id").Where("entity_class_id = ?", id)
		attrClasses := tx.Model(&AttributeClassModel{}).Select("id").Where("entity_class_id = ?", id)
		relClasses := tx.Model(&RelationClassModel{}).Select("id").
			Where("from_entity_class_id = ? OR to_entity_class_id = ?", id, id)

		if err := tx.Where("relation_class_id IN (?) OR entity_from_id IN (?) OR entity_to_id IN (?)", relClasses, instances, instances).
			Delete(&RelationInstanceModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entity_instance_id IN (?) OR attribute_class_id IN (?)", instances, attrClasses).
			Delete(&AttributeFactModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("from_entity_class_id = ? OR to_entity_class_id = ?", id, id).
			Delete(&RelationClassModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entity_class_id = ?", id).Delete(&AttributeClassModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entity_class_id = ?", id).Delete(&EntityInstanceModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&EntityClassModel{}, id).Error
	})
}

func (r *GraphRepository) GetEntityClass(ctx context.Context, id uint) (domain.EntityClass, error) {
	var m EntityClassModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.EntityClass{}, notFound(err, "entity class")
	}
	return toEntityClass(m), nil
}

func (r *GraphRepository) ListEntityClasses(ctx context.Context) ([]domain.EntityClass, error) {
	rows := make([]EntityClassModel, 0)
	if err := r.db.WithContext(ctx).Order("title ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.EntityClass, 0, len(rows))
	for _, m := range rows {
		result = append(result, toEntityClass(m))
	}
	return result, nil
}

func (r *GraphRepository) EntityClassTitleExists(ctx context.Context, title string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&EntityClassModel{}).
		Where("title = ? AND id <> ?", title, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *GraphRepository) CreateAttributeClass(ctx context.Context, value domain.AttributeClass) (domain.AttributeClass, error) {
	m := AttributeClassModel{
		Title:         value.Title,
		EntityClassID: value.EntityClassID,
		DataType:      value.DataType,
		OrderDisplay:  value.OrderDisplay,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AttributeClass{}, duplicate(err, "title", "attribute class already exists")
	}
	return toAttributeClass(m), nil
}

func (r *GraphRepository) UpdateAttributeClass(ctx context.Context, value domain.AttributeClass) (domain.AttributeClass, error) {
	var m AttributeClassModel
	if err := r.db.WithContext(ctx).First(&m, value.ID).Error; err != nil {
		return domain.AttributeClass{}, notFound(err, "attribute class")
	}
	err := r.db.WithContext(ctx).Model(&m).Updates(map[string]any{
		"title":         value.Title,
		"data_type":     value.DataType,
		"order_display": value.OrderDisplay,
	}).Error
	if err != nil {
		return domain.AttributeClass{}, duplicate(err, "title", "attribute class already exists")
	}
	m.Title, m.DataType, m.OrderDisplay = value.Title, value.DataType, value.OrderDisplay
	return toAttributeClass(m), nil
}

// DeleteAttributeClass removes the class and its whole fact history.
func (r *GraphRepository) DeleteAttributeClass(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m AttributeClassModel
		if err := tx.First(&m, id).Error; err != nil {
			return notFound(err, "attribute class")
		}
		if err := tx.Where("attribute_class_id = ?", id).Delete(&AttributeFactModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&AttributeClassModel{}, id).Error
	})
}

func (r *GraphRepository) GetAttributeClass(ctx context.Context, id uint) (domain.AttributeClass, error) {
	var m AttributeClassModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.AttributeClass{}, notFound(err, "attribute class")
	}
	return toAttributeClass(m), nil
}

// ListAttributeClasses returns the classes of one entity class in display order.
func (r *GraphRepository) ListAttributeClasses(ctx context.Context, entityClassID uint) ([]domain.AttributeClass, error) {
	rows := make([]AttributeClassModel, 0)
	err := r.db.WithContext(ctx).
		Where("entity_class_id = ?", entityClassID).
		Order("COALESCE(order_display, id) ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.AttributeClass, 0, len(rows))
	for _, m := range rows {
		result = append(result, toAttributeClass(m))
	}
	return result, nil
}

func (r *GraphRepository) AttributeClassTitleExists(ctx context.Context, entityClassID uint, title string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&AttributeClassModel{}).
		Where("entity_class_id = ? AND title = ? AND id <> ?", entityClassID, title, excludeID).
		Count(&count).Error
	return count > 0, err
}

type relationClassRow struct {
	ID                uint
	Title             string
	FromEntityClassID uint
	ToEntityClassID   uint
	FromClassTitle    string
	ToClassTitle      string
}

const relationClassSelect = `
SELECT rc.id,
       rc.title,
       rc.from_entity_class_id,
       rc.to_entity_class_id,
       COALESCE(fc.title, '') AS from_class_title,
       COALESCE(tc.title, '') AS to_class_title
FROM relation_class rc
LEFT JOIN entity_class fc ON fc.id = rc.from_entity_class_id
LEFT JOIN entity_class tc ON tc.id = rc.to_entity_class_id
`

func toRelationClass(m relationClassRow) domain.RelationClass {
	return domain.RelationClass{
		ID:                m.ID,
		Title:             m.Title,
		FromEntityClassID: m.FromEntityClassID,
		ToEntityClassID:   m.ToEntityClassID,
		FromClassTitle:    m.FromClassTitle,
		ToClassTitle:      m.ToClassTitle,
	}
}

func (r *GraphRepository) CreateRelationClass(ctx context.Context, value domain.RelationClass) (domain.RelationClass, error) {
	m := RelationClassModel{
		Title:             value.Title,
		FromEntityClassID: value.FromEntityClassID,
		ToEntityClassID:   value.ToEntityClassID,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.RelationClass{}, duplicate(err, "title", "relation class already exists")
	}
	return r.GetRelationClass(ctx, m.ID)
}

func (r *GraphRepository) UpdateRelationClass(ctx context.Context, value domain.RelationClass) (domain.RelationClass, error) {
	var m RelationClassModel
	if err := r.db.WithContext(ctx).First(&m, value.ID).Error; err != nil {
		return domain.RelationClass{}, notFound(err, "relation class")
	}
	err := r.db.WithContext(ctx).Model(&m).Updates(map[string]any{
		"title":                value.Title,
		"from_entity_class_id": value.FromEntityClassID,
		"to_entity_class_id":   value.ToEntityClassID,
	}).Error
	if err != nil {
		return domain.RelationClass{}, duplicate(err, "title", "relation class already exists")
	}
	return r.GetRelationClass(ctx, m.ID)
}

// DeleteRelationClass removes the class and all of its instances.
func (r *GraphRepository) DeleteRelationClass(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m RelationClassModel
		if err := tx.First(&m, id).Error; err != nil {
			return notFound(err, "relation class")
		}
		if err := tx.Where("relation_class_id = ?", id).Delete(&RelationInstanceModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&RelationClassModel{}, id).Error
	})
}

func (r *GraphRepository) GetRelationClass(ctx context.Context, id uint) (domain.RelationClass, error) {
	rows := make([]relationClassRow, 0, 1)
	if err := r.db.WithContext(ctx).Raw(relationClassSelect+"WHERE rc.id = ?", id).Scan(&rows).Error; err != nil {
		return domain.RelationClass{}, err
	}
	if len(rows) == 0 {
		return domain.RelationClass{}, apperrors.NotFound("relation class")
	}
	return toRelationClass(rows[0]), nil
}

// ListRelationClasses lists all relation classes, or only those with the
// given entity class at either end.
func (r *GraphRepository) ListRelationClasses(ctx context.Context, entityClassID *uint) ([]domain.RelationClass, error) {
	query := relationClassSelect
	args := make([]any, 0, 2)
	if entityClassID != nil {
		query += "WHERE rc.from_entity_class_id = ? OR rc.to_entity_class_id = ?\n"
		args = append(args, *entityClassID, *entityClassID)
	}
	query += "ORDER BY rc.title ASC, rc.id ASC"

	rows := make([]relationClassRow, 0)
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.RelationClass, 0, len(rows))
	for _, m := range rows {
		result = append(result, toRelationClass(m))
	}
	return result, nil
}

func (r *GraphRepository) RelationClassTitleExists(ctx context.Context, title string, fromClassID, toClassID uint, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&RelationClassModel{}).
		Where("title = ? AND from_entity_class_id = ? AND to_entity_class_id = ? AND id <> ?", title, fromClassID, toClassID, excludeID).
		Count(&count).Error
	return count > 0, err
}
