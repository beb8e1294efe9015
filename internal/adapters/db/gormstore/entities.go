package gormstore

import (
	"context"
	"database/sql"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
	"gorm.io/gorm"
)

type entityRow struct {
	ID            uint
	Title         string
	EntityClassID uint
	ClassTitle    string
	DateIn        sql.NullString
	DateOut       sql.NullString
}

const entitySelect = `
SELECT e.id,
       e.title,
       e.entity_class_id,
       COALESCE(ec.title, '') AS class_title,
       e.date_in,
       e.date_out
FROM entity_instance e
LEFT JOIN entity_class ec ON ec.id = e.entity_class_id
`

// Instances with no start date sort after dated ones; ties fall back to
// the newest id.
const entityOrder = `
ORDER BY CASE WHEN e.date_in IS NULL THEN 1 ELSE 0 END, e.date_in DESC, e.id DESC`

func toEntity(m entityRow) domain.Entity {
	return domain.Entity{
		ID:            m.ID,
		Title:         m.Title,
		EntityClassID: m.EntityClassID,
		ClassTitle:    m.ClassTitle,
		DateIn:        datePtr(m.DateIn),
		DateOut:       datePtr(m.DateOut),
	}
}

func (r *GraphRepository) CreateEntity(ctx context.Context, value domain.Entity) (domain.Entity, error) {
	m := EntityInstanceModel{
		Title:         value.Title,
		EntityClassID: value.EntityClassID,
		DateIn:        nullDate(value.DateIn),
		DateOut:       nullDate(value.DateOut),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Entity{}, err
	}
	return r.GetEntity(ctx, m.ID)
}

// UpdateEntity rewrites title and validity interval. The class of an
// instance never changes.
func (r *GraphRepository) UpdateEntity(ctx context.Context, value domain.Entity) (domain.Entity, error) {
	var m EntityInstanceModel
	if err := r.db.WithContext(ctx).First(&m, value.ID).Error; err != nil {
		return domain.Entity{}, notFound(err, "entity")
	}
	err := r.db.WithContext(ctx).Model(&m).Updates(map[string]any{
		"title":    value.Title,
		"date_in":  nullDate(value.DateIn),
		"date_out": nullDate(value.DateOut),
	}).Error
	if err != nil {
		return domain.Entity{}, err
	}
	return r.GetEntity(ctx, m.ID)
}

// DeleteEntity removes the instance, its facts and every relation touching
// it. Facts of other instances that reference it are left dangling.
func (r *GraphRepository) DeleteEntity(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m EntityInstanceModel
		if err := tx.First(&m, id).Error; err != nil {
			return notFound(err, "entity")
		}
		if err := tx.Where("entity_from_id = ? OR entity_to_id = ?", id, id).Delete(&RelationInstanceModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entity_instance_id = ?", id).Delete(&AttributeFactModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&EntityInstanceModel{}, id).Error
	})
}

func (r *GraphRepository) GetEntity(ctx context.Context, id uint) (domain.Entity, error) {
	rows := make([]entityRow, 0, 1)
	if err := r.db.WithContext(ctx).Raw(entitySelect+"WHERE e.id = ?", id).Scan(&rows).Error; err != nil {
		return domain.Entity{}, err
	}
	if len(rows) == 0 {
		return domain.Entity{}, apperrors.NotFound("entity")
	}
	return toEntity(rows[0]), nil
}

// ListEntities returns every instance regardless of validity.
func (r *GraphRepository) ListEntities(ctx context.Context, entityClassID *uint) ([]domain.Entity, error) {
	query := entitySelect
	args := make([]any, 0, 1)
	if entityClassID != nil {
		query += "WHERE e.entity_class_id = ?"
		args = append(args, *entityClassID)
	}
	return r.scanEntities(ctx, query+entityOrder, args...)
}

// ListEntitiesAsOf returns the instances whose [date_in, date_out) interval
// contains asOf. A missing bound is unbounded on that side.
func (r *GraphRepository) ListEntitiesAsOf(ctx context.Context, entityClassID *uint, asOf domain.Date) ([]domain.Entity, error) {
	query := entitySelect + `WHERE (e.date_in IS NULL OR e.date_in <= ?)
  AND (e.date_out IS NULL OR e.date_out > ?)`
	args := []any{asOf, asOf}
	if entityClassID != nil {
		query += "\n  AND e.entity_class_id = ?"
		args = append(args, *entityClassID)
	}
	return r.scanEntities(ctx, query+entityOrder, args...)
}

func (r *GraphRepository) scanEntities(ctx context.Context, query string, args ...any) ([]domain.Entity, error) {
	rows := make([]entityRow, 0)
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Entity, 0, len(rows))
	for _, m := range rows {
		result = append(result, toEntity(m))
	}
	return result, nil
}
