package gormstore

import (
	"context"
	"database/sql"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
)

type relationRow struct {
	ID              uint
	RelationClassID uint
	RelationTitle   string
	FromEntityID    uint
	FromTitle       string
	ToEntityID      uint
	ToTitle         string
	DateEvent       sql.NullString
}

const relationSelect = `
SELECT r.id,
       r.relation_class_id,
       COALESCE(rc.title, '') AS relation_title,
       r.entity_from_id AS from_entity_id,
       COALESCE(fe.title, '') AS from_title,
       r.entity_to_id AS to_entity_id,
       COALESCE(te.title, '') AS to_title,
       r.date_event
FROM relation_instance r
LEFT JOIN relation_class rc ON rc.id = r.relation_class_id
LEFT JOIN entity_instance fe ON fe.id = r.entity_from_id
LEFT JOIN entity_instance te ON te.id = r.entity_to_id
`

func toRelationEdge(m relationRow) domain.RelationEdge {
	return domain.RelationEdge{
		ID:              m.ID,
		RelationClassID: m.RelationClassID,
		RelationTitle:   m.RelationTitle,
		FromEntityID:    m.FromEntityID,
		FromTitle:       m.FromTitle,
		ToEntityID:      m.ToEntityID,
		ToTitle:         m.ToTitle,
		DateEvent:       datePtr(m.DateEvent),
	}
}

func (r *GraphRepository) CreateRelation(ctx context.Context, value domain.RelationInstance) (domain.RelationInstance, error) {
	m := RelationInstanceModel{
		RelationClassID: value.RelationClassID,
		EntityFromID:    value.FromEntityID,
		EntityToID:      value.ToEntityID,
		DateEvent:       nullDate(value.DateEvent),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.RelationInstance{}, err
	}
	return domain.RelationInstance{
		ID:              m.ID,
		RelationClassID: m.RelationClassID,
		FromEntityID:    m.EntityFromID,
		ToEntityID:      m.EntityToID,
		DateEvent:       datePtr(m.DateEvent),
	}, nil
}

func (r *GraphRepository) DeleteRelation(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&RelationInstanceModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("relation")
	}
	return nil
}

func (r *GraphRepository) GetRelation(ctx context.Context, id uint) (domain.RelationEdge, error) {
	rows := make([]relationRow, 0, 1)
	if err := r.db.WithContext(ctx).Raw(relationSelect+"WHERE r.id = ?", id).Scan(&rows).Error; err != nil {
		return domain.RelationEdge{}, err
	}
	if len(rows) == 0 {
		return domain.RelationEdge{}, apperrors.NotFound("relation")
	}
	return toRelationEdge(rows[0]), nil
}

func (r *GraphRepository) ListOutgoing(ctx context.Context, entityID uint, asOf *domain.Date) ([]domain.RelationEdge, error) {
	return r.listRelations(ctx, "r.entity_from_id = ?", entityID, asOf)
}

func (r *GraphRepository) ListIncoming(ctx context.Context, entityID uint, asOf *domain.Date) ([]domain.RelationEdge, error) {
	return r.listRelations(ctx, "r.entity_to_id = ?", entityID, asOf)
}

func (r *GraphRepository) listRelations(ctx context.Context, where string, entityID uint, asOf *domain.Date) ([]domain.RelationEdge, error) {
	query := relationSelect + "WHERE " + where
	args := []any{entityID}
	if asOf != nil {
		query += "\n  AND (r.date_event IS NULL OR r.date_event <= ?)"
		args = append(args, *asOf)
	}
	query += "\nORDER BY rc.title ASC, r.id ASC"

	rows := make([]relationRow, 0)
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.RelationEdge, 0, len(rows))
	for _, m := range rows {
		result = append(result, toRelationEdge(m))
	}
	return result, nil
}
