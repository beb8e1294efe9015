package gormstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Sevewell/enty/internal/domain"
)

func toFact(m AttributeFactModel) domain.Fact {
	return domain.Fact{
		ID:               m.ID,
		Value:            m.Value,
		AttributeClassID: m.AttributeClassID,
		EntityID:         m.EntityInstanceID,
		DateEvent:        datePtr(m.DateEvent),
	}
}

// RecordFact appends a fact. Earlier facts for the same attribute stay in
// the log.
func (r *GraphRepository) RecordFact(ctx context.Context, value domain.Fact) (domain.Fact, error) {
	m := AttributeFactModel{
		Value:            value.Value,
		AttributeClassID: value.AttributeClassID,
		EntityInstanceID: value.EntityID,
		DateEvent:        nullDate(value.DateEvent),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Fact{}, err
	}
	return toFact(m), nil
}

func (r *GraphRepository) GetFact(ctx context.Context, id uint) (domain.Fact, error) {
	var m AttributeFactModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.Fact{}, notFound(err, "fact")
	}
	return toFact(m), nil
}

// GetValueAsOf selects the most recently recorded fact among those
// effective on asOf. Recording order wins over event date.
func (r *GraphRepository) GetValueAsOf(ctx context.Context, entityID, attributeClassID uint, asOf *domain.Date) (domain.Fact, bool, error) {
	q := r.db.WithContext(ctx).
		Where("entity_instance_id = ? AND attribute_class_id = ?", entityID, attributeClassID)
	if asOf != nil {
		q = q.Where("(date_event IS NULL OR date_event <= ?)", *asOf)
	}

	rows := make([]AttributeFactModel, 0, 1)
	if err := q.Order("id DESC").Limit(1).Find(&rows).Error; err != nil {
		return domain.Fact{}, false, err
	}
	if len(rows) == 0 {
		return domain.Fact{}, false, nil
	}
	return toFact(rows[0]), true, nil
}

type attributeValueRow struct {
	AttributeClassID uint
	AttributeTitle   string
	DataType         string
	OrderDisplay     *int
	FactID           uint
	Value            string
	DateEvent        sql.NullString
}

// GetAllValuesAsOf resolves one value per attribute class of the entity's
// class, skipping attributes with no effective fact. ENTITY-typed values
// carry the referenced instance title, or nil when the target is gone.
func (r *GraphRepository) GetAllValuesAsOf(ctx context.Context, entityID uint, asOf *domain.Date) ([]domain.AttributeValue, error) {
	dateFilter := ""
	args := []any{entityID}
	if asOf != nil {
		dateFilter = "AND (a2.date_event IS NULL OR a2.date_event <= ?)"
		args = append(args, *asOf)
	}

	query := fmt.Sprintf(`
SELECT ac.id AS attribute_class_id,
       ac.title AS attribute_title,
       ac.data_type,
       ac.order_display,
       ai.id AS fact_id,
       ai.value,
       ai.date_event
FROM entity_instance e
JOIN attribute_class ac ON ac.entity_class_id = e.entity_class_id
JOIN attribute_instance ai ON ai.attribute_class_id = ac.id AND ai.entity_instance_id = e.id
WHERE e.id = ?
  AND ai.id = (
    SELECT MAX(a2.id)
    FROM attribute_instance a2
    WHERE a2.entity_instance_id = e.id
      AND a2.attribute_class_id = ac.id
      %s
  )
ORDER BY COALESCE(ac.order_display, ac.id) ASC, ac.id ASC
`, dateFilter)

	rows := make([]attributeValueRow, 0)
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]domain.AttributeValue, 0, len(rows))
	refs := make([]uint, 0)
	for _, m := range rows {
		v := domain.AttributeValue{
			AttributeClassID: m.AttributeClassID,
			AttributeTitle:   m.AttributeTitle,
			DataType:         m.DataType,
			OrderDisplay:     m.OrderDisplay,
			FactID:           m.FactID,
			Value:            m.Value,
			DateEvent:        datePtr(m.DateEvent),
		}
		if id, ok := v.ReferenceID(); ok {
			refs = append(refs, id)
		}
		result = append(result, v)
	}

	if len(refs) == 0 {
		return result, nil
	}
	titles, err := r.entityTitles(ctx, refs)
	if err != nil {
		return nil, err
	}
	for i := range result {
		if id, ok := result[i].ReferenceID(); ok {
			if title, found := titles[id]; found {
				result[i].ReferenceTitle = &title
			}
		}
	}
	return result, nil
}

func (r *GraphRepository) entityTitles(ctx context.Context, ids []uint) (map[uint]string, error) {
	rows := make([]EntityInstanceModel, 0, len(ids))
	if err := r.db.WithContext(ctx).Select("id", "title").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	titles := make(map[uint]string, len(rows))
	for _, m := range rows {
		titles[m.ID] = m.Title
	}
	return titles, nil
}

// FactHistory lists every fact recorded for one attribute of one entity in
// recording order.
func (r *GraphRepository) FactHistory(ctx context.Context, entityID, attributeClassID uint) ([]domain.Fact, error) {
	rows := make([]AttributeFactModel, 0)
	err := r.db.WithContext(ctx).
		Where("entity_instance_id = ? AND attribute_class_id = ?", entityID, attributeClassID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.Fact, 0, len(rows))
	for _, m := range rows {
		result = append(result, toFact(m))
	}
	return result, nil
}

// CorrectFact rewrites a recorded fact in place. It keeps the fact id, so
// its position in recording order is unchanged.
func (r *GraphRepository) CorrectFact(ctx context.Context, id uint, value string, dateEvent *domain.Date) (domain.Fact, error) {
	var m AttributeFactModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.Fact{}, notFound(err, "fact")
	}
	err := r.db.WithContext(ctx).Model(&m).Updates(map[string]any{
		"value":      value,
		"date_event": nullDate(dateEvent),
	}).Error
	if err != nil {
		return domain.Fact{}, err
	}
	m.Value, m.DateEvent = value, nullDate(dateEvent)
	return toFact(m), nil
}
