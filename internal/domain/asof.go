package domain

import "sort"

// Interval is the half-open validity range [In, Out). A nil bound is
// unbounded on that side.
type Interval struct {
	In  *Date
	Out *Date
}

// Contains reports whether d falls within the interval.
func (i Interval) Contains(d Date) bool {
	i = i.normalized()
	if i.In != nil && i.In.After(d) {
		return false
	}
	if i.Out != nil && !i.Out.After(d) {
		return false
	}
	return true
}

// Ordered reports whether In <= Out when both bounds are present.
func (i Interval) Ordered() bool {
	i = i.normalized()
	if i.In == nil || i.Out == nil {
		return true
	}
	return !i.In.After(*i.Out)
}

func (i Interval) normalized() Interval {
	return Interval{In: OrNil(i.In), Out: OrNil(i.Out)}
}

func (e Entity) Interval() Interval {
	return Interval{In: e.DateIn, Out: e.DateOut}
}

func (e Entity) ExistsAsOf(d Date) bool {
	return e.Interval().Contains(d)
}

// EffectiveAsOf is the single predicate shared by facts and relation
// instances: an undated event is effective for every date.
func EffectiveAsOf(eventDate *Date, d Date) bool {
	return eventDate == nil || !eventDate.After(d)
}

func (f Fact) EffectiveAsOf(d Date) bool {
	return EffectiveAsOf(f.DateEvent, d)
}

// LatestAsOf selects, among facts effective as of d, the one with the
// largest id. Facts are expected to share one (entity, attribute class)
// identity.
func LatestAsOf(facts []Fact, d Date) (Fact, bool) {
	var (
		best  Fact
		found bool
	)
	for _, f := range facts {
		if !f.EffectiveAsOf(d) {
			continue
		}
		if !found || f.ID > best.ID {
			best = f
			found = true
		}
	}
	return best, found
}

// EntitiesAsOf keeps the entities that exist as of d, in listing order.
func EntitiesAsOf(entities []Entity, d Date) []Entity {
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e.ExistsAsOf(d) {
			out = append(out, e)
		}
	}
	SortEntities(out)
	return out
}

// SortEntities orders by date_in descending. An entity without date_in is
// treated as having existed forever and sorts after every dated entity.
// Ties break on id descending.
func SortEntities(entities []Entity) {
	sort.SliceStable(entities, func(a, b int) bool {
		ea, eb := entities[a], entities[b]
		switch {
		case ea.DateIn == nil && eb.DateIn != nil:
			return false
		case ea.DateIn != nil && eb.DateIn == nil:
			return true
		case ea.DateIn != nil && eb.DateIn != nil && !ea.DateIn.Equal(*eb.DateIn):
			return ea.DateIn.After(*eb.DateIn)
		}
		return ea.ID > eb.ID
	})
}

// SortAttributeValues orders by COALESCE(order_display, attribute class id),
// then attribute class id.
func SortAttributeValues(values []AttributeValue) {
	key := func(v AttributeValue) int {
		if v.OrderDisplay != nil {
			return *v.OrderDisplay
		}
		return int(v.AttributeClassID)
	}
	sort.SliceStable(values, func(a, b int) bool {
		ka, kb := key(values[a]), key(values[b])
		if ka != kb {
			return ka < kb
		}
		return values[a].AttributeClassID < values[b].AttributeClassID
	})
}

type LinkageKind string

const (
	LinkageAttribute LinkageKind = "attribute"
	LinkageRelation  LinkageKind = "relation"
)

// Linkage is a reference from one entity to another, carried either by an
// ENTITY-typed attribute fact or by a relation instance.
type Linkage struct {
	Kind         LinkageKind `json:"kind"`
	ID           uint        `json:"id"`
	ClassID      uint        `json:"class_id"`
	Label        string      `json:"label"`
	FromEntityID uint        `json:"from_entity_id"`
	ToEntityID   uint        `json:"to_entity_id"`
	ToTitle      *string     `json:"to_title"`
	DateEvent    *Date       `json:"date_event"`
}

func (l Linkage) EffectiveAsOf(d Date) bool {
	return EffectiveAsOf(l.DateEvent, d)
}

// LinkFromAttribute builds a linkage from an as-of ENTITY-typed value.
// Values that do not parse as an instance id yield false.
func LinkFromAttribute(entityID uint, v AttributeValue) (Linkage, bool) {
	target, ok := v.ReferenceID()
	if !ok {
		return Linkage{}, false
	}
	return Linkage{
		Kind:         LinkageAttribute,
		ID:           v.FactID,
		ClassID:      v.AttributeClassID,
		Label:        v.AttributeTitle,
		FromEntityID: entityID,
		ToEntityID:   target,
		ToTitle:      v.ReferenceTitle,
		DateEvent:    v.DateEvent,
	}, true
}

func LinkFromRelation(e RelationEdge) Linkage {
	title := e.ToTitle
	return Linkage{
		Kind:         LinkageRelation,
		ID:           e.ID,
		ClassID:      e.RelationClassID,
		Label:        e.RelationTitle,
		FromEntityID: e.FromEntityID,
		ToEntityID:   e.ToEntityID,
		ToTitle:      &title,
		DateEvent:    e.DateEvent,
	}
}

// VisibleLinks keeps the linkages effective as of d.
func VisibleLinks(links []Linkage, d Date) []Linkage {
	out := make([]Linkage, 0, len(links))
	for _, l := range links {
		if l.EffectiveAsOf(d) {
			out = append(out, l)
		}
	}
	return out
}
