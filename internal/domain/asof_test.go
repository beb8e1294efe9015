package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(t *testing.T, raw string) Date {
	t.Helper()
	v, err := ParseDate(raw)
	require.NoError(t, err)
	return v
}

func dp(t *testing.T, raw string) *Date {
	v := d(t, raw)
	return &v
}

func TestLatestAsOfSelectsLatestEffectiveFact(t *testing.T) {
	facts := []Fact{
		{ID: 1, Value: "A", DateEvent: dp(t, "2024-01-01")},
		{ID: 2, Value: "B", DateEvent: dp(t, "2024-06-01")},
	}

	got, ok := LatestAsOf(facts, d(t, "2024-03-01"))
	require.True(t, ok)
	assert.Equal(t, "A", got.Value)

	got, ok = LatestAsOf(facts, d(t, "2024-06-01"))
	require.True(t, ok)
	assert.Equal(t, "B", got.Value)

	_, ok = LatestAsOf(facts, d(t, "2023-01-01"))
	assert.False(t, ok)
}

func TestLatestAsOfBreaksDateTiesByID(t *testing.T) {
	facts := []Fact{
		{ID: 5, Value: "A", DateEvent: dp(t, "2024-01-01")},
		{ID: 9, Value: "B", DateEvent: dp(t, "2024-01-01")},
	}
	got, ok := LatestAsOf(facts, d(t, "2024-01-01"))
	require.True(t, ok)
	assert.Equal(t, "B", got.Value)
}

func TestUndatedFactIsAlwaysEffective(t *testing.T) {
	facts := []Fact{
		{ID: 1, Value: "base"},
		{ID: 2, Value: "later", DateEvent: dp(t, "2024-06-01")},
	}

	got, ok := LatestAsOf(facts, d(t, "1900-01-01"))
	require.True(t, ok)
	assert.Equal(t, "base", got.Value)

	got, ok = LatestAsOf(facts, d(t, "2030-01-01"))
	require.True(t, ok)
	assert.Equal(t, "later", got.Value)
}

func TestUndatedFactInsertedLaterSupersedesDated(t *testing.T) {
	facts := []Fact{
		{ID: 1, Value: "dated", DateEvent: dp(t, "2024-01-01")},
		{ID: 2, Value: "undated"},
	}
	got, ok := LatestAsOf(facts, d(t, "2024-06-01"))
	require.True(t, ok)
	assert.Equal(t, "undated", got.Value)
}

func TestIntervalIsHalfOpen(t *testing.T) {
	e := Entity{DateIn: dp(t, "2024-01-01"), DateOut: dp(t, "2024-12-31")}

	assert.True(t, e.ExistsAsOf(d(t, "2024-06-01")))
	assert.True(t, e.ExistsAsOf(d(t, "2024-01-01")))
	assert.False(t, e.ExistsAsOf(d(t, "2024-12-31")))
	assert.False(t, e.ExistsAsOf(d(t, "2023-12-31")))
}

func TestUnboundedIntervalContainsEveryDate(t *testing.T) {
	e := Entity{}
	for _, raw := range []string{"0001-01-01", "2024-02-29", "9999-12-31"} {
		assert.True(t, e.ExistsAsOf(d(t, raw)), raw)
	}
	onlyOut := Entity{DateOut: dp(t, "2024-01-01")}
	assert.True(t, onlyOut.ExistsAsOf(d(t, "2023-12-31")))
	assert.False(t, onlyOut.ExistsAsOf(d(t, "2024-01-01")))
}

func TestIntervalOrdered(t *testing.T) {
	assert.True(t, Interval{In: dp(t, "2024-01-01"), Out: dp(t, "2024-01-01")}.Ordered())
	assert.True(t, Interval{In: dp(t, "2024-01-01")}.Ordered())
	assert.False(t, Interval{In: dp(t, "2024-02-01"), Out: dp(t, "2024-01-01")}.Ordered())
}

func TestBlankBoundIsUnbounded(t *testing.T) {
	var blank Date
	require.NoError(t, blank.UnmarshalJSON([]byte(`""`)))

	i := Interval{In: dp(t, "2024-01-01"), Out: &blank}
	assert.True(t, i.Ordered())
	assert.True(t, i.Contains(d(t, "2099-12-31")))
	assert.False(t, i.Contains(d(t, "2023-12-31")))

	assert.Nil(t, OrNil(&blank))
	assert.Nil(t, OrNil(nil))
	assert.Equal(t, "2024-01-01", OrNil(dp(t, "2024-01-01")).String())
}

func TestSortEntitiesPutsUndatedLast(t *testing.T) {
	entities := []Entity{
		{ID: 1},
		{ID: 2, DateIn: dp(t, "2023-01-01")},
		{ID: 3, DateIn: dp(t, "2024-01-01")},
		{ID: 4},
		{ID: 5, DateIn: dp(t, "2024-01-01")},
	}
	SortEntities(entities)

	ids := make([]uint, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []uint{5, 3, 2, 4, 1}, ids)
}

func TestEntitiesAsOfFiltersAndSorts(t *testing.T) {
	entities := []Entity{
		{ID: 1, DateIn: dp(t, "2024-01-01"), DateOut: dp(t, "2024-03-01")},
		{ID: 2, DateIn: dp(t, "2024-02-01")},
		{ID: 3},
	}
	got := EntitiesAsOf(entities, d(t, "2024-03-01"))
	require.Len(t, got, 2)
	assert.Equal(t, uint(2), got[0].ID)
	assert.Equal(t, uint(3), got[1].ID)
}

func TestSortAttributeValuesInterleavesExplicitOrder(t *testing.T) {
	two, fifty := 2, 50
	values := []AttributeValue{
		{AttributeClassID: 10},
		{AttributeClassID: 3},
		{AttributeClassID: 7, OrderDisplay: &two},
		{AttributeClassID: 1, OrderDisplay: &fifty},
	}
	SortAttributeValues(values)

	ids := make([]uint, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.AttributeClassID)
	}
	assert.Equal(t, []uint{7, 3, 10, 1}, ids)
}

func TestVisibleLinksSharesFactPredicate(t *testing.T) {
	title := "Bob"
	links := []Linkage{
		LinkFromRelation(RelationEdge{ID: 1, RelationTitle: "manages", ToEntityID: 2, ToTitle: "Bob", DateEvent: dp(t, "2024-05-01")}),
		LinkFromRelation(RelationEdge{ID: 2, RelationTitle: "mentors", ToEntityID: 3, ToTitle: "Carol"}),
	}
	attr, ok := LinkFromAttribute(1, AttributeValue{FactID: 9, AttributeClassID: 4, AttributeTitle: "Manager", DataType: DataTypeEntity, Value: "2", ReferenceTitle: &title, DateEvent: dp(t, "2024-07-01")})
	require.True(t, ok)
	links = append(links, attr)

	visible := VisibleLinks(links, d(t, "2024-06-01"))
	require.Len(t, visible, 2)
	assert.Equal(t, LinkageRelation, visible[0].Kind)
	assert.Equal(t, "mentors", visible[1].Label)

	visible = VisibleLinks(links, d(t, "2024-07-01"))
	require.Len(t, visible, 3)
	assert.Equal(t, LinkageAttribute, visible[2].Kind)
	assert.Equal(t, uint(2), visible[2].ToEntityID)
}

func TestLinkFromAttributeRejectsScalar(t *testing.T) {
	_, ok := LinkFromAttribute(1, AttributeValue{DataType: "TEXT", Value: "2"})
	assert.False(t, ok)
	_, ok = LinkFromAttribute(1, AttributeValue{DataType: DataTypeEntity, Value: "abc"})
	assert.False(t, ok)
}

func TestParseDateOrFallsBack(t *testing.T) {
	today := DateOf(time.Date(2024, 5, 6, 23, 30, 0, 0, time.UTC))
	assert.Equal(t, "2024-05-06", today.String())
	assert.Equal(t, today, ParseDateOr("", today))
	assert.Equal(t, today, ParseDateOr("06/05/2024", today))
	assert.Equal(t, "2023-02-01", ParseDateOr("2023-02-01", today).String())
}
