package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateIsStrict(t *testing.T) {
	_, err := ParseDate("2024-1-5")
	require.Error(t, err)
	_, err = ParseDate("2024-02-30")
	require.Error(t, err)

	got, err := ParseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", got.String())
}

func TestOptionalDate(t *testing.T) {
	got, err := ParseOptionalDate("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseOptionalDate("2024-01-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2024-01-01", got.String())
}

func TestDateJSONRoundTripsThroughFact(t *testing.T) {
	f := Fact{ID: 1, Value: "x", DateEvent: DatePtr(NewDate(2024, time.July, 1))}
	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"date_event":"2024-07-01"`)

	var back Fact
	require.NoError(t, json.Unmarshal(b, &back))
	require.NotNil(t, back.DateEvent)
	assert.True(t, back.DateEvent.Equal(*f.DateEvent))

	require.NoError(t, json.Unmarshal([]byte(`{"date_event":null}`), &back))
	assert.Nil(t, back.DateEvent)
}

func TestDateScan(t *testing.T) {
	var v Date
	require.NoError(t, v.Scan("2024-03-04"))
	assert.Equal(t, "2024-03-04", v.String())

	require.NoError(t, v.Scan([]byte("2024-03-05 00:00:00")))
	assert.Equal(t, "2024-03-05", v.String())

	require.NoError(t, v.Scan(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-06", v.String())

	require.NoError(t, v.Scan(nil))
	assert.True(t, v.IsZero())

	require.Error(t, v.Scan(42))
}

func TestDateValue(t *testing.T) {
	v, err := NewDate(2024, time.January, 2).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", v)

	v, err = Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
