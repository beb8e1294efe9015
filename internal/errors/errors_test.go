package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidCarriesField(t *testing.T) {
	err := Invalid("title", "title is required")

	assert.True(t, Is(err, ErrInvalid))
	assert.False(t, Is(err, ErrConflict))
	assert.Equal(t, "title: title is required", err.Error())

	field, ok := FieldOf(err)
	require.True(t, ok)
	assert.Equal(t, "title", field)
}

func TestDuplicateIsInvalidAndConflict(t *testing.T) {
	err := Wrap(Duplicate("title", "already exists"), "create entity class")

	assert.True(t, IsInvalid(err))
	assert.True(t, Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "already exists")
}

func TestNotFoundSurvivesWrapping(t *testing.T) {
	err := Wrapf(NotFound("entity"), "load entity %d", 7)

	assert.True(t, IsNotFound(err))
	assert.False(t, IsInvalid(err))
	assert.Contains(t, err.Error(), "entity not found")
}

func TestDanglingIsDistinctKind(t *testing.T) {
	err := Dangling("attr_3", "referenced entity 99 does not exist")

	assert.True(t, Is(err, ErrDanglingReference))
	assert.False(t, Is(err, ErrInvalid))
	field, ok := FieldOf(err)
	require.True(t, ok)
	assert.Equal(t, "attr_3", field)
}

func TestFieldOfPlainError(t *testing.T) {
	_, ok := FieldOf(New("boom"))
	assert.False(t, ok)
	assert.False(t, IsNotFound(nil))
}
