package criteria

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

func TestEvaluateUnregisteredType(t *testing.T) {
	reg := NewRegistry()
	def := &models.Achievement{Slug: "mystery", CriteriaType: "seasonal_event"}

	_, err := reg.Evaluate(context.Background(), "seasonal_event", 1, def, Cache{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoHandler))
	assert.Contains(t, err.Error(), "seasonal_event")
}

func TestRegisterOverwrites(t *testing.T) {
	reg := NewRegistry()
	reg.Register("custom", func(context.Context, int64, *models.Achievement, Cache) (Result, error) {
		return Result{Progress: 1}, nil
	})
	reg.Register("custom", func(context.Context, int64, *models.Achievement, Cache) (Result, error) {
		return Result{Progress: 2}, nil
	})

	result, err := reg.Evaluate(context.Background(), "custom", 1, &models.Achievement{}, Cache{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Progress)
}

func TestTypesListsRegistered(t *testing.T) {
	reg := NewRegistry()
	noop := func(context.Context, int64, *models.Achievement, Cache) (Result, error) {
		return Result{}, nil
	}
	reg.Register("b", noop)
	reg.Register("a", noop)

	assert.Equal(t, []string{"a", "b"}, reg.Types())
}
