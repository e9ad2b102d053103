package queries_test

import (
	"testing"

	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGetActiveDeliveriesQuery_Valid(t *testing.T) {
	query, err := queries.NewGetActiveDeliveriesQuery(kernel.NewUUID())
	require.NoError(t, err)
	require.NoError(t, query.Validate())
}

func TestNewGetActiveDeliveriesQuery_EmptyDriverID_ReturnsError(t *testing.T) {
	_, err := queries.NewGetActiveDeliveriesQuery(kernel.UUID{})
	require.Error(t, err)
}

func TestGetActiveDeliveriesQuery_NotConstructedViaConstructor(t *testing.T) {
	query := queries.GetActiveDeliveriesQuery{}
	err := query.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, queries.ErrGetActiveDeliveriesQueryIsNotConstructed)
}
