package kernel_test

import (
	"testing"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeoPoint(t *testing.T) {
	t.Run("should create point with valid coordinates", func(t *testing.T) {
		point, err := kernel.NewGeoPoint(51.5074, -0.1278)

		require.NoError(t, err)
		require.NoError(t, point.Validate())
		assert.InDelta(t, 51.5074, point.Latitude(), 1e-9)
		assert.InDelta(t, -0.1278, point.Longitude(), 1e-9)
	})

	t.Run("should accept boundary coordinates", func(t *testing.T) {
		corners := [][2]float64{
			{kernel.LatitudeMin, kernel.LongitudeMin},
			{kernel.LatitudeMin, kernel.LongitudeMax},
			{kernel.LatitudeMax, kernel.LongitudeMin},
			{kernel.LatitudeMax, kernel.LongitudeMax},
			{0, 0},
		}

		for _, c := range corners {
			point, err := kernel.NewGeoPoint(c[0], c[1])
			require.NoError(t, err)
			require.NoError(t, point.Validate())
		}
	})

	t.Run("should reject latitude out of range", func(t *testing.T) {
		for _, lat := range []float64{-90.0001, 91, 1000} {
			_, err := kernel.NewGeoPoint(lat, 0)

			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
		}
	})

	t.Run("should reject longitude out of range", func(t *testing.T) {
		for _, lon := range []float64{-180.0001, 181, 1000} {
			_, err := kernel.NewGeoPoint(0, lon)

			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
		}
	})

	t.Run("should join both coordinate errors", func(t *testing.T) {
		_, err := kernel.NewGeoPoint(-91, 181)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "latitude")
		assert.Contains(t, err.Error(), "longitude")
	})
}

func TestGeoPoint_Validate(t *testing.T) {
	t.Run("zero value is invalid", func(t *testing.T) {
		var point kernel.GeoPoint

		err := point.Validate()

		require.Error(t, err)
		assert.Equal(t, kernel.ErrGeoPointIsNotConstructed, err)
	})
}

func TestGeoPoint_IsEqual(t *testing.T) {
	t.Run("equal points", func(t *testing.T) {
		a, _ := kernel.NewGeoPoint(10, 20)
		b, _ := kernel.NewGeoPoint(10, 20)

		assert.True(t, a.IsEqual(b))
	})

	t.Run("different points", func(t *testing.T) {
		a, _ := kernel.NewGeoPoint(10, 20)
		b, _ := kernel.NewGeoPoint(10, 21)

		assert.False(t, a.IsEqual(b))
	})
}

func TestGeoPoint_String(t *testing.T) {
	t.Run("formats with six decimals", func(t *testing.T) {
		point, _ := kernel.NewGeoPoint(51.5074, -0.1278)

		assert.Equal(t, "GeoPoint(51.507400,-0.127800)", point.String())
	})
}
