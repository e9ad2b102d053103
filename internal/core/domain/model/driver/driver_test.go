package driver_test

import (
	"testing"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifiedDriver(t *testing.T) *driver.Driver {
	t.Helper()
	d, err := driver.NewDriver(kernel.NewUUID(), "Alice", true)
	require.NoError(t, err)
	return d
}

func testSample(t *testing.T) kernel.LocationSample {
	t.Helper()
	point, err := kernel.NewGeoPoint(51.5, -0.12)
	require.NoError(t, err)
	sample, err := kernel.NewLocationSample(point, 25, 90, 8, time.Now())
	require.NoError(t, err)
	return sample
}

func TestNewDriver(t *testing.T) {
	t.Run("creates offline driver with no position", func(t *testing.T) {
		d := newVerifiedDriver(t)

		require.NoError(t, d.Validate())
		assert.Equal(t, "Alice", d.Name())
		assert.True(t, d.IsVerified())
		assert.False(t, d.IsOnline())
		assert.False(t, d.IsTracking())
		assert.Nil(t, d.LastPosition())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := driver.NewDriver(kernel.NewUUID(), "", true)

		require.Error(t, err)
		assert.ErrorIs(t, err, driver.ErrNameIsRequired)
	})

	t.Run("rejects zero id", func(t *testing.T) {
		_, err := driver.NewDriver(kernel.UUID{}, "Alice", true)
		require.Error(t, err)
	})

	t.Run("zero value fails validation", func(t *testing.T) {
		var d driver.Driver
		assert.Equal(t, driver.ErrDriverIsNotConstructed, d.Validate())
	})
}

func TestDriver_OnlineLifecycle(t *testing.T) {
	t.Run("verified driver goes online and offline", func(t *testing.T) {
		d := newVerifiedDriver(t)

		require.NoError(t, d.GoOnline())
		assert.True(t, d.IsOnline())

		d.GoOffline()
		assert.False(t, d.IsOnline())
		assert.False(t, d.IsTracking())
	})

	t.Run("unverified driver cannot go online", func(t *testing.T) {
		d, err := driver.NewDriver(kernel.NewUUID(), "Bob", false)
		require.NoError(t, err)

		require.ErrorIs(t, d.GoOnline(), driver.ErrDriverIsNotVerified)
		assert.False(t, d.IsOnline())
	})

	t.Run("tracking requires being online", func(t *testing.T) {
		d := newVerifiedDriver(t)

		require.ErrorIs(t, d.StartTracking(), driver.ErrDriverIsOffline)

		require.NoError(t, d.GoOnline())
		require.NoError(t, d.StartTracking())
		assert.True(t, d.IsTracking())

		d.StopTracking()
		assert.False(t, d.IsTracking())
	})

	t.Run("going offline stops tracking", func(t *testing.T) {
		d := newVerifiedDriver(t)
		require.NoError(t, d.GoOnline())
		require.NoError(t, d.StartTracking())

		d.GoOffline()

		assert.False(t, d.IsTracking())
	})
}

func TestDriver_RecordPosition(t *testing.T) {
	t.Run("stores the latest sample", func(t *testing.T) {
		d := newVerifiedDriver(t)
		sample := testSample(t)

		require.NoError(t, d.RecordPosition(sample))

		require.NotNil(t, d.LastPosition())
		assert.True(t, d.LastPosition().Point().IsEqual(sample.Point()))
	})

	t.Run("rejects unconstructed sample", func(t *testing.T) {
		d := newVerifiedDriver(t)

		require.Error(t, d.RecordPosition(kernel.LocationSample{}))
		assert.Nil(t, d.LastPosition())
	})
}

func TestDeriveActivity(t *testing.T) {
	t.Run("delivering wins over everything", func(t *testing.T) {
		d := newVerifiedDriver(t)
		require.NoError(t, d.GoOnline())

		assert.Equal(t, driver.ActivityDelivering, driver.DeriveActivity(d, true))
	})

	t.Run("online and tracking without delivery is available", func(t *testing.T) {
		d := newVerifiedDriver(t)
		require.NoError(t, d.GoOnline())
		require.NoError(t, d.StartTracking())

		assert.Equal(t, driver.ActivityAvailable, driver.DeriveActivity(d, false))
	})

	t.Run("online without tracking is break", func(t *testing.T) {
		d := newVerifiedDriver(t)
		require.NoError(t, d.GoOnline())

		assert.Equal(t, driver.ActivityBreak, driver.DeriveActivity(d, false))
	})
}
