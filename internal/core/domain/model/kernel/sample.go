package kernel

import (
	"errors"
	"time"

	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

// Bounds for location sample attributes.
const (
	SpeedMinKmh float64 = 0
	SpeedMaxKmh float64 = 300
	HeadingMin  float64 = 0
	HeadingMax  float64 = 360
)

// ErrLocationSampleIsNotConstructed is returned when attempting to use an
// improperly initialized LocationSample.
var ErrLocationSampleIsNotConstructed = errs.NewValueIsRequiredError(
	"location sample must be created via NewLocationSample constructor")

// LocationSample represents a single position reading from the position source:
// where the device was, how fast it was moving and in which direction, how
// accurate the fix is, and when it was taken.
//
// LocationSample is an immutable value object. Samples are ephemeral - they are
// broadcast at an adaptive rate and only persisted at critical delivery events
// (pickup arrival, completion).
type LocationSample struct { //nolint:recvcheck //using for validation
	point      GeoPoint
	speedKmh   float64
	headingDeg float64
	accuracyM  float64
	takenAt    time.Time
	guard      guard.ConstructorGuard
}

// NewLocationSample creates a LocationSample with validated attributes.
// Speed must be within [SpeedMinKmh..SpeedMaxKmh], heading within
// [HeadingMin..HeadingMax], accuracy non-negative and takenAt non-zero.
func NewLocationSample(
	point GeoPoint,
	speedKmh float64,
	headingDeg float64,
	accuracyM float64,
	takenAt time.Time,
) (LocationSample, error) {
	sample := LocationSample{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		sample.setPoint(point),
		sample.setSpeed(speedKmh),
		sample.setHeading(headingDeg),
		sample.setAccuracy(accuracyM),
		sample.setTakenAt(takenAt),
	); err != nil {
		return LocationSample{}, err
	}

	return sample, nil
}

// Validate checks if the LocationSample was properly constructed.
func (s LocationSample) Validate() error {
	return s.guard.Validate(ErrLocationSampleIsNotConstructed)
}

// Point returns the geographic position of the sample.
func (s LocationSample) Point() GeoPoint {
	return s.point
}

// SpeedKmh returns the ground speed in kilometers per hour.
func (s LocationSample) SpeedKmh() float64 {
	return s.speedKmh
}

// HeadingDeg returns the heading in degrees clockwise from north.
func (s LocationSample) HeadingDeg() float64 {
	return s.headingDeg
}

// AccuracyM returns the horizontal accuracy radius in meters.
func (s LocationSample) AccuracyM() float64 {
	return s.accuracyM
}

// TakenAt returns the time the sample was taken.
func (s LocationSample) TakenAt() time.Time {
	return s.takenAt
}

func (s *LocationSample) setPoint(point GeoPoint) error {
	if err := point.Validate(); err != nil {
		return err
	}
	s.point = point
	return nil
}

func (s *LocationSample) setSpeed(speedKmh float64) error {
	if speedKmh < SpeedMinKmh || speedKmh > SpeedMaxKmh {
		return errs.NewValueIsOutOfRangeError("speedKmh", speedKmh, SpeedMinKmh, SpeedMaxKmh)
	}
	s.speedKmh = speedKmh
	return nil
}

func (s *LocationSample) setHeading(headingDeg float64) error {
	if headingDeg < HeadingMin || headingDeg > HeadingMax {
		return errs.NewValueIsOutOfRangeError("headingDeg", headingDeg, HeadingMin, HeadingMax)
	}
	s.headingDeg = headingDeg
	return nil
}

func (s *LocationSample) setAccuracy(accuracyM float64) error {
	if accuracyM < 0 {
		return errs.NewValueIsInvalidError("accuracyM")
	}
	s.accuracyM = accuracyM
	return nil
}

func (s *LocationSample) setTakenAt(takenAt time.Time) error {
	if takenAt.IsZero() {
		return errs.NewValueIsRequiredError("takenAt")
	}
	s.takenAt = takenAt
	return nil
}
