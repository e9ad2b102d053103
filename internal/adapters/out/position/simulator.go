// Package position provides a simulated device position source. The
// simulator drifts from a starting point with randomized speed and heading,
// emitting one sample per tick, which is enough to exercise the adaptive
// broadcast bands end to end without real GPS hardware.
package position

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

const (
	defaultTick   = time.Second
	maxSpeedKmh   = 60.0
	speedJitter   = 8.0
	headingJitter = 20.0
	fixAccuracyM  = 5.0

	metersPerDegreeLat = 111320.0
)

// Simulator is an in-process implementation of ports.PositionSource.
type Simulator struct {
	logger *slog.Logger
	tick   time.Duration
	now    func() time.Time

	mu       sync.Mutex
	point    kernel.GeoPoint
	speedKmh float64
	heading  float64
	rng      *rand.Rand
	closed   bool
}

// NewSimulator creates a simulator positioned at the given starting point.
func NewSimulator(start kernel.GeoPoint, logger *slog.Logger) (*Simulator, error) {
	if err := start.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Simulator{
		logger:  logger.With("component", "position_simulator"),
		tick:    defaultTick,
		now:     time.Now,
		point:   start,
		heading: rng.Float64() * 360,
		rng:     rng,
	}, nil
}

// Shutdown stops producing fixes. Subsequent Current calls fail with a
// PositionUnavailableError, mimicking a device losing its GPS fix.
func (s *Simulator) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Current advances the simulation one step and returns the resulting fix.
func (s *Simulator) Current(_ context.Context) (kernel.LocationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kernel.LocationSample{}, errs.NewPositionUnavailableError(nil)
	}

	return s.stepLocked()
}

// Watch emits one simulated sample per tick until ctx is cancelled or the
// simulator is shut down.
func (s *Simulator) Watch(ctx context.Context) (<-chan kernel.LocationSample, <-chan error, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, errs.NewPositionUnavailableError(nil)
	}
	s.mu.Unlock()

	samples := make(chan kernel.LocationSample)
	errc := make(chan error, 1)

	go func() {
		defer close(samples)
		defer close(errc)

		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sample, err := s.Current(ctx)
				if err != nil {
					errc <- err
					return
				}
				select {
				case samples <- sample:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return samples, errc, nil
}

// stepLocked moves the simulated device for one tick. Speed drifts within
// [0..maxSpeedKmh] and heading wanders, so over time the stream crosses
// every broadcast cadence band.
func (s *Simulator) stepLocked() (kernel.LocationSample, error) {
	s.speedKmh += (s.rng.Float64()*2 - 1) * speedJitter
	s.speedKmh = math.Max(0, math.Min(maxSpeedKmh, s.speedKmh))

	s.heading += (s.rng.Float64()*2 - 1) * headingJitter
	s.heading = math.Mod(s.heading+360, 360)

	distanceM := s.speedKmh / 3.6 * s.tick.Seconds()
	headingRad := s.heading * math.Pi / 180

	latDelta := distanceM * math.Cos(headingRad) / metersPerDegreeLat
	lonScale := metersPerDegreeLat * math.Cos(s.point.Latitude()*math.Pi/180)
	lonDelta := 0.0
	if lonScale > 0 {
		lonDelta = distanceM * math.Sin(headingRad) / lonScale
	}

	next, err := kernel.NewGeoPoint(s.point.Latitude()+latDelta, s.point.Longitude()+lonDelta)
	if err != nil {
		// The walk hit a coordinate bound; bounce back instead of failing.
		s.heading = math.Mod(s.heading+180, 360)
		next = s.point
	}
	s.point = next

	sample, err := kernel.NewLocationSample(s.point, s.speedKmh, s.heading, fixAccuracyM, s.now())
	if err != nil {
		return kernel.LocationSample{}, errs.NewPositionUnavailableError(err)
	}

	return sample, nil
}
