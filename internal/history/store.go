package history

import (
	"sync/atomic"

	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/model"
)

// DefaultCapacity keeps one minute of points at a 1s interval.
const DefaultCapacity = 60

// Store holds one ring per metric plus the latest published Snapshot.
// The sampler is the only writer.
type Store struct {
	capacity int
	rings    map[model.Metric]*Ring[model.Point]
	latest   atomic.Pointer[model.Snapshot]
}

func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	rings := make(map[model.Metric]*Ring[model.Point], len(model.Metrics))
	for _, m := range model.Metrics {
		rings[m] = NewRing[model.Point](capacity)
	}
	return &Store{capacity: capacity, rings: rings}
}

func (s *Store) Capacity() int { return s.capacity }

// Push appends p to the metric's series. Timestamps must strictly increase.
func (s *Store) Push(m model.Metric, p model.Point) error {
	errFactory := errors.New()

	r, ok := s.rings[m]
	if !ok {
		return errFactory.WithData(errors.ErrInvalidArgument, m)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastLocked(); ok && !p.Timestamp.After(last.Timestamp) {
		return errFactory.WithData(errors.ErrInvalidArgument, struct {
			Metric model.Metric
			Last   string
			Got    string
		}{
			Metric: m,
			Last:   last.Timestamp.String(),
			Got:    p.Timestamp.String(),
		})
	}
	r.pushLocked(p)
	return nil
}

// Read returns a copy of the metric's series, oldest first.
func (s *Store) Read(m model.Metric) ([]model.Point, error) {
	r, ok := s.rings[m]
	if !ok {
		return nil, errors.New().WithData(errors.ErrInvalidArgument, m)
	}
	return r.Snapshot(), nil
}

// Last returns the newest point of a metric.
func (s *Store) Last(m model.Metric) (model.Point, bool) {
	r, ok := s.rings[m]
	if !ok {
		return model.Point{}, false
	}
	return r.Last()
}

// Record pushes every available metric of snap and publishes it as latest.
func (s *Store) Record(snap model.Snapshot) error {
	var firstErr error
	values := snap.MetricValues()
	for _, m := range model.Metrics {
		v, ok := values[m]
		if !ok {
			continue
		}
		if err := s.Push(m, model.Point{Timestamp: snap.Timestamp, Value: v}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.SetLatest(snap)
	return firstErr
}

func (s *Store) SetLatest(snap model.Snapshot) {
	s.latest.Store(&snap)
}

// Latest returns the most recent Snapshot, false before the first tick.
func (s *Store) Latest() (model.Snapshot, bool) {
	p := s.latest.Load()
	if p == nil {
		return model.Snapshot{}, false
	}
	return *p, true
}
