package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/simtools/internal/geo"
	"github.com/OCAP2/simtools/internal/util"
	"github.com/OCAP2/simtools/pkg/core"
)

// Summary describes a loaded trace
type Summary struct {
	Frames    int        `json:"frames"`
	MinTime   int64      `json:"min_time"`
	MaxTime   int64      `json:"max_time"`
	Agents    int        `json:"agents"`
	Positions int        `json:"positions"`
	Extent    geo.Bounds `json:"extent"`
}

// Store indexes a trace by timestamp. It is safe for concurrent use; a load
// either replaces the whole index or leaves the previous one in place.
type Store struct {
	mu      sync.RWMutex
	frames  map[int64][]core.PositionRecord
	times   []int64
	summary Summary
	view    *FrameView

	logger  *slog.Logger
	metrics storeMetrics
}

// NewStore creates an empty store. A nil logger uses slog.Default().
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:  logger,
		metrics: newStoreMetrics(),
	}
}

type index struct {
	frames  map[int64][]core.PositionRecord
	times   []int64
	summary Summary
}

func build(r io.Reader) (*index, error) {
	dec := NewDecoder(r)
	frames := make(map[int64][]core.PositionRecord)

	for {
		f, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		// later lines replace earlier ones for the same timestamp
		frames[f.TimeSec] = f.Positions
	}

	if len(frames) == 0 {
		return nil, ErrEmpty
	}

	times := make([]int64, 0, len(frames))
	agents := make(map[string]struct{})
	var points []core.LatLon
	positions := 0
	for t, recs := range frames {
		times = append(times, t)
		positions += len(recs)
		for _, p := range recs {
			agents[p.AgentID] = struct{}{}
			points = append(points, core.LatLon{Lat: p.LatDeg, Lon: p.LonDeg})
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	extent, _ := geo.BoundsOf(points)
	return &index{
		frames: frames,
		times:  times,
		summary: Summary{
			Frames:    len(times),
			MinTime:   times[0],
			MaxTime:   times[len(times)-1],
			Agents:    len(agents),
			Positions: positions,
			Extent:    extent,
		},
	}, nil
}

// Load reads an NDJSON trace and replaces the current index on success.
func (s *Store) Load(r io.Reader) (Summary, error) {
	start := time.Now()
	ctx := context.Background()

	idx, err := build(r)
	s.metrics.loadDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.loadFailures.Add(ctx, 1)
		s.logger.Warn("Trace load rejected", "error", err)
		return Summary{}, err
	}

	s.mu.Lock()
	s.frames = idx.frames
	s.times = idx.times
	s.summary = idx.summary
	s.view = nil
	s.mu.Unlock()

	s.metrics.framesLoaded.Add(ctx, int64(idx.summary.Frames))
	s.logger.Info("Trace loaded",
		"frames", idx.summary.Frames,
		"agents", idx.summary.Agents,
		"minTime", idx.summary.MinTime,
		"maxTime", idx.summary.MaxTime,
		"duration", time.Since(start))
	return idx.summary, nil
}

// LoadFile loads a trace from disk. Gzip-compressed files are detected by
// their magic bytes.
func (s *Store) LoadFile(path string) (Summary, error) {
	r, err := util.OpenFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open trace: %w", err)
	}
	defer r.Close()

	return s.Load(r)
}

// PositionsAt returns a copy of the records stored for exactly timeSec, or nil.
func (s *Store) PositionsAt(timeSec int64) []core.PositionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.frames[timeSec])
}

// Times returns the sorted timestamps of the loaded trace
func (s *Store) Times() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, len(s.times))
	copy(out, s.times)
	return out
}

// Loaded reports whether a trace has been loaded
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames != nil
}

// Summary returns the summary of the loaded trace
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Next returns the smallest stored timestamp strictly greater than t.
func (s *Store) Next(t int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.times), func(i int) bool { return s.times[i] > t })
	if i == len(s.times) {
		return 0, false
	}
	return s.times[i], true
}

// Prev returns the largest stored timestamp strictly less than t.
func (s *Store) Prev(t int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.times), func(i int) bool { return s.times[i] >= t })
	if i == 0 {
		return 0, false
	}
	return s.times[i-1], true
}

// View returns the grouped view of the frame at t. Only the most recent view
// is kept.
func (s *Store) View(t int64) *FrameView {
	s.mu.RLock()
	if v := s.view; v != nil && v.time == t {
		s.mu.RUnlock()
		return v
	}
	recs := s.frames[t]
	s.mu.RUnlock()

	v := newFrameView(t, recs)

	s.mu.Lock()
	// only memoise if the index was not swapped underneath us
	if sameSlice(s.frames[t], recs) {
		s.view = v
	}
	s.mu.Unlock()
	return v
}

func sameSlice(a, b []core.PositionRecord) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
