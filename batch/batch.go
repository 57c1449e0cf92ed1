// Package batch groups streamed points by trajectory into the flat
// columns and group table the reducer consumes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/trajd/column"
	"github.com/rotblauer/trajd/geo/trajectory"
	"github.com/rotblauer/trajd/params"
	"github.com/rotblauer/trajd/stream"
	"github.com/rotblauer/trajd/types/trackpoint"
)

var ErrTooManyPoints = errors.New("too many points for int32 offsets")

// Batch is a set of trajectories laid out back to back.
// Trajectory g is IDs[g], with points Groups.Span(g) of X, Y and Time.
type Batch struct {
	IDs    []string
	X, Y   []float64
	Time   []time.Time
	Groups trajectory.Groups
}

func (b *Batch) Len() int {
	return len(b.IDs)
}

func (b *Batch) Points() int {
	return len(b.X)
}

// Columns converts the batch to reducer columns with the given coordinate and timestamp dtypes.
func (b *Batch) Columns(elem, ts column.DType) (x, y, t, length, offset column.Column, err error) {
	if x, err = column.Floats("x", b.X, elem); err != nil {
		return
	}
	if y, err = column.Floats("y", b.Y, elem); err != nil {
		return
	}
	if t, err = column.Timestamps("time", b.Time, ts); err != nil {
		return
	}
	length = column.Must("length", b.Groups.Length)
	offset = column.Must("offset", b.Groups.Offset)
	return
}

// Compute reduces the batch and summarizes the result by trajectory ID.
func (b *Batch) Compute(r *trajectory.Reducer, elem, ts column.DType) (*trajectory.Result, []trajectory.Summary, error) {
	x, y, t, length, offset, err := b.Columns(elem, ts)
	if err != nil {
		return nil, nil, err
	}
	res, err := r.Compute(x, y, t, length, offset)
	if err != nil {
		return nil, nil, err
	}
	return res, res.Summarize(b.IDs, b.Groups), nil
}

// Builder accumulates points into trajectories.
// Trajectories keep the order their IDs were first seen in.
type Builder struct {
	cfg    params.BuilderConfig
	index  map[string]int
	ids    []string
	tracks [][]*trackpoint.TrackPoint
	points int

	dedupe  *lru.Cache
	dropped int
}

func NewBuilder(cfg params.BuilderConfig) *Builder {
	b := &Builder{
		cfg:   cfg,
		index: make(map[string]int),
	}
	if cfg.Dedupe {
		size := cfg.DedupeCacheSize
		if size <= 0 {
			size = params.DefaultBuilderConfig().DedupeCacheSize
		}
		b.dedupe = lru.New(size)
	}
	return b
}

type dedupeKey struct {
	Trajectory string
	X, Y       float64
	Unix       int64
}

// seen returns true if the point is a recent duplicate,
// using a Least Recently Used (LRU) cache of point hashes.
func (b *Builder) seen(tp *trackpoint.TrackPoint) bool {
	hash, err := hashstructure.Hash(dedupeKey{
		Trajectory: tp.Trajectory,
		X:          tp.X,
		Y:          tp.Y,
		Unix:       tp.Time.UnixNano(),
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return false
	}
	key := fmt.Sprintf("%d", hash)
	if _, ok := b.dedupe.Get(key); ok {
		return true
	}
	b.dedupe.Add(key, true)
	return false
}

// Add appends tp to its trajectory.
func (b *Builder) Add(tp *trackpoint.TrackPoint) error {
	if b.dedupe != nil && b.seen(tp) {
		b.dropped++
		return nil
	}
	if b.points == math.MaxInt32 {
		return fmt.Errorf("%w: %d", ErrTooManyPoints, b.points+1)
	}
	g, ok := b.index[tp.Trajectory]
	if !ok {
		g = len(b.ids)
		b.index[tp.Trajectory] = g
		b.ids = append(b.ids, tp.Trajectory)
		b.tracks = append(b.tracks, nil)
	}
	b.tracks[g] = append(b.tracks[g], tp)
	b.points++
	return nil
}

// Dropped is the number of duplicate points skipped.
func (b *Builder) Dropped() int {
	return b.dropped
}

func (b *Builder) Points() int {
	return b.points
}

// Build lays out the points added so far.
func (b *Builder) Build() *Batch {
	out := &Batch{
		IDs:  append([]string(nil), b.ids...),
		X:    make([]float64, 0, b.points),
		Y:    make([]float64, 0, b.points),
		Time: make([]time.Time, 0, b.points),
	}
	lengths := make([]int32, len(b.tracks))
	for g, track := range b.tracks {
		if b.cfg.SortByTime {
			sort.SliceStable(track, func(i, j int) bool {
				return track[i].Time.Before(track[j].Time)
			})
		}
		for _, tp := range track {
			out.X = append(out.X, tp.X)
			out.Y = append(out.Y, tp.Y)
			out.Time = append(out.Time, tp.Time)
		}
		lengths[g] = int32(len(track))
	}
	out.Groups = trajectory.GroupsFromLengths(lengths)
	return out
}

// Valid drops points that have no time or no coordinates.
// The points it passes on have their times in UTC.
func Valid(ctx context.Context, in <-chan *trackpoint.TrackPoint) <-chan *trackpoint.TrackPoint {
	valid := stream.Filter(ctx, func(tp *trackpoint.TrackPoint) bool {
		if tp.IsValid() {
			return true
		}
		if tp != nil {
			slog.Warn("Dropping invalid point", "point", tp.String())
		}
		return false
	}, in)
	return stream.Transform(ctx, inUTC, valid)
}

// inUTC copies points not already in UTC.
func inUTC(tp *trackpoint.TrackPoint) *trackpoint.TrackPoint {
	if tp.Time.Location() == time.UTC {
		return tp
	}
	out := *tp
	out.Time = tp.Time.UTC()
	return &out
}

// Collect builds a batch from every point on in.
// It returns early with the context's error if ctx is done.
func Collect(ctx context.Context, in <-chan *trackpoint.TrackPoint, cfg params.BuilderConfig, meter *stream.Meter) (*Batch, error) {
	b := NewBuilder(cfg)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case tp, ok := <-in:
			if !ok {
				out := b.Build()
				slog.Debug("Collected batch", "trajectories", out.Len(), "points", out.Points(), "dropped", b.Dropped())
				return out, nil
			}
			if meter != nil {
				meter.Mark(tp.Time, 0)
			}
			if err := b.Add(tp); err != nil {
				return nil, err
			}
		}
	}
}
