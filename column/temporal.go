package column

import (
	"math"
	"time"
)

// EpochDays counts days since the Unix epoch.
type EpochDays int32

// EpochSeconds counts seconds since the Unix epoch.
type EpochSeconds int64

// EpochMillis counts milliseconds since the Unix epoch.
type EpochMillis int64

// EpochMicros counts microseconds since the Unix epoch.
type EpochMicros int64

// EpochNanos counts nanoseconds since the Unix epoch.
type EpochNanos int64

const (
	day         = 24 * time.Hour
	millisInDay = int64(day / time.Millisecond)

	minDuration = time.Duration(math.MinInt64)
	maxDuration = time.Duration(math.MaxInt64)
)

// MillisSince methods return the milliseconds from u to t, truncated toward zero.
// They never overflow: results are exact up to 2^53 ms and rounded beyond.

func (t EpochDays) MillisSince(u EpochDays) float64 {
	// int32 days times millisInDay always fits an int64.
	return float64((int64(t) - int64(u)) * millisInDay)
}

func (t EpochSeconds) MillisSince(u EpochSeconds) float64 {
	return scaledMillis(int64(t), int64(u), 1000)
}

func (t EpochMillis) MillisSince(u EpochMillis) float64 {
	return scaledMillis(int64(t), int64(u), 1)
}

func (t EpochMicros) MillisSince(u EpochMicros) float64 {
	return truncatedMillis(int64(t), int64(u), 1000)
}

func (t EpochNanos) MillisSince(u EpochNanos) float64 {
	return truncatedMillis(int64(t), int64(u), 1_000_000)
}

// MillisBetween is MillisSince for time.Time, from start to end.
func MillisBetween(start, end time.Time) float64 {
	// Sub saturates when the span doesn't fit a Duration.
	if d := end.Sub(start); d > minDuration && d < maxDuration {
		return float64(d.Milliseconds())
	}
	secs := float64(end.Unix() - start.Unix())
	nanos := float64(end.Nanosecond() - start.Nanosecond())
	return math.Trunc(secs*1000 + nanos/1e6)
}

// sub returns a-b, and false if that overflows.
func sub(a, b int64) (int64, bool) {
	d := a - b
	return d, (a >= 0) == (b >= 0) || (d >= 0) == (a >= 0)
}

// scaledMillis is (a-b) ticks of a unit worth perTick milliseconds.
func scaledMillis(a, b, perTick int64) float64 {
	d, ok := sub(a, b)
	if !ok {
		return (float64(a) - float64(b)) * float64(perTick)
	}
	return float64(d) * float64(perTick)
}

// truncatedMillis is (a-b) ticks of a unit perMilli to the millisecond.
func truncatedMillis(a, b, perMilli int64) float64 {
	d, ok := sub(a, b)
	if !ok {
		return math.Trunc((float64(a) - float64(b)) / float64(perMilli))
	}
	return float64(d / perMilli)
}

func (t EpochDays) Time() time.Time {
	return time.Unix(int64(t)*int64(day/time.Second), 0).UTC()
}

func (t EpochSeconds) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

func (t EpochMillis) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

func (t EpochMicros) Time() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

func (t EpochNanos) Time() time.Time {
	return time.Unix(0, int64(t)).UTC()
}

// DurationMillis is a span of milliseconds.
// It is not a point in time, so it is never a timestamp column.
type DurationMillis int64

// Ticks converts a time to integer ticks of the given timestamp dtype.
// Sub-unit precision is truncated toward zero.
// It returns false for dtypes which are not tick-based timestamps.
func Ticks(t time.Time, unit DType) (int64, bool) {
	switch unit {
	case TimestampDays:
		return t.Unix() / int64(day/time.Second), true
	case TimestampSeconds:
		return t.Unix(), true
	case TimestampMilliseconds:
		return t.UnixMilli(), true
	case TimestampMicroseconds:
		return t.UnixMicro(), true
	case TimestampNanoseconds:
		return t.UnixNano(), true
	}
	return 0, false
}
