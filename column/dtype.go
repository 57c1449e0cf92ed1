package column

import (
	"fmt"
	"strings"
)

// DType tags the element representation of a Column.
// The set is closed; consumers switch on it and must reject what they don't handle.
type DType int

const (
	Invalid DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	String

	// Points in time. Tick types count units since the Unix epoch.
	TimestampDays
	TimestampSeconds
	TimestampMilliseconds
	TimestampMicroseconds
	TimestampNanoseconds
	Time // time.Time

	// Durations are NOT points in time.
	DurationMilliseconds
)

var dtypeNames = map[DType]string{
	Invalid:               "invalid",
	Bool:                  "bool",
	Int8:                  "int8",
	Int16:                 "int16",
	Int32:                 "int32",
	Int64:                 "int64",
	Uint8:                 "uint8",
	Uint16:                "uint16",
	Uint32:                "uint32",
	Uint64:                "uint64",
	Float32:               "float32",
	Float64:               "float64",
	String:                "string",
	TimestampDays:         "timestamp[D]",
	TimestampSeconds:      "timestamp[s]",
	TimestampMilliseconds: "timestamp[ms]",
	TimestampMicroseconds: "timestamp[us]",
	TimestampNanoseconds:  "timestamp[ns]",
	Time:                  "time",
	DurationMilliseconds:  "duration[ms]",
}

func (d DType) String() string {
	if s, ok := dtypeNames[d]; ok {
		return s
	}
	return fmt.Sprintf("dtype(%d)", int(d))
}

func (d DType) IsFloating() bool {
	return d == Float32 || d == Float64
}

func (d DType) IsInteger() bool {
	return d >= Int8 && d <= Uint64
}

// IsTimestamp reports whether the dtype is a chronological point in time.
func (d DType) IsTimestamp() bool {
	return d >= TimestampDays && d <= Time
}

// ParseTimestampUnit maps the short unit names used on the command line
// and over the wire (eg. "ms", "ns", "time") to a timestamp dtype.
func ParseTimestampUnit(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "day", "days":
		return TimestampDays, nil
	case "s", "sec", "seconds":
		return TimestampSeconds, nil
	case "ms", "millis", "milliseconds", "":
		return TimestampMilliseconds, nil
	case "us", "micros", "microseconds":
		return TimestampMicroseconds, nil
	case "ns", "nanos", "nanoseconds":
		return TimestampNanoseconds, nil
	case "time", "rfc3339":
		return Time, nil
	}
	return Invalid, fmt.Errorf("unknown timestamp unit %q", s)
}

// ParseDType maps a dtype name (as returned by String) back to its tag.
func ParseDType(s string) (DType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d, name := range dtypeNames {
		if strings.EqualFold(name, s) && d != Invalid {
			return d, nil
		}
	}
	// Accept bare units for timestamps, too.
	if d, err := ParseTimestampUnit(s); err == nil && s != "" {
		return d, nil
	}
	return Invalid, fmt.Errorf("unknown dtype %q", s)
}
