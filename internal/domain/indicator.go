package domain

import (
	"fmt"
	"math"
)

// EmptyValue is the terminal's placeholder for "no indicator value here"
// (unfilled buffer slots, not enough bars, failed reads). Consumers must
// skip evaluation on it, never treat it as a price.
const EmptyValue = math.MaxFloat64

// IsEmptyValue reports whether v is the empty-value sentinel
func IsEmptyValue(v float64) bool {
	return v == EmptyValue
}

// IndicatorKind identifies an indicator family
type IndicatorKind int

const (
	IndicatorAwesome IndicatorKind = iota + 1
	IndicatorStochastic
)

// String returns the string representation of IndicatorKind
func (k IndicatorKind) String() string {
	switch k {
	case IndicatorAwesome:
		return "awesome"
	case IndicatorStochastic:
		return "stochastic"
	default:
		return "unknown"
	}
}

// IndicatorSpec names one indicator computation. It is comparable so it
// can key handle registries; periods unused by a family stay zero.
type IndicatorSpec struct {
	Kind    IndicatorKind `json:"kind"`
	KPeriod int           `json:"k_period,omitempty"`
	DPeriod int           `json:"d_period,omitempty"`
	Slowing int           `json:"slowing,omitempty"`
}

func (s IndicatorSpec) String() string {
	if s.KPeriod == 0 && s.DPeriod == 0 && s.Slowing == 0 {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%d,%d,%d)", s.Kind, s.KPeriod, s.DPeriod, s.Slowing)
}

// IndicatorHandle references a terminal-side indicator computation in
// the handle-based API generation.
type IndicatorHandle int64

// InvalidHandle is the never-valid handle value
const InvalidHandle IndicatorHandle = -1
