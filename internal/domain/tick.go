package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tick represents a single quote observed from the terminal
type Tick struct {
	Ask    decimal.Decimal `json:"ask"`    // Best offer price
	Bid    decimal.Decimal `json:"bid"`    // Best bid price
	Volume uint64          `json:"volume"` // Tick volume as reported
	Time   time.Time       `json:"time"`   // Terminal time of the quote
}

// IsZero reports whether the tick has never been populated
func (t Tick) IsZero() bool {
	return t.Time.IsZero()
}

// Side defines the direction of a position or order intent
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

// String returns the string representation of Side
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Timeframe is a bar duration expressed in minutes
type Timeframe int

const (
	TimeframeM1  Timeframe = 1
	TimeframeM5  Timeframe = 5
	TimeframeM15 Timeframe = 15
	TimeframeM30 Timeframe = 30
	TimeframeH1  Timeframe = 60
	TimeframeH4  Timeframe = 240
	TimeframeD1  Timeframe = 1440
)

// Duration returns the bar length of the timeframe
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf) * time.Minute
}

func (tf Timeframe) String() string {
	switch tf {
	case TimeframeM1:
		return "M1"
	case TimeframeM5:
		return "M5"
	case TimeframeM15:
		return "M15"
	case TimeframeM30:
		return "M30"
	case TimeframeH1:
		return "H1"
	case TimeframeH4:
		return "H4"
	case TimeframeD1:
		return "D1"
	default:
		return fmt.Sprintf("M%d", int(tf))
	}
}

// ParseTimeframe maps config strings like "M5" or "H1" to a Timeframe
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M1":
		return TimeframeM1, nil
	case "M5":
		return TimeframeM5, nil
	case "M15":
		return TimeframeM15, nil
	case "M30":
		return TimeframeM30, nil
	case "H1":
		return TimeframeH1, nil
	case "H4":
		return TimeframeH4, nil
	case "D1":
		return TimeframeD1, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %q", s)
	}
}
