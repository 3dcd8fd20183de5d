package domain

import "github.com/shopspring/decimal"

// InstrumentSpec holds the full metadata set of a tradable instrument as
// the terminal reports it. Terminal adapters serve field reads out of a
// cached spec; the refresher rebuilds it periodically because brokers
// move spreads and stop levels intraday.
type InstrumentSpec struct {
	Symbol            string          `json:"symbol"`
	Digits            int             `json:"digits"`
	PointSize         decimal.Decimal `json:"point_size"`
	TickSize          decimal.Decimal `json:"tick_size"`
	TickValue         decimal.Decimal `json:"tick_value"`
	TickValueProfit   decimal.Decimal `json:"tick_value_profit"`
	TickValueLoss     decimal.Decimal `json:"tick_value_loss"`
	ContractSize      decimal.Decimal `json:"contract_size"`
	VolumeMin         decimal.Decimal `json:"volume_min"`
	VolumeMax         decimal.Decimal `json:"volume_max"`
	VolumeStep        decimal.Decimal `json:"volume_step"`
	MarginInitial     decimal.Decimal `json:"margin_initial"`
	MarginMaintenance decimal.Decimal `json:"margin_maintenance"`
	SpreadPoints      int64           `json:"spread_points"`
	StopsLevel        int64           `json:"stops_level"`
	FreezeLevel       int64           `json:"freeze_level"`
}

// DoubleField dispatches a floating-point field read against the spec
func (s *InstrumentSpec) DoubleField(f DoubleField) (decimal.Decimal, error) {
	switch f {
	case FieldPointSize:
		return s.PointSize, nil
	case FieldTickSize:
		return s.TickSize, nil
	case FieldTickValue:
		return s.TickValue, nil
	case FieldTickValueProfit:
		return s.TickValueProfit, nil
	case FieldTickValueLoss:
		return s.TickValueLoss, nil
	case FieldContractSize:
		return s.ContractSize, nil
	case FieldVolumeMin:
		return s.VolumeMin, nil
	case FieldVolumeMax:
		return s.VolumeMax, nil
	case FieldVolumeStep:
		return s.VolumeStep, nil
	case FieldMarginInitial:
		return s.MarginInitial, nil
	case FieldMarginMaintenance:
		return s.MarginMaintenance, nil
	default:
		return decimal.Zero, ErrUnknownField
	}
}

// IntegerField dispatches an integer field read against the spec
func (s *InstrumentSpec) IntegerField(f IntegerField) (int64, error) {
	switch f {
	case FieldDigits:
		return int64(s.Digits), nil
	case FieldSpread:
		return s.SpreadPoints, nil
	case FieldStopsLevel:
		return s.StopsLevel, nil
	case FieldFreezeLevel:
		return s.FreezeLevel, nil
	default:
		return 0, ErrUnknownField
	}
}

// Equal reports whether two specs describe the same instrument state.
// Decimal fields compare by value, not representation.
func (s *InstrumentSpec) Equal(o *InstrumentSpec) bool {
	if s.Symbol != o.Symbol || s.Digits != o.Digits ||
		s.SpreadPoints != o.SpreadPoints || s.StopsLevel != o.StopsLevel ||
		s.FreezeLevel != o.FreezeLevel {
		return false
	}
	pairs := [][2]decimal.Decimal{
		{s.PointSize, o.PointSize},
		{s.TickSize, o.TickSize},
		{s.TickValue, o.TickValue},
		{s.TickValueProfit, o.TickValueProfit},
		{s.TickValueLoss, o.TickValueLoss},
		{s.ContractSize, o.ContractSize},
		{s.VolumeMin, o.VolumeMin},
		{s.VolumeMax, o.VolumeMax},
		{s.VolumeStep, o.VolumeStep},
		{s.MarginInitial, o.MarginInitial},
		{s.MarginMaintenance, o.MarginMaintenance},
	}
	for _, p := range pairs {
		if !p[0].Equal(p[1]) {
			return false
		}
	}
	return true
}
