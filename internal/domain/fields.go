package domain

// DoubleField identifies a floating-point instrument metadata field
type DoubleField int

const (
	FieldPointSize DoubleField = iota + 1
	FieldTickSize
	FieldTickValue
	FieldTickValueProfit
	FieldTickValueLoss
	FieldContractSize
	FieldVolumeMin
	FieldVolumeMax
	FieldVolumeStep
	FieldMarginInitial
	FieldMarginMaintenance
)

// String returns the string representation of DoubleField
func (f DoubleField) String() string {
	switch f {
	case FieldPointSize:
		return "point_size"
	case FieldTickSize:
		return "tick_size"
	case FieldTickValue:
		return "tick_value"
	case FieldTickValueProfit:
		return "tick_value_profit"
	case FieldTickValueLoss:
		return "tick_value_loss"
	case FieldContractSize:
		return "contract_size"
	case FieldVolumeMin:
		return "volume_min"
	case FieldVolumeMax:
		return "volume_max"
	case FieldVolumeStep:
		return "volume_step"
	case FieldMarginInitial:
		return "margin_initial"
	case FieldMarginMaintenance:
		return "margin_maintenance"
	default:
		return "unknown"
	}
}

// IntegerField identifies an integer instrument metadata field
type IntegerField int

const (
	FieldDigits IntegerField = iota + 1
	FieldSpread
	FieldStopsLevel
	FieldFreezeLevel
)

// String returns the string representation of IntegerField
func (f IntegerField) String() string {
	switch f {
	case FieldDigits:
		return "digits"
	case FieldSpread:
		return "spread"
	case FieldStopsLevel:
		return "stops_level"
	case FieldFreezeLevel:
		return "freeze_level"
	default:
		return "unknown"
	}
}
