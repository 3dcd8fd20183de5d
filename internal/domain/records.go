package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickRecord archives one observed quote
type TickRecord struct {
	ID     uint            `gorm:"primaryKey" json:"id"`
	Symbol string          `gorm:"index:idx_tick_symbol_time" json:"symbol"`
	Ask    decimal.Decimal `gorm:"type:TEXT" json:"ask"`
	Bid    decimal.Decimal `gorm:"type:TEXT" json:"bid"`
	Volume uint64          `json:"volume"`
	Time   time.Time       `gorm:"index:idx_tick_symbol_time" json:"time"`
}

// Tick converts the record back to a quote
func (r *TickRecord) Tick() Tick {
	return Tick{Ask: r.Ask, Bid: r.Bid, Volume: r.Volume, Time: r.Time}
}

// NewTickRecord builds an archive record from a quote
func NewTickRecord(symbol string, t Tick) *TickRecord {
	return &TickRecord{Symbol: symbol, Ask: t.Ask, Bid: t.Bid, Volume: t.Volume, Time: t.Time}
}

// InstrumentRecord caches instrument metadata between sessions
type InstrumentRecord struct {
	Symbol            string          `gorm:"primaryKey" json:"symbol"`
	Digits            int             `json:"digits"`
	PointSize         decimal.Decimal `gorm:"type:TEXT" json:"point_size"`
	TickSize          decimal.Decimal `gorm:"type:TEXT" json:"tick_size"`
	TickValue         decimal.Decimal `gorm:"type:TEXT" json:"tick_value"`
	TickValueProfit   decimal.Decimal `gorm:"type:TEXT" json:"tick_value_profit"`
	TickValueLoss     decimal.Decimal `gorm:"type:TEXT" json:"tick_value_loss"`
	ContractSize      decimal.Decimal `gorm:"type:TEXT" json:"contract_size"`
	VolumeMin         decimal.Decimal `gorm:"type:TEXT" json:"volume_min"`
	VolumeMax         decimal.Decimal `gorm:"type:TEXT" json:"volume_max"`
	VolumeStep        decimal.Decimal `gorm:"type:TEXT" json:"volume_step"`
	MarginInitial     decimal.Decimal `gorm:"type:TEXT" json:"margin_initial"`
	MarginMaintenance decimal.Decimal `gorm:"type:TEXT" json:"margin_maintenance"`
	SpreadPoints      int64           `json:"spread_points"`
	StopsLevel        int64           `json:"stops_level"`
	FreezeLevel       int64           `json:"freeze_level"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Spec converts the record back to an InstrumentSpec
func (r *InstrumentRecord) Spec() InstrumentSpec {
	return InstrumentSpec{
		Symbol:            r.Symbol,
		Digits:            r.Digits,
		PointSize:         r.PointSize,
		TickSize:          r.TickSize,
		TickValue:         r.TickValue,
		TickValueProfit:   r.TickValueProfit,
		TickValueLoss:     r.TickValueLoss,
		ContractSize:      r.ContractSize,
		VolumeMin:         r.VolumeMin,
		VolumeMax:         r.VolumeMax,
		VolumeStep:        r.VolumeStep,
		MarginInitial:     r.MarginInitial,
		MarginMaintenance: r.MarginMaintenance,
		SpreadPoints:      r.SpreadPoints,
		StopsLevel:        r.StopsLevel,
		FreezeLevel:       r.FreezeLevel,
	}
}

// NewInstrumentRecord builds a cache record from a spec
func NewInstrumentRecord(s InstrumentSpec) *InstrumentRecord {
	return &InstrumentRecord{
		Symbol:            s.Symbol,
		Digits:            s.Digits,
		PointSize:         s.PointSize,
		TickSize:          s.TickSize,
		TickValue:         s.TickValue,
		TickValueProfit:   s.TickValueProfit,
		TickValueLoss:     s.TickValueLoss,
		ContractSize:      s.ContractSize,
		VolumeMin:         s.VolumeMin,
		VolumeMax:         s.VolumeMax,
		VolumeStep:        s.VolumeStep,
		MarginInitial:     s.MarginInitial,
		MarginMaintenance: s.MarginMaintenance,
		SpreadPoints:      s.SpreadPoints,
		StopsLevel:        s.StopsLevel,
		FreezeLevel:       s.FreezeLevel,
		UpdatedAt:         time.Now(),
	}
}
