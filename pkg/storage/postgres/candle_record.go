package postgres

import "time"

// CandleRecord is a finalized OHLCV bucket persisted to the database.
type CandleRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index: one row per (symbol, interval, bucket_start)
	Symbol      string    `gorm:"type:text;not null;index:idx_candle_symbol;index:idx_symbol_interval_start,unique"`
	Interval    string    `gorm:"type:varchar(10);not null;index:idx_symbol_interval_start,unique"`
	BucketStart time.Time `gorm:"not null;index:idx_symbol_interval_start,unique"`

	Open  float64 `gorm:"type:numeric;not null"`
	High  float64 `gorm:"type:numeric;not null"`
	Low   float64 `gorm:"type:numeric;not null"`
	Close float64 `gorm:"type:numeric;not null"`

	Volume      int64 `gorm:"not null"`
	TotalVolume int64 `gorm:"not null"`

	SecurityType string `gorm:"type:varchar(10)"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (CandleRecord) TableName() string {
	return "candle_record"
}
