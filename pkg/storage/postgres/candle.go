package postgres

import (
	"context"
	"time"

	"quantcoord/internal/market"

	"gorm.io/gorm/clause"
)

// InsertCandle writes one finalized candle. A candle already stored under the
// same (symbol, interval, bucket_start) key is left untouched — finalized
// candles are immutable, so re-inserts are silent no-ops.
func (p *Client) InsertCandle(ctx context.Context, record *CandleRecord) error {
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "interval"},
			{Name: "bucket_start"},
		},
		DoNothing: true,
	}).Create(record).Error
}

func (p *Client) GetCandle(ctx context.Context, symbol, interval string, bucketStart time.Time) (*CandleRecord, error) {
	var candle CandleRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND interval = ? AND bucket_start = ?", symbol, interval, bucketStart).
		First(&candle).Error

	if err != nil {
		return nil, err
	}
	return &candle, nil
}

func (p *Client) ListCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]CandleRecord, error) {
	var candles []CandleRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND interval = ? AND bucket_start >= ? AND bucket_start < ?",
			symbol, interval, from, to).
		Order("bucket_start asc").
		Find(&candles).Error

	if err != nil {
		return nil, err
	}
	return candles, nil
}

func (p *Client) DeleteOldCandles(ctx context.Context, before time.Time) error {
	return p.DB.WithContext(ctx).
		Where("bucket_start < ?", before).
		Delete(&CandleRecord{}).Error
}

// ToCandleRecord converts an in-memory candle into a DB record.
func ToCandleRecord(c market.Candle) *CandleRecord {
	return &CandleRecord{
		Symbol:       c.Symbol,
		Interval:     c.Interval,
		BucketStart:  c.BucketStart,
		Open:         c.Open,
		High:         c.High,
		Low:          c.Low,
		Close:        c.Close,
		Volume:       c.Volume,
		TotalVolume:  c.TotalVolume,
		SecurityType: c.SecurityType,
	}
}
