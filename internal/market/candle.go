package market

import "time"

// Candle is one OHLCV bucket for a (symbol, interval, bucket_start) key.
// Volume is the volume traded inside the bucket; TotalVolume is the venue's
// cumulative session volume as of the bucket's last tick.
type Candle struct {
	Symbol       string    `json:"symbol"`
	Interval     string    `json:"interval"`
	BucketStart  time.Time `json:"bucket_start"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       int64     `json:"volume"`
	TotalVolume  int64     `json:"total_volume"`
	SecurityType string    `json:"security_type"`
}
