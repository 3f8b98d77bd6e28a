package market

import (
	"sync"
	"time"
)

// Aggregator folds live ticks into per-(symbol, interval) OHLCV buckets and
// flushes finalized buckets into the candle store.
//
// Each (interval, symbol) series carries its own mutex: ticks for different
// symbols never serialize against each other, while ticks for the same
// symbol remain strictly ordered. The outer map lock is only taken to look
// up or create a series, mirroring the fast-path/slow-path split of a
// per-symbol store.
type Aggregator struct {
	clock     *SessionClock
	intervals []Interval
	store     *CandleStore

	mu     sync.RWMutex
	series map[seriesKey]*series
}

type seriesKey struct {
	interval string
	symbol   string
}

// series is the bucket state machine for one (interval, symbol) pair.
type series struct {
	mu sync.Mutex

	open *Candle // currently open bucket, nil before the first tick

	// cumulative-volume baseline from the previous tick; reset each session
	hasBaseline bool
	prevCumVol  int64
	session     int64 // unix second of the session open the baseline belongs to
}

func NewAggregator(clock *SessionClock, intervals []Interval, store *CandleStore) *Aggregator {
	return &Aggregator{
		clock:     clock,
		intervals: intervals,
		store:     store,
		series:    make(map[seriesKey]*series),
	}
}

// Apply folds one tick into every configured interval.
func (a *Aggregator) Apply(t Tick) {
	for _, iv := range a.intervals {
		a.applyInterval(iv, t)
	}
}

func (a *Aggregator) applyInterval(iv Interval, t Tick) {
	s := a.seriesFor(iv.Name, t.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	bucketStart := a.clock.BucketStart(iv, t.LastTradeTime)

	// Late tick: the bucket it belongs to was already finalized. Deliberate
	// drop, not an error.
	if s.open != nil && bucketStart.Before(s.open.BucketStart) {
		return
	}

	// Bucket volume is the delta of the venue's cumulative session volume,
	// except at the first tick of a session where no baseline exists yet and
	// the reported cumulative volume is taken directly.
	session := a.clock.SessionOpen(t.LastTradeTime).Unix()
	vol := t.VolumeTraded
	if s.hasBaseline && s.session == session {
		vol = t.VolumeTraded - s.prevCumVol
	}
	s.hasBaseline = true
	s.prevCumVol = t.VolumeTraded
	s.session = session

	switch {
	case s.open == nil:
		s.open = newBucket(iv, bucketStart, t, vol)
	case bucketStart.Equal(s.open.BucketStart):
		upsert(s.open, t, vol)
	default:
		// Tick moved the bucket forward: flush the open bucket, then start
		// a fresh one seeded by this tick.
		a.store.Append(*s.open)
		s.open = newBucket(iv, bucketStart, t, vol)
	}
}

func (a *Aggregator) seriesFor(interval, symbol string) *series {
	key := seriesKey{interval: interval, symbol: symbol}

	a.mu.RLock()
	s, ok := a.series[key]
	a.mu.RUnlock()
	if ok {
		return s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok = a.series[key]; !ok {
		s = &series{}
		a.series[key] = s
	}
	return s
}

func newBucket(iv Interval, bucketStart time.Time, t Tick, vol int64) *Candle {
	return &Candle{
		Symbol:       t.Symbol,
		Interval:     iv.Name,
		BucketStart:  bucketStart,
		Open:         t.LastPrice,
		High:         t.LastPrice,
		Low:          t.LastPrice,
		Close:        t.LastPrice,
		Volume:       vol,
		TotalVolume:  t.VolumeTraded,
		SecurityType: t.SecurityType,
	}
}

func upsert(c *Candle, t Tick, vol int64) {
	if t.LastPrice > c.High {
		c.High = t.LastPrice
	}
	if t.LastPrice < c.Low {
		c.Low = t.LastPrice
	}
	c.Close = t.LastPrice
	c.Volume += vol
	c.TotalVolume = t.VolumeTraded
}
