package market

import (
	"fmt"
	"sync"
)

// UnsubscribedIntervalError reports a query for an interval the store was
// never configured to aggregate.
type UnsubscribedIntervalError struct {
	Interval string
}

func (e *UnsubscribedIntervalError) Error() string {
	return fmt.Sprintf("interval not subscribed: %s", e.Interval)
}

// CandleStore holds finalized candles per interval. Reads return defensive
// copies so callers can never mutate live aggregation state.
type CandleStore struct {
	mu         sync.RWMutex
	byInterval map[string][]Candle
	onFinalize func(Candle)
}

// NewCandleStore allocates a store for the configured intervals. onFinalize,
// if non-nil, is invoked once per appended candle after it is stored; it runs
// outside the store lock and must not block.
func NewCandleStore(intervals []Interval, onFinalize func(Candle)) *CandleStore {
	byInterval := make(map[string][]Candle, len(intervals))
	for _, iv := range intervals {
		byInterval[iv.Name] = nil
	}
	return &CandleStore{byInterval: byInterval, onFinalize: onFinalize}
}

// Append stores a finalized candle. Once appended a candle is immutable.
func (s *CandleStore) Append(c Candle) {
	s.mu.Lock()
	s.byInterval[c.Interval] = append(s.byInterval[c.Interval], c)
	s.mu.Unlock()

	if s.onFinalize != nil {
		s.onFinalize(c)
	}
}

// Candles returns a snapshot of all finalized candles for the interval.
func (s *CandleStore) Candles(interval string) ([]Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candles, ok := s.byInterval[interval]
	if !ok {
		return nil, &UnsubscribedIntervalError{Interval: interval}
	}

	cp := make([]Candle, len(candles))
	copy(cp, candles)
	return cp, nil
}
