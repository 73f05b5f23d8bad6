package nano

import "sync"

// DefaultWindow is the Market capacity used when none is given.
const DefaultWindow = 256

// Quote is one price/volume observation.
type Quote struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Market keeps the rolling quote window of one symbol.
type Market struct {
	mu     sync.RWMutex
	symbol string
	window *Array[Quote]
}

// NewMarket builds a Market retaining the last capacity quotes.
func NewMarket(symbol string, capacity int) *Market {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Market{symbol: symbol, window: NewArray[Quote](capacity)}
}

// Symbol identifies the tracked instrument.
func (m *Market) Symbol() string { return m.symbol }

// Update records a quote.
func (m *Market) Update(price, volume float64) error {
	if err := ValidateQuote(price, volume); err != nil {
		return err
	}
	m.mu.Lock()
	m.window.Push(Quote{Price: price, Volume: volume})
	m.mu.Unlock()
	return nil
}

// Latest returns the newest quote, or the zero Quote when nothing was recorded.
func (m *Market) Latest() Quote {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, _ := m.window.Last()
	return q
}

// Len reports how many quotes are retained.
func (m *Market) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.window.Len()
}

// VWAP is Σ(price·volume)/Σ(volume) over the newest window quotes
// (window <= 0 means all retained). Zero total volume yields 0.
func (m *Market) VWAP(window int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var notional, volume float64
	m.window.Tail(window, func(q Quote) {
		notional += q.Price * q.Volume
		volume += q.Volume
	})
	if volume == 0 {
		return 0
	}
	return notional / volume
}
