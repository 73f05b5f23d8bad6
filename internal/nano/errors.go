package nano

import "fmt"

// IndexError reports an out-of-range Array access.
type IndexError struct {
	Index  int
	Length int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("nano: index %d out of range [0,%d)", e.Index, e.Length)
}

// InvalidQuoteError rejects a non-positive price or negative volume.
type InvalidQuoteError struct {
	Price  float64
	Volume float64
}

func (e *InvalidQuoteError) Error() string {
	if !(e.Price > 0) {
		return fmt.Sprintf("nano: invalid quote price %v (must be > 0)", e.Price)
	}
	return fmt.Sprintf("nano: invalid quote volume %v (must be >= 0)", e.Volume)
}

// InvalidOddsError rejects decimal odds that are not above 1.0.
type InvalidOddsError struct {
	MarketID string
	Side     string
	Odds     float64
}

func (e *InvalidOddsError) Error() string {
	return fmt.Sprintf("nano: market %q %s odds %v must be > 1.0", e.MarketID, e.Side, e.Odds)
}

// ValidateQuote checks the price/volume domain shared by every tracker.
func ValidateQuote(price, volume float64) error {
	if !(price > 0) || !(volume >= 0) {
		return &InvalidQuoteError{Price: price, Volume: volume}
	}
	return nil
}

// ValidateOdds checks both legs of a two-way market.
func ValidateOdds(marketID string, homeOdds, awayOdds float64) error {
	if !(homeOdds > 1.0) {
		return &InvalidOddsError{MarketID: marketID, Side: "home", Odds: homeOdds}
	}
	if !(awayOdds > 1.0) {
		return &InvalidOddsError{MarketID: marketID, Side: "away", Odds: awayOdds}
	}
	return nil
}
