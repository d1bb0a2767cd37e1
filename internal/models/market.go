package models

import "fmt"

// Market identifies which exchange universe a symbol belongs to.
type Market string

const (
	MarketUS Market = "US"
	MarketIN Market = "IN"
)

// ParseMarket validates a market string from an API request.
func ParseMarket(s string) (Market, error) {
	switch Market(s) {
	case MarketUS, MarketIN:
		return Market(s), nil
	}
	return "", fmt.Errorf("invalid market %q", s)
}
