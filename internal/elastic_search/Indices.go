package elastic_search

import (
	"fmt"

	"github.com/MintBay/market-engine/internal/config"
)

type Indices string

var (
	MarketActionIndex Indices = "marketaction"
	ListingIndex      Indices = "listing"
	ErrorIndex        Indices = "error"
)

// Prefixes the configured index namespace and returns the full string
func (i *Indices) Get() string {
	return fmt.Sprintf("%s.%s", config.Get().Index, string(*i))
}

func All() []Indices {
	return []Indices{
		MarketActionIndex,
		ListingIndex,
		ErrorIndex,
	}
}
