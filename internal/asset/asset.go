package asset

import (
	"fmt"
	"strings"
)

// Asset identifies one of the tracked cryptocurrencies. The set is
// closed: adding a symbol means adding a constant and its CoinGecko id
// here, not registering anything at runtime.
type Asset string

const (
	BTC Asset = "BTC"
	ETH Asset = "ETH"
	XRP Asset = "XRP"
)

// coingeckoIDs maps each asset to the id used by the CoinGecko API.
var coingeckoIDs = map[Asset]string{
	BTC: "bitcoin",
	ETH: "ethereum",
	XRP: "ripple",
}

// All returns the supported assets in stable order.
func All() []Asset {
	return []Asset{BTC, ETH, XRP}
}

// Parse converts a symbol string into an Asset.
func Parse(s string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := coingeckoIDs[a]; !ok {
		return "", fmt.Errorf("unsupported asset %q", s)
	}
	return a, nil
}

// ParseList converts a list of symbols, rejecting duplicates.
func ParseList(symbols []string) ([]Asset, error) {
	seen := make(map[Asset]struct{}, len(symbols))
	assets := make([]Asset, 0, len(symbols))
	for _, s := range symbols {
		a, err := Parse(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[a]; dup {
			return nil, fmt.Errorf("duplicate asset %q", a)
		}
		seen[a] = struct{}{}
		assets = append(assets, a)
	}
	return assets, nil
}

// CoinGeckoID returns the provider-side identifier for the asset.
func (a Asset) CoinGeckoID() string {
	return coingeckoIDs[a]
}

// String implements fmt.Stringer.
func (a Asset) String() string {
	return string(a)
}
