package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	a, err := Parse(" btc ")
	require.NoError(t, err)
	assert.Equal(t, BTC, a)
	assert.Equal(t, "bitcoin", a.CoinGeckoID())

	_, err = Parse("DOGE")
	assert.Error(t, err)
}

func TestParseList(t *testing.T) {
	assets, err := ParseList([]string{"BTC", "eth", "XRP"})
	require.NoError(t, err)
	assert.Equal(t, []Asset{BTC, ETH, XRP}, assets)

	_, err = ParseList([]string{"BTC", "btc"})
	assert.Error(t, err)
}
