package rate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// symbolMap translates bridge currency codes to each upstream's own
// asset identifier.
type symbolMap map[string]string

var coingeckoIDs = symbolMap{
	"XMR": "monero",
	"BTC": "bitcoin",
	"ETH": "ethereum",
	"TON": "the-open-network",
	"SOL": "solana",
	"ARB": "arbitrum",
	"BASE": "base",
}

var coincapIDs = symbolMap{
	"XMR": "monero",
	"BTC": "bitcoin",
	"ETH": "ethereum",
	"TON": "the-open-network",
	"SOL": "solana",
}

var binanceTickers = symbolMap{
	"XMR": "XMRUSDT",
	"BTC": "BTCUSDT",
	"ETH": "ETHUSDT",
	"SOL": "SOLUSDT",
}

// CoinGeckoSource queries the CoinGecko-shaped simple-price endpoint.
type CoinGeckoSource struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewCoinGeckoSource(client *http.Client, baseURL, apiKey string) *CoinGeckoSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &CoinGeckoSource{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (s *CoinGeckoSource) Name() string { return "coingecko" }

func (s *CoinGeckoSource) FetchUSDPrice(ctx context.Context, currency string) (float64, error) {
	id, ok := coingeckoIDs[strings.ToUpper(currency)]
	if !ok {
		return 0, fmt.Errorf("coingecko: unsupported currency %s", currency)
	}
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", s.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if s.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coingecko: status %d", resp.StatusCode)
	}

	var body map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	entry, ok := body[id]
	if !ok || entry.USD == 0 {
		return 0, fmt.Errorf("coingecko: no price for %s", currency)
	}
	return entry.USD, nil
}

// BinanceSource queries the Binance-shaped ticker/price endpoint.
type BinanceSource struct {
	client  *http.Client
	baseURL string
}

func NewBinanceSource(client *http.Client, baseURL string) *BinanceSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &BinanceSource{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) FetchUSDPrice(ctx context.Context, currency string) (float64, error) {
	symbol, ok := binanceTickers[strings.ToUpper(currency)]
	if !ok {
		return 0, fmt.Errorf("binance: unsupported currency %s", currency)
	}
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("binance: status %d", resp.StatusCode)
	}

	var body struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	var price float64
	if _, err := fmt.Sscanf(body.Price, "%f", &price); err != nil {
		return 0, fmt.Errorf("binance: bad price %q", body.Price)
	}
	return price, nil
}

// CoinCapSource queries the CoinCap-shaped assets endpoint, used as the
// final fallback in the source chain.
type CoinCapSource struct {
	client  *http.Client
	baseURL string
}

func NewCoinCapSource(client *http.Client, baseURL string) *CoinCapSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &CoinCapSource{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *CoinCapSource) Name() string { return "coincap" }

func (s *CoinCapSource) FetchUSDPrice(ctx context.Context, currency string) (float64, error) {
	id, ok := coincapIDs[strings.ToUpper(currency)]
	if !ok {
		return 0, fmt.Errorf("coincap: unsupported currency %s", currency)
	}
	url := fmt.Sprintf("%s/v2/assets/%s", s.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coincap: status %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			PriceUsd string `json:"priceUsd"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	var price float64
	if _, err := fmt.Sscanf(body.Data.PriceUsd, "%f", &price); err != nil {
		return 0, fmt.Errorf("coincap: bad price %q", body.Data.PriceUsd)
	}
	return price, nil
}

var _ Source = (*CoinGeckoSource)(nil)
var _ Source = (*BinanceSource)(nil)
var _ Source = (*CoinCapSource)(nil)
