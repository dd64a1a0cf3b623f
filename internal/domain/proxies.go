package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Canonical factor names. Industry exposures are keyed by proxy ticker
// instead, since each position can map to a different industry ETF.
const (
	FactorMarket   = "market"
	FactorMomentum = "momentum"
	FactorValue    = "value"
)

// FactorSpec names one systematic factor and its candidate proxy tickers in
// priority order. The first proxy with sufficient history wins.
type FactorSpec struct {
	Name    string   `json:"name"`
	Proxies []string `json:"proxies"`
}

// FactorProxySet maps the risk-model factors to observable proxy series:
// ordered candidates per systematic factor, an industry proxy per ticker,
// and a cash proxy per currency code.
type FactorProxySet struct {
	Factors          []FactorSpec      `json:"factors"`
	IndustryByTicker map[string]string `json:"industry_by_ticker,omitempty"`
	CashProxies      map[string]string `json:"cash_proxies,omitempty"`
}

// DefaultProxySet returns the built-in proxy mapping used when a portfolio
// spec carries no override: broad market, momentum and value ETFs, with
// short-treasury proxies for cash.
func DefaultProxySet() *FactorProxySet {
	return &FactorProxySet{
		Factors: []FactorSpec{
			{Name: FactorMarket, Proxies: []string{"SPY", "VTI"}},
			{Name: FactorMomentum, Proxies: []string{"MTUM", "PDP"}},
			{Name: FactorValue, Proxies: []string{"VTV", "IWD"}},
		},
		CashProxies: map[string]string{
			string(CurrencyUSD): "BIL",
			string(CurrencyEUR): "ERNE",
			string(CurrencyGBP): "ERNS",
			CashTicker:          "BIL",
		},
	}
}

// Validate checks the proxy set is well formed.
func (p *FactorProxySet) Validate() error {
	if len(p.Factors) == 0 {
		return &ConfigurationError{Field: "proxies.factors", Reason: "at least one factor is required"}
	}
	seen := make(map[string]bool, len(p.Factors))
	for _, f := range p.Factors {
		if f.Name == "" {
			return &ConfigurationError{Field: "proxies.factors", Reason: "factor name is required"}
		}
		if seen[f.Name] {
			return &ConfigurationError{Field: "proxies.factors", Reason: "duplicate factor " + f.Name}
		}
		seen[f.Name] = true
		if len(f.Proxies) == 0 {
			return &ConfigurationError{Field: "proxies.factors." + f.Name, Reason: "at least one proxy ticker is required"}
		}
	}
	return nil
}

// FactorNames returns the factor names in declaration order.
func (p *FactorProxySet) FactorNames() []string {
	names := make([]string, len(p.Factors))
	for i, f := range p.Factors {
		names[i] = f.Name
	}
	return names
}

// IndustryProxies returns the distinct industry proxy tickers, sorted.
func (p *FactorProxySet) IndustryProxies() []string {
	set := make(map[string]bool, len(p.IndustryByTicker))
	for _, proxy := range p.IndustryByTicker {
		set[proxy] = true
	}
	proxies := make([]string, 0, len(set))
	for proxy := range set {
		proxies = append(proxies, proxy)
	}
	sort.Strings(proxies)
	return proxies
}

// CashProxy resolves a cash-like ticker to its proxy series, falling back to
// the generic CASH entry.
func (p *FactorProxySet) CashProxy(ticker string) (string, bool) {
	if proxy, ok := p.CashProxies[ticker]; ok {
		return proxy, true
	}
	proxy, ok := p.CashProxies[CashTicker]
	return proxy, ok
}

// Fingerprint returns a stable hash of the proxy mapping, independent of map
// iteration order. Two sets with the same content hash identically.
func (p *FactorProxySet) Fingerprint() string {
	var b strings.Builder
	for _, f := range p.Factors {
		b.WriteString(f.Name)
		b.WriteString("=")
		b.WriteString(strings.Join(f.Proxies, "|"))
		b.WriteString(";")
	}
	b.WriteString("industry:")
	b.WriteString(joinSortedPairs(p.IndustryByTicker))
	b.WriteString(";cash:")
	b.WriteString(joinSortedPairs(p.CashProxies))
	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:16])
}

func joinSortedPairs(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + m[k]
	}
	return strings.Join(pairs, ",")
}
