package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aristath/argus/internal/domain"
)

// analysisKey fingerprints everything that determines an analysis: the
// normalized weights, the window, the proxy mapping and the limit table.
// Runs that agree on all four share a cache row and an in-flight call.
func analysisKey(weights domain.Weights, rng domain.DateRange, proxies *domain.FactorProxySet, limits domain.RiskLimitsSpec) string {
	var b strings.Builder
	b.WriteString("rng=")
	b.WriteString(rng.Key())
	b.WriteString(";px=")
	b.WriteString(proxies.Fingerprint())
	b.WriteString(";lim=")
	b.WriteString(limits.Fingerprint())
	b.WriteString(";w=")
	for _, ticker := range weights.Tickers() {
		fmt.Fprintf(&b, "%s=%.12f;", ticker, weights[ticker])
	}
	return "analysis:" + digest(b.String())
}

// modelKey identifies one ticker's factor model under a window and proxy
// mapping. Per-ticker keys let a portfolio edit reuse every unchanged
// position's regression.
func modelKey(ticker string, rng domain.DateRange, proxies *domain.FactorProxySet) string {
	return "factor:" + ticker + ":" + rng.Key() + ":" + proxies.Fingerprint()
}

// covarianceKey identifies the assembled covariance model over a ticker set.
func covarianceKey(tickers []string, rng domain.DateRange, proxies *domain.FactorProxySet) string {
	var b strings.Builder
	b.WriteString("rng=")
	b.WriteString(rng.Key())
	b.WriteString(";px=")
	b.WriteString(proxies.Fingerprint())
	b.WriteString(";t=")
	b.WriteString(strings.Join(tickers, ","))
	return "cov:" + digest(b.String())
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
