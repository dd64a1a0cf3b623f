package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// RiskLimitsSpec holds the configured risk ceilings. A zero or absent value
// means the corresponding rule is not configured and is skipped entirely by
// the evaluator. Limits are passed explicitly through every call; they are
// never process-wide state.
type RiskLimitsSpec struct {
	Version              string             `json:"version,omitempty"`
	MaxAnnualVolatility  float64            `json:"max_annual_volatility,omitempty"`
	MaxPositionWeight    float64            `json:"max_position_weight,omitempty"`
	MaxFactorVariancePct float64            `json:"max_factor_variance_pct,omitempty"`
	MaxFactorBeta        map[string]float64 `json:"max_factor_beta,omitempty"`
	MaxIndustryBeta      map[string]float64 `json:"max_industry_beta,omitempty"`
}

// Validate rejects negative or non-finite ceilings.
func (l RiskLimitsSpec) Validate() error {
	check := func(field string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("limit must be a non-negative finite number, got %v", v)}
		}
		return nil
	}
	if err := check("limits.max_annual_volatility", l.MaxAnnualVolatility); err != nil {
		return err
	}
	if err := check("limits.max_position_weight", l.MaxPositionWeight); err != nil {
		return err
	}
	if err := check("limits.max_factor_variance_pct", l.MaxFactorVariancePct); err != nil {
		return err
	}
	for name, v := range l.MaxFactorBeta {
		if err := check("limits.max_factor_beta."+name, v); err != nil {
			return err
		}
	}
	for proxy, v := range l.MaxIndustryBeta {
		if err := check("limits.max_industry_beta."+proxy, v); err != nil {
			return err
		}
	}
	return nil
}

// Configured reports whether any rule is active.
func (l RiskLimitsSpec) Configured() bool {
	if l.MaxAnnualVolatility > 0 || l.MaxPositionWeight > 0 || l.MaxFactorVariancePct > 0 {
		return true
	}
	for _, v := range l.MaxFactorBeta {
		if v > 0 {
			return true
		}
	}
	for _, v := range l.MaxIndustryBeta {
		if v > 0 {
			return true
		}
	}
	return false
}

// Fingerprint identifies the limit configuration for cache keys. An explicit
// Version wins; otherwise the values are hashed in a stable order.
func (l RiskLimitsSpec) Fingerprint() string {
	if l.Version != "" {
		return l.Version
	}
	var b strings.Builder
	fmt.Fprintf(&b, "vol=%g;pos=%g;fvar=%g;", l.MaxAnnualVolatility, l.MaxPositionWeight, l.MaxFactorVariancePct)
	b.WriteString("beta:")
	b.WriteString(joinSortedFloatPairs(l.MaxFactorBeta))
	b.WriteString(";industry:")
	b.WriteString(joinSortedFloatPairs(l.MaxIndustryBeta))
	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:16])
}

func joinSortedFloatPairs(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%g", k, m[k])
	}
	return strings.Join(pairs, ",")
}
