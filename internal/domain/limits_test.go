package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskLimitsSpec_Validate(t *testing.T) {
	valid := RiskLimitsSpec{
		MaxAnnualVolatility: 0.20,
		MaxPositionWeight:   0.25,
		MaxFactorBeta:       map[string]float64{FactorMarket: 1.2},
	}
	assert.NoError(t, valid.Validate())

	assert.Error(t, RiskLimitsSpec{MaxAnnualVolatility: -0.1}.Validate())
	assert.Error(t, RiskLimitsSpec{MaxPositionWeight: math.NaN()}.Validate())
	assert.Error(t, RiskLimitsSpec{MaxFactorBeta: map[string]float64{FactorMarket: math.Inf(1)}}.Validate())
}

func TestRiskLimitsSpec_Configured(t *testing.T) {
	assert.False(t, RiskLimitsSpec{}.Configured())
	assert.False(t, RiskLimitsSpec{Version: "v3"}.Configured())
	assert.True(t, RiskLimitsSpec{MaxAnnualVolatility: 0.2}.Configured())
	assert.True(t, RiskLimitsSpec{MaxIndustryBeta: map[string]float64{"XLK": 0.5}}.Configured())
}

func TestRiskLimitsSpec_Fingerprint(t *testing.T) {
	// Explicit version wins over hashing.
	assert.Equal(t, "v7", RiskLimitsSpec{Version: "v7", MaxAnnualVolatility: 0.2}.Fingerprint())

	a := RiskLimitsSpec{MaxAnnualVolatility: 0.2, MaxFactorBeta: map[string]float64{"market": 1.2, "value": 0.8}}
	b := RiskLimitsSpec{MaxAnnualVolatility: 0.2, MaxFactorBeta: map[string]float64{"value": 0.8, "market": 1.2}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := RiskLimitsSpec{MaxAnnualVolatility: 0.25, MaxFactorBeta: map[string]float64{"market": 1.2, "value": 0.8}}
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
