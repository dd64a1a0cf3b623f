// Package scoring turns a limit check table into a composite 0-100 risk
// health score with per-component breakdown and improvement recommendations.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/argus/internal/domain"
)

// Component names, in canonical reporting order.
const (
	ComponentConcentration = "concentration"
	ComponentFactor        = "factor_exposure"
	ComponentIndustry      = "industry_exposure"
	ComponentVolatility    = "volatility"
)

var componentOrder = []string{
	ComponentConcentration,
	ComponentFactor,
	ComponentIndustry,
	ComponentVolatility,
}

// Defaults: a component keeps a perfect score until its worst check reaches
// 80% of its limit, then loses 2 points per utilization point.
const (
	DefaultSafetyThreshold = 80.0
	DefaultDecaySlope      = 2.0
)

// Config tunes the scorer. Zero values fall back to the defaults; component
// weights default to equal.
type Config struct {
	SafetyThreshold float64
	DecaySlope      float64
	Weights         map[string]float64
}

// Scorer computes risk health scores from limit checks. Scoring is pure and
// deterministic: the same check table always produces the same score.
type Scorer struct {
	threshold float64
	slope     float64
	weights   map[string]float64
	log       zerolog.Logger
}

// NewScorer creates a scorer with the given tuning.
func NewScorer(cfg Config, log zerolog.Logger) *Scorer {
	threshold := cfg.SafetyThreshold
	if threshold <= 0 {
		threshold = DefaultSafetyThreshold
	}
	slope := cfg.DecaySlope
	if slope <= 0 {
		slope = DefaultDecaySlope
	}
	weights := make(map[string]float64, len(componentOrder))
	for _, name := range componentOrder {
		weights[name] = 1.0
	}
	for name, w := range cfg.Weights {
		if w > 0 {
			weights[name] = w
		}
	}
	return &Scorer{
		threshold: threshold,
		slope:     slope,
		weights:   weights,
		log:       log.With().Str("component", "scoring").Logger(),
	}
}

// Score maps the check table to a composite score. Each component's
// utilization is the worst utilization among its checks (zero when nothing
// is configured), its score decays linearly past the safety threshold, and
// the overall score is the weighted mean. Higher utilization never raises a
// score.
func (s *Scorer) Score(checks []domain.LimitCheck) domain.RiskScore {
	utilization := map[string]float64{}
	for _, c := range checks {
		name := componentFor(c.Metric)
		if c.Utilization > utilization[name] {
			utilization[name] = c.Utilization
		}
	}

	components := make([]domain.ScoreComponent, 0, len(componentOrder))
	var weighted, total float64
	for _, name := range componentOrder {
		comp := domain.ScoreComponent{
			Name:        name,
			Utilization: utilization[name],
			Score:       s.componentScore(utilization[name]),
			Weight:      s.weights[name],
		}
		components = append(components, comp)
		weighted += comp.Score * comp.Weight
		total += comp.Weight
	}

	overall := 0.0
	if total > 0 {
		overall = weighted / total
	}

	score := domain.RiskScore{
		Overall:         overall,
		Band:            Band(overall),
		Components:      components,
		Recommendations: recommendations(components),
	}

	s.log.Debug().
		Float64("overall", score.Overall).
		Str("band", score.Band).
		Int("checks", len(checks)).
		Msg("Scored portfolio risk health")

	return score
}

func (s *Scorer) componentScore(utilization float64) float64 {
	if utilization <= s.threshold {
		return 100
	}
	return math.Max(0, 100-s.slope*(utilization-s.threshold))
}

// Band maps a score to its qualitative band.
func Band(score float64) string {
	switch {
	case score >= 90:
		return domain.BandExcellent
	case score >= 75:
		return domain.BandGood
	case score >= 60:
		return domain.BandFair
	default:
		return domain.BandPoor
	}
}

// componentFor buckets a check metric into a score component.
func componentFor(metric string) string {
	switch {
	case metric == "max_position_weight":
		return ComponentConcentration
	case metric == "factor_variance_pct" || strings.HasPrefix(metric, "factor_beta."):
		return ComponentFactor
	case strings.HasPrefix(metric, "industry_beta."):
		return ComponentIndustry
	default:
		return ComponentVolatility
	}
}

var adviceByComponent = map[string]string{
	ComponentConcentration: "Trim the largest positions to reduce single-name concentration",
	ComponentFactor:        "Reduce factor exposure by trimming high-beta holdings",
	ComponentIndustry:      "Spread industry exposure across more sectors",
	ComponentVolatility:    "Shift weight toward lower-volatility or less correlated holdings",
}

// recommendations lists advice for components scoring below the Good band,
// worst first.
func recommendations(components []domain.ScoreComponent) []string {
	flagged := make([]domain.ScoreComponent, 0, len(components))
	for _, comp := range components {
		if comp.Score < 75 {
			flagged = append(flagged, comp)
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].Score < flagged[j].Score
	})

	out := make([]string, 0, len(flagged))
	for _, comp := range flagged {
		out = append(out, adviceByComponent[comp.Name])
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
