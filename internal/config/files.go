package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/modules/scenario"
)

const dateLayout = "2006-01-02"

// portfolioFile mirrors the YAML document a portfolio spec is loaded from.
type portfolioFile struct {
	Range struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"range"`
	Holdings map[string]struct {
		Shares float64 `yaml:"shares"`
		Amount float64 `yaml:"amount"`
	} `yaml:"holdings"`
	ExpectedReturns map[string]float64 `yaml:"expected_returns"`
}

// LoadPortfolioSpec reads and validates a portfolio document.
//
//	range:
//	  start: 2024-01-02
//	  end: 2024-06-28
//	holdings:
//	  AAPL: {shares: 25}
//	  VWCE: {amount: 12000}
//	  CASH: {shares: 1500}
func LoadPortfolioSpec(path string) (*domain.PortfolioSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading portfolio file: %w", err)
	}

	var file portfolioFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing portfolio file %s: %w", path, err)
	}

	start, err := parseDate("range.start", file.Range.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("range.end", file.Range.End)
	if err != nil {
		return nil, err
	}

	holdings := make(map[string]domain.Holding, len(file.Holdings))
	for ticker, h := range file.Holdings {
		holdings[ticker] = domain.Holding{
			Shares: decimal.NewFromFloat(h.Shares),
			Amount: decimal.NewFromFloat(h.Amount),
		}
	}

	spec := &domain.PortfolioSpec{
		Range:           domain.DateRange{Start: start, End: end},
		Holdings:        holdings,
		ExpectedReturns: file.ExpectedReturns,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// limitsFile mirrors the YAML document a risk limit table is loaded from.
type limitsFile struct {
	Version              string             `yaml:"version"`
	MaxAnnualVolatility  float64            `yaml:"max_annual_volatility"`
	MaxPositionWeight    float64            `yaml:"max_position_weight"`
	MaxFactorVariancePct float64            `yaml:"max_factor_variance_pct"`
	MaxFactorBeta        map[string]float64 `yaml:"max_factor_beta"`
	MaxIndustryBeta      map[string]float64 `yaml:"max_industry_beta"`
}

// LoadRiskLimits reads and validates a limit table. Omitted ceilings stay
// zero, which the evaluator treats as not configured.
func LoadRiskLimits(path string) (domain.RiskLimitsSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RiskLimitsSpec{}, fmt.Errorf("reading limits file: %w", err)
	}

	var file limitsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.RiskLimitsSpec{}, fmt.Errorf("parsing limits file %s: %w", path, err)
	}

	spec := domain.RiskLimitsSpec{
		Version:              file.Version,
		MaxAnnualVolatility:  file.MaxAnnualVolatility,
		MaxPositionWeight:    file.MaxPositionWeight,
		MaxFactorVariancePct: file.MaxFactorVariancePct,
		MaxFactorBeta:        file.MaxFactorBeta,
		MaxIndustryBeta:      file.MaxIndustryBeta,
	}
	if err := spec.Validate(); err != nil {
		return domain.RiskLimitsSpec{}, err
	}
	return spec, nil
}

// proxiesFile mirrors the YAML document a factor proxy mapping is loaded
// from.
type proxiesFile struct {
	Factors []struct {
		Name    string   `yaml:"name"`
		Proxies []string `yaml:"proxies"`
	} `yaml:"factors"`
	IndustryByTicker map[string]string `yaml:"industry_by_ticker"`
	CashProxies      map[string]string `yaml:"cash_proxies"`
}

// LoadProxySet reads and validates a factor proxy mapping.
func LoadProxySet(path string) (*domain.FactorProxySet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading proxies file: %w", err)
	}

	var file proxiesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing proxies file %s: %w", path, err)
	}

	set := &domain.FactorProxySet{
		Factors:          make([]domain.FactorSpec, 0, len(file.Factors)),
		IndustryByTicker: file.IndustryByTicker,
		CashProxies:      file.CashProxies,
	}
	for _, f := range file.Factors {
		set.Factors = append(set.Factors, domain.FactorSpec{Name: f.Name, Proxies: f.Proxies})
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// scenariosFile mirrors the YAML document named what-if deltas are loaded
// from.
type scenariosFile struct {
	Scenarios map[string]map[string]float64 `yaml:"scenarios"`
}

// LoadScenarios reads the named weight deltas available to scenario runs.
//
//	scenarios:
//	  trim-tech:
//	    AAPL: -0.10
//	    CASH: 0.10
func LoadScenarios(path string) (map[string]scenario.Delta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios file: %w", err)
	}

	var file scenariosFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing scenarios file %s: %w", path, err)
	}

	out := make(map[string]scenario.Delta, len(file.Scenarios))
	for name, changes := range file.Scenarios {
		if name == "" {
			return nil, &domain.ConfigurationError{Field: "scenarios", Reason: "scenario names must not be empty"}
		}
		if len(changes) == 0 {
			return nil, &domain.ConfigurationError{Field: "scenarios." + name, Reason: "at least one ticker change is required"}
		}
		for ticker, change := range changes {
			if math.IsNaN(change) || math.IsInf(change, 0) {
				return nil, &domain.ConfigurationError{
					Field:  fmt.Sprintf("scenarios.%s.%s", name, ticker),
					Reason: "changes must be finite",
				}
			}
		}
		out[name] = scenario.Delta(changes)
	}
	return out, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, &domain.ConfigurationError{
			Field:  field,
			Reason: fmt.Sprintf("expected %s, got %q", dateLayout, value),
		}
	}
	return t, nil
}
