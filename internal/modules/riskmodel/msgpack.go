package riskmodel

import (
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

// covarianceWire mirrors CovarianceModel for serialization, with the factor
// covariance flattened row-major so the unexported matrix survives the
// calculation cache.
type covarianceWire struct {
	Factors       []string             `msgpack:"factors"`
	Tickers       []string             `msgpack:"tickers"`
	Betas         map[string][]float64 `msgpack:"betas"`
	IdioVar       map[string]float64   `msgpack:"idio_var"`
	IndustryProxy map[string]string    `msgpack:"industry_proxy"`
	IndustryBeta  map[string]float64   `msgpack:"industry_beta"`
	Obs           int                  `msgpack:"obs"`
	Ridge         float64              `msgpack:"ridge"`
	Correlations  []CorrelationPair    `msgpack:"correlations"`
	FactorCov     []float64            `msgpack:"factor_cov"`
}

var (
	_ msgpack.CustomEncoder = (*CovarianceModel)(nil)
	_ msgpack.CustomDecoder = (*CovarianceModel)(nil)
)

// EncodeMsgpack implements msgpack.CustomEncoder.
func (m *CovarianceModel) EncodeMsgpack(enc *msgpack.Encoder) error {
	wire := covarianceWire{
		Factors:       m.Factors,
		Tickers:       m.Tickers,
		Betas:         m.Betas,
		IdioVar:       m.IdioVar,
		IndustryProxy: m.IndustryProxy,
		IndustryBeta:  m.IndustryBeta,
		Obs:           m.Obs,
		Ridge:         m.Ridge,
		Correlations:  m.Correlations,
	}
	if m.factorCov != nil {
		k := m.factorCov.SymmetricDim()
		wire.FactorCov = make([]float64, 0, k*k)
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				wire.FactorCov = append(wire.FactorCov, m.factorCov.At(i, j))
			}
		}
	}
	return enc.Encode(wire)
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (m *CovarianceModel) DecodeMsgpack(dec *msgpack.Decoder) error {
	var wire covarianceWire
	if err := dec.Decode(&wire); err != nil {
		return err
	}

	m.Factors = wire.Factors
	m.Tickers = wire.Tickers
	m.Betas = wire.Betas
	m.IdioVar = wire.IdioVar
	m.IndustryProxy = wire.IndustryProxy
	m.IndustryBeta = wire.IndustryBeta
	m.Obs = wire.Obs
	m.Ridge = wire.Ridge
	m.Correlations = wire.Correlations

	m.factorCov = nil
	if k := len(wire.Factors); k > 0 && len(wire.FactorCov) == k*k {
		m.factorCov = mat.NewSymDense(k, wire.FactorCov)
	}
	return nil
}
