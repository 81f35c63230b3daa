package domain

import (
	"fmt"
	"math"
)

// PriceOption 使用 Garman-Kohlhagen 模型计算外汇期权价格
// 外币利率视为连续股息率。T ≤ 0 或 σ ≤ 0 时返回贴现后的内在价值，Greeks 为 nil。
func PriceOption(m MarketParameters, o OptionSpec) (*PricingResult, error) {
	if o.Type != OptionTypeCall && o.Type != OptionTypePut {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOptionType, o.Type)
	}
	if err := checkFinite(m); err != nil {
		return nil, err
	}
	if math.IsNaN(o.Strike) || math.IsInf(o.Strike, 0) {
		return nil, fmt.Errorf("%w: strike is not finite", ErrInvalidInput)
	}

	if m.TimeToExpiry <= 0 || m.Volatility <= 0 {
		return &PricingResult{Price: discountedIntrinsic(m, o)}, nil
	}

	if m.Spot <= 0 {
		return nil, fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidInput, m.Spot)
	}
	if o.Strike <= 0 {
		return nil, fmt.Errorf("%w: strike must be positive, got %v", ErrInvalidInput, o.Strike)
	}

	S, K, T := m.Spot, o.Strike, m.TimeToExpiry
	rd, rf, sigma := m.DomesticRate, m.ForeignRate, m.Volatility

	sqrtT := math.Sqrt(T)
	volSqrtT := sigma * sqrtT
	d1 := (math.Log(S/K) + (rd-rf+0.5*sigma*sigma)*T) / volSqrtT
	d2 := d1 - volSqrtT

	dfDomestic := math.Exp(-rd * T)
	dfForeign := math.Exp(-rf * T)
	pdf := NormPDF(d1)

	g := &Greeks{
		D1:    d1,
		D2:    d2,
		Gamma: dfForeign * pdf / (S * volSqrtT),
		Vega:  S * dfForeign * pdf * sqrtT / 100,
	}
	decay := -S * dfForeign * pdf * sigma / (2 * sqrtT)

	var price float64
	if o.Type == OptionTypeCall {
		price = S*dfForeign*NormCDF(d1) - K*dfDomestic*NormCDF(d2)
		g.Delta = dfForeign * NormCDF(d1)
		g.Theta = (decay + rf*S*dfForeign*NormCDF(d1) - rd*K*dfDomestic*NormCDF(d2)) / DaysPerYear
		g.RhoDomestic = K * T * dfDomestic * NormCDF(d2) / 100
		g.RhoForeign = -S * T * dfForeign * NormCDF(d1) / 100
	} else {
		price = K*dfDomestic*NormCDF(-d2) - S*dfForeign*NormCDF(-d1)
		g.Delta = -dfForeign * NormCDF(-d1)
		g.Theta = (decay - rf*S*dfForeign*NormCDF(-d1) + rd*K*dfDomestic*NormCDF(-d2)) / DaysPerYear
		g.RhoDomestic = -K * T * dfDomestic * NormCDF(-d2) / 100
		g.RhoForeign = S * T * dfForeign * NormCDF(-d1) / 100
	}

	return &PricingResult{Price: price, Greeks: g}, nil
}

// discountedIntrinsic 退化情形：无时间价值，按两种利率贴现的内在价值
func discountedIntrinsic(m MarketParameters, o OptionSpec) float64 {
	T := math.Max(m.TimeToExpiry, 0)
	spotLeg := m.Spot * math.Exp(-m.ForeignRate*T)
	strikeLeg := o.Strike * math.Exp(-m.DomesticRate*T)
	if o.Type == OptionTypeCall {
		return math.Max(0, spotLeg-strikeLeg)
	}
	return math.Max(0, strikeLeg-spotLeg)
}

// Forward 利率平价远期汇率 F = S·e^((r_d − r_f)·T)
func Forward(m MarketParameters) float64 {
	return m.Spot * math.Exp((m.DomesticRate-m.ForeignRate)*math.Max(m.TimeToExpiry, 0))
}

func checkFinite(m MarketParameters) error {
	fields := [...]struct {
		name string
		v    float64
	}{
		{"spot", m.Spot},
		{"volatility", m.Volatility},
		{"domestic rate", m.DomesticRate},
		{"foreign rate", m.ForeignRate},
		{"time to expiry", m.TimeToExpiry},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidInput, f.name)
		}
	}
	return nil
}
