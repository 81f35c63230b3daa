// 包 外汇期权定价服务的领域模型
package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput 现价或行权价非正，ln(S/K) 无定义
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidOptionType 未知的期权类型
	ErrInvalidOptionType = errors.New("invalid option type")
)

// DaysPerYear 年化天数约定（固定 365 天）
const DaysPerYear = 365.0

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "CALL" // 看涨期权
	OptionTypePut  OptionType = "PUT"  // 看跌期权
)

// ParseOptionType 解析期权类型，大小写不敏感，支持 call/put/c/p
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C":
		return OptionTypeCall, nil
	case "PUT", "P":
		return OptionTypePut, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOptionType, s)
	}
}

// MarketParameters 市场参数
type MarketParameters struct {
	Spot         float64 // 即期汇率 S
	Volatility   float64 // 波动率 σ (小数形式, 0.08 = 8%)
	DomesticRate float64 // 本币利率 r_d
	ForeignRate  float64 // 外币利率 r_f
	TimeToExpiry float64 // 到期时间 T (年)
}

// OptionSpec 期权要素
type OptionSpec struct {
	Strike float64
	Type   OptionType
}

// Greeks 希腊字母及中间量 d1/d2
// Vega、Rho 以 1 个百分点为单位，Theta 为每自然日
type Greeks struct {
	D1          float64
	D2          float64
	Delta       float64
	Gamma       float64
	Vega        float64
	Theta       float64
	RhoDomestic float64
	RhoForeign  float64
}

// PricingResult 定价结果
// Greeks 为 nil 表示退化情形（T ≤ 0 或 σ ≤ 0），希腊字母不可用
type PricingResult struct {
	Price  float64
	Greeks *Greeks
}

// GreeksAvailable 是否给出了 d1/d2 与希腊字母
func (r *PricingResult) GreeksAvailable() bool {
	return r != nil && r.Greeks != nil
}

func (r *PricingResult) D1() (float64, bool) {
	if !r.GreeksAvailable() {
		return 0, false
	}
	return r.Greeks.D1, true
}

func (r *PricingResult) D2() (float64, bool) {
	if !r.GreeksAvailable() {
		return 0, false
	}
	return r.Greeks.D2, true
}

// YearFraction 天数转换为年，负值按 0 处理
func YearFraction(days float64) float64 {
	if days <= 0 {
		return 0
	}
	return days / DaysPerYear
}
