package application

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fxoption/internal/fxoption/domain"
)

// MarketInput 市场参数输入，未设置的字段继承配置中的默认值
type MarketInput struct {
	Spot         *float64 `json:"spot,omitempty"`
	Volatility   *float64 `json:"volatility,omitempty"`
	DomesticRate *float64 `json:"domestic_rate,omitempty"`
	ForeignRate  *float64 `json:"foreign_rate,omitempty"`
	DaysToExpiry *float64 `json:"days_to_expiry,omitempty"`
	// 直接给出年化期限时优先于 DaysToExpiry
	TimeToExpiry *float64 `json:"time_to_expiry,omitempty"`
}

// GridInput 行权价网格输入，未设置的字段继承默认网格
type GridInput struct {
	LowerOffset *float64 `json:"lower_offset,omitempty"`
	UpperOffset *float64 `json:"upper_offset,omitempty"`
	Step        *float64 `json:"step,omitempty"`
}

// PriceOptionCommand 单个期权定价命令
type PriceOptionCommand struct {
	MarketInput
	Strike     float64 `json:"strike"`
	OptionType string  `json:"option_type"`
}

// GenerateChainCommand 期权链生成命令
type GenerateChainCommand struct {
	MarketInput
	GridInput
}

// CalculateCommand 计算器命令，未给出行权价时使用期权链的平值行权价
type CalculateCommand struct {
	MarketInput
	GridInput
	Strike     *float64 `json:"strike,omitempty"`
	OptionType string   `json:"option_type"`
}

// BatchPriceOptionsCommand 批量定价命令
type BatchPriceOptionsCommand struct {
	BatchID   string               `json:"batch_id,omitempty"`
	Contracts []PriceOptionCommand `json:"contracts"`
}

// GreeksDTO 希腊字母（vega、rho 为每 1%，theta 为每日）
type GreeksDTO struct {
	Delta       decimal.Decimal `json:"delta"`
	Gamma       decimal.Decimal `json:"gamma"`
	Vega        decimal.Decimal `json:"vega"`
	Theta       decimal.Decimal `json:"theta"`
	RhoDomestic decimal.Decimal `json:"rho_domestic"`
	RhoForeign  decimal.Decimal `json:"rho_foreign"`
}

// OptionQuoteDTO 单个期权报价
type OptionQuoteDTO struct {
	OptionType   string           `json:"option_type"`
	Spot         float64          `json:"spot"`
	Strike       decimal.Decimal  `json:"strike"`
	TimeToExpiry float64          `json:"time_to_expiry"`
	Forward      decimal.Decimal  `json:"forward"`
	Price        decimal.Decimal  `json:"price"`
	D1           *decimal.Decimal `json:"d1"`
	D2           *decimal.Decimal `json:"d2"`
	// false 表示退化情形（T ≤ 0 或 σ ≤ 0），此时 D1/D2/Greeks 为空
	GreeksAvailable bool       `json:"greeks_available"`
	Greeks          *GreeksDTO `json:"greeks,omitempty"`
}

// ChainRowDTO 期权链中的一行
type ChainRowDTO struct {
	Strike    decimal.Decimal `json:"strike"`
	Call      decimal.Decimal `json:"call"`
	Put       decimal.Decimal `json:"put"`
	Moneyness string          `json:"moneyness"`
}

// ChainDTO 期权链，Rows 为全部行，ATM/ITM/OTM 为按价值状态的分组
type ChainDTO struct {
	Spot         float64         `json:"spot"`
	Forward      decimal.Decimal `json:"forward"`
	TimeToExpiry float64         `json:"time_to_expiry"`
	ATMStrike    *string         `json:"atm_strike"`
	Rows         []ChainRowDTO   `json:"rows"`
	ATM          []ChainRowDTO   `json:"atm"`
	ITM          []ChainRowDTO   `json:"itm"`
	OTM          []ChainRowDTO   `json:"otm"`
}

// BatchItemDTO 批量定价中单个合约的结果
type BatchItemDTO struct {
	Index int             `json:"index"`
	Quote *OptionQuoteDTO `json:"quote,omitempty"`
	Error string          `json:"error,omitempty"`
}

// BatchPricingResult 批量定价结果
type BatchPricingResult struct {
	BatchID      string         `json:"batch_id"`
	Results      []BatchItemDTO `json:"results"`
	SuccessCount int            `json:"success_count"`
	FailureCount int            `json:"failure_count"`
}

// DefaultsDTO 页面控件默认值
type DefaultsDTO struct {
	Spot         float64 `json:"spot"`
	Future       float64 `json:"future"`
	Volatility   float64 `json:"volatility"`
	DomesticRate float64 `json:"domestic_rate"`
	ForeignRate  float64 `json:"foreign_rate"`
	DaysToExpiry float64 `json:"days_to_expiry"`
	LowerOffset  float64 `json:"lower_offset"`
	UpperOffset  float64 `json:"upper_offset"`
	Step         float64 `json:"step"`
	MaxChainRows int     `json:"max_chain_rows"`
}

// MarketDefaults 默认市场参数
type MarketDefaults struct {
	Spot         float64
	Future       float64
	Volatility   float64
	DomesticRate float64
	ForeignRate  float64
	DaysToExpiry float64
}

// Defaults 服务默认值
type Defaults struct {
	Market       MarketDefaults
	Grid         domain.StrikeGrid
	MaxChainRows int
}

// DefaultDefaults 与配置默认值一致的服务默认值
func DefaultDefaults() Defaults {
	return Defaults{
		Market: MarketDefaults{
			Spot:         83.20,
			Future:       83.50,
			Volatility:   0.08,
			DomesticRate: 0.065,
			ForeignRate:  0.052,
			DaysToExpiry: 30,
		},
		Grid:         domain.DefaultStrikeGrid(),
		MaxChainRows: 2000,
	}
}

func pick(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// resolve 合并输入与默认值，得到领域层的市场参数
func (in MarketInput) resolve(def MarketDefaults) domain.MarketParameters {
	t := domain.YearFraction(pick(in.DaysToExpiry, def.DaysToExpiry))
	if in.TimeToExpiry != nil {
		t = *in.TimeToExpiry
	}
	return domain.MarketParameters{
		Spot:         pick(in.Spot, def.Spot),
		Volatility:   pick(in.Volatility, def.Volatility),
		DomesticRate: pick(in.DomesticRate, def.DomesticRate),
		ForeignRate:  pick(in.ForeignRate, def.ForeignRate),
		TimeToExpiry: t,
	}
}

func (in GridInput) resolve(def domain.StrikeGrid) domain.StrikeGrid {
	return domain.StrikeGrid{
		LowerOffset: pick(in.LowerOffset, def.LowerOffset),
		UpperOffset: pick(in.UpperOffset, def.UpperOffset),
		Step:        pick(in.Step, def.Step),
	}
}

func roundPtr(v float64, ok bool) (*decimal.Decimal, error) {
	if !ok {
		return nil, nil
	}
	d, err := domain.RoundPrice(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func toQuoteDTO(m domain.MarketParameters, o domain.OptionSpec, res *domain.PricingResult) (*OptionQuoteDTO, error) {
	price, err := domain.RoundPrice(res.Price)
	if err != nil {
		return nil, err
	}
	forward, err := domain.RoundPrice(domain.Forward(m))
	if err != nil {
		return nil, err
	}
	strike, err := domain.RoundStrike(o.Strike)
	if err != nil {
		return nil, err
	}

	dto := &OptionQuoteDTO{
		OptionType:      string(o.Type),
		Spot:            m.Spot,
		Strike:          strike,
		TimeToExpiry:    m.TimeToExpiry,
		Forward:         forward,
		Price:           price,
		GreeksAvailable: res.GreeksAvailable(),
	}
	if dto.D1, err = roundPtr(res.D1()); err != nil {
		return nil, err
	}
	if dto.D2, err = roundPtr(res.D2()); err != nil {
		return nil, err
	}
	if g := res.Greeks; g != nil {
		vals := []float64{g.Delta, g.Gamma, g.Vega, g.Theta, g.RhoDomestic, g.RhoForeign}
		rounded := make([]decimal.Decimal, len(vals))
		for i, v := range vals {
			if rounded[i], err = domain.RoundPrice(v); err != nil {
				return nil, fmt.Errorf("greeks: %w", err)
			}
		}
		dto.Greeks = &GreeksDTO{
			Delta:       rounded[0],
			Gamma:       rounded[1],
			Vega:        rounded[2],
			Theta:       rounded[3],
			RhoDomestic: rounded[4],
			RhoForeign:  rounded[5],
		}
	}
	return dto, nil
}

func toChainDTO(c *domain.OptionChain) (*ChainDTO, error) {
	forward, err := domain.RoundPrice(c.Forward)
	if err != nil {
		return nil, err
	}
	dto := &ChainDTO{
		Spot:         c.Spot,
		Forward:      forward,
		TimeToExpiry: c.TimeToExpiry,
		Rows:         make([]ChainRowDTO, 0, len(c.Rows)),
		ATM:          []ChainRowDTO{},
		ITM:          []ChainRowDTO{},
		OTM:          []ChainRowDTO{},
	}
	if len(c.Rows) > 0 {
		s := c.ATMStrike.String()
		dto.ATMStrike = &s
	}
	for _, r := range c.Rows {
		dto.Rows = append(dto.Rows, toChainRowDTO(r))
	}
	for m, dst := range map[domain.Moneyness]*[]ChainRowDTO{
		domain.MoneynessATM: &dto.ATM,
		domain.MoneynessITM: &dto.ITM,
		domain.MoneynessOTM: &dto.OTM,
	} {
		for _, r := range c.Filter(m) {
			*dst = append(*dst, toChainRowDTO(r))
		}
	}
	return dto, nil
}

func toChainRowDTO(r domain.ChainRow) ChainRowDTO {
	return ChainRowDTO{Strike: r.Strike, Call: r.Call, Put: r.Put, Moneyness: string(r.Moneyness)}
}
