package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	StrikePrecision int32 = 4 // 行权价保留小数位
	PricePrecision  int32 = 6 // 展示价格保留小数位
)

// ATMTolerance 平值判定容差。行权价已四舍五入到 4 位小数，不同行权价之间至少相差 1e-4。
var ATMTolerance = decimal.New(1, -6)

// strikeTick 行权价最小间隔
var strikeTick = decimal.New(1, -StrikePrecision)

// Moneyness 价值状态（以看涨期权视角）
type Moneyness string

const (
	MoneynessATM Moneyness = "ATM" // 平值
	MoneynessITM Moneyness = "ITM" // 实值
	MoneynessOTM Moneyness = "OTM" // 虚值
)

// StrikeGrid 行权价网格：[spot - LowerOffset, spot + UpperOffset]，闭区间，步长 Step
type StrikeGrid struct {
	LowerOffset float64
	UpperOffset float64
	Step        float64
}

// DefaultStrikeGrid 默认网格：现价下方 2.0，上方 3.0，步长 0.25
func DefaultStrikeGrid() StrikeGrid {
	return StrikeGrid{LowerOffset: 2.0, UpperOffset: 3.0, Step: 0.25}
}

func (g StrikeGrid) bounds(spot float64) (lower, upper, step decimal.Decimal, ok bool) {
	for _, v := range []float64{spot, g.LowerOffset, g.UpperOffset, g.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return lower, upper, step, false
		}
	}
	if g.Step <= 0 {
		return lower, upper, step, false
	}
	s := decimal.NewFromFloat(spot)
	lower = s.Sub(decimal.NewFromFloat(g.LowerOffset))
	upper = s.Add(decimal.NewFromFloat(g.UpperOffset))
	if upper.LessThanOrEqual(lower) {
		return lower, upper, step, false
	}
	return lower, upper, decimal.NewFromFloat(g.Step), true
}

// gridLayout 四舍五入去重后的网格形状
type gridLayout struct {
	lower decimal.Decimal
	step  decimal.Decimal
	// 步长小于 strikeTick 时相邻点舍入后相差 0 或 1 个 tick，
	// 去重后恰好是 first 起每个 tick 一个点
	dense bool
	first decimal.Decimal
	count decimal.Decimal
}

func (g StrikeGrid) layout(spot float64) (gridLayout, bool) {
	lower, upper, step, ok := g.bounds(spot)
	if !ok {
		return gridLayout{}, false
	}
	q := upper.Sub(lower).Div(step).Floor()
	l := gridLayout{lower: lower, step: step, dense: step.LessThan(strikeTick)}
	if !l.dense {
		// 步长不小于 tick 时舍入后严格递增，不会产生重复
		l.count = q.Add(decimal.NewFromInt(1))
		return l, true
	}
	l.first = lower.Round(StrikePrecision)
	last := lower.Add(step.Mul(q)).Round(StrikePrecision)
	l.count = last.Sub(l.first).Div(strikeTick).Add(decimal.NewFromInt(1))
	return l, true
}

func (l gridLayout) at(i int) decimal.Decimal {
	n := decimal.NewFromInt(int64(i))
	if l.dense {
		return l.first.Add(strikeTick.Mul(n))
	}
	return l.lower.Add(l.step.Mul(n)).Round(StrikePrecision)
}

// Len 去重后的网格点数（含两端），区间为空或倒置时为 0。
// 点数超出 int 范围时返回 math.MaxInt，此时 Strikes 返回 nil。
func (g StrikeGrid) Len(spot float64) int {
	l, ok := g.layout(spot)
	if !ok {
		return 0
	}
	if l.count.GreaterThanOrEqual(decimal.NewFromInt(math.MaxInt)) {
		return math.MaxInt
	}
	return int(l.count.IntPart())
}

// Strikes 生成严格升序的行权价序列
// 采用十进制运算并四舍五入到 StrikePrecision 位，避免浮点漂移；舍入后重复的行权价只保留一个。
func (g StrikeGrid) Strikes(spot float64) []decimal.Decimal {
	n := g.Len(spot)
	if n == 0 || n == math.MaxInt {
		return nil
	}
	l, _ := g.layout(spot)

	strikes := make([]decimal.Decimal, n)
	for i := range strikes {
		strikes[i] = l.at(i)
	}
	return strikes
}

// ATMStrike 距现价最近的行权价，距离相同时取升序中的第一个
func ATMStrike(strikes []decimal.Decimal, spot decimal.Decimal) (decimal.Decimal, bool) {
	if len(strikes) == 0 {
		return decimal.Zero, false
	}
	best := strikes[0]
	bestDist := best.Sub(spot).Abs()
	for _, k := range strikes[1:] {
		if d := k.Sub(spot).Abs(); d.LessThan(bestDist) {
			best, bestDist = k, d
		}
	}
	return best, true
}

// GridATMStrike 网格在给定现价下的平值行权价，网格为空时 ok 为 false
func GridATMStrike(spot float64, grid StrikeGrid) (decimal.Decimal, bool) {
	strikes := grid.Strikes(spot)
	if len(strikes) == 0 {
		return decimal.Zero, false
	}
	return ATMStrike(strikes, decimal.NewFromFloat(spot))
}

// Classify 判定价值状态
func Classify(strike, atm, spot decimal.Decimal) Moneyness {
	switch {
	case strike.Sub(atm).Abs().LessThanOrEqual(ATMTolerance):
		return MoneynessATM
	case strike.LessThan(spot):
		return MoneynessITM
	default:
		return MoneynessOTM
	}
}

// ChainRow 期权链中的一行
type ChainRow struct {
	Strike    decimal.Decimal
	Call      decimal.Decimal
	Put       decimal.Decimal
	Moneyness Moneyness
}

// OptionChain 期权链，行按行权价升序排列
type OptionChain struct {
	Spot         float64
	Forward      float64
	TimeToExpiry float64
	ATMStrike    decimal.Decimal
	Rows         []ChainRow
}

// Filter 按价值状态筛选
func (c *OptionChain) Filter(m Moneyness) []ChainRow {
	rows := make([]ChainRow, 0)
	for _, r := range c.Rows {
		if r.Moneyness == m {
			rows = append(rows, r)
		}
	}
	return rows
}

// Count 统计某一价值状态的行数
func (c *OptionChain) Count(m Moneyness) int {
	n := 0
	for _, r := range c.Rows {
		if r.Moneyness == m {
			n++
		}
	}
	return n
}

// GenerateChain 生成期权链：对每个行权价分别计算看涨、看跌价格并分类
// 定价错误原样返回，不返回部分结果。
func GenerateChain(m MarketParameters, grid StrikeGrid) (*OptionChain, error) {
	if err := checkFinite(m); err != nil {
		return nil, err
	}

	if grid.Len(m.Spot) == math.MaxInt {
		return nil, fmt.Errorf("%w: strike grid too large", ErrInvalidInput)
	}
	strikes := grid.Strikes(m.Spot)
	chain := &OptionChain{
		Spot:         m.Spot,
		Forward:      Forward(m),
		TimeToExpiry: m.TimeToExpiry,
		Rows:         make([]ChainRow, 0, len(strikes)),
	}

	spot := decimal.NewFromFloat(m.Spot)
	atm, ok := ATMStrike(strikes, spot)
	if !ok {
		return chain, nil
	}
	chain.ATMStrike = atm

	for _, k := range strikes {
		strike := k.InexactFloat64()
		call, err := PriceOption(m, OptionSpec{Strike: strike, Type: OptionTypeCall})
		if err != nil {
			return nil, err
		}
		put, err := PriceOption(m, OptionSpec{Strike: strike, Type: OptionTypePut})
		if err != nil {
			return nil, err
		}
		callPx, err := RoundPrice(call.Price)
		if err != nil {
			return nil, err
		}
		putPx, err := RoundPrice(put.Price)
		if err != nil {
			return nil, err
		}
		chain.Rows = append(chain.Rows, ChainRow{
			Strike:    k,
			Call:      callPx,
			Put:       putPx,
			Moneyness: Classify(k, atm, spot),
		})
	}
	return chain, nil
}

// RoundPrice 价格转为展示精度的十进制数，溢出为无穷大时报错
func RoundPrice(p float64) (decimal.Decimal, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return decimal.Zero, fmt.Errorf("%w: price overflow", ErrInvalidInput)
	}
	return decimal.NewFromFloat(p).Round(PricePrecision), nil
}

// RoundStrike 行权价转为 StrikePrecision 位小数
func RoundStrike(k float64) (decimal.Decimal, error) {
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return decimal.Zero, fmt.Errorf("%w: strike is not finite", ErrInvalidInput)
	}
	return decimal.NewFromFloat(k).Round(StrikePrecision), nil
}

// GenerateChainForDays 以到期天数生成期权链，T = days / 365
func GenerateChainForDays(spot, volatility, domesticRate, foreignRate, days float64, grid StrikeGrid) (*OptionChain, error) {
	return GenerateChain(MarketParameters{
		Spot:         spot,
		Volatility:   volatility,
		DomesticRate: domesticRate,
		ForeignRate:  foreignRate,
		TimeToExpiry: YearFraction(days),
	}, grid)
}
