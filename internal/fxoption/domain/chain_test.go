package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStrikeGrid_DefaultStrikes(t *testing.T) {
	strikes := DefaultStrikeGrid().Strikes(83.20)
	if len(strikes) != 21 {
		t.Fatalf("len = %d, want 21", len(strikes))
	}
	if got := strikes[0].String(); got != "81.2" {
		t.Errorf("first strike = %s, want 81.2", got)
	}
	if got := strikes[len(strikes)-1].String(); got != "86.2" {
		t.Errorf("last strike = %s, want 86.2 (upper bound is inclusive)", got)
	}
	for i := 1; i < len(strikes); i++ {
		if !strikes[i].Sub(strikes[i-1]).Equal(decimal.RequireFromString("0.25")) {
			t.Fatalf("step between %s and %s is not 0.25", strikes[i-1], strikes[i])
		}
	}
}

func TestStrikeGrid_Len(t *testing.T) {
	cases := []struct {
		name string
		spot float64
		grid StrikeGrid
		want int
	}{
		{"default", 83.20, DefaultStrikeGrid(), 21},
		{"not landing on upper bound", 1.0850, StrikeGrid{LowerOffset: 0.01, UpperOffset: 0.01, Step: 0.003}, 7},
		{"decimal step", 1.0850, StrikeGrid{LowerOffset: 0.005, UpperOffset: 0.005, Step: 0.001}, 11},
		{"inverted", 83.20, StrikeGrid{LowerOffset: -2, UpperOffset: 1, Step: 0.25}, 0},
		{"empty", 83.20, StrikeGrid{LowerOffset: 0, UpperOffset: 0, Step: 0.25}, 0},
		{"zero step", 83.20, StrikeGrid{LowerOffset: 2, UpperOffset: 3, Step: 0}, 0},
		{"negative step", 83.20, StrikeGrid{LowerOffset: 2, UpperOffset: 3, Step: -0.25}, 0},
		{"one sided", 100, StrikeGrid{LowerOffset: 0, UpperOffset: 1, Step: 0.5}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.grid.Len(tc.spot); got != tc.want {
				t.Fatalf("Len = %d, want %d", got, tc.want)
			}
			if got := len(tc.grid.Strikes(tc.spot)); got != tc.want {
				t.Fatalf("len(Strikes) = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestStrikeGrid_RoundsToFourDecimals(t *testing.T) {
	strikes := StrikeGrid{LowerOffset: 0.001, UpperOffset: 0.001, Step: 0.00033333}.Strikes(1.23456)
	for _, k := range strikes {
		if k.Exponent() < -StrikePrecision {
			t.Fatalf("strike %s has more than %d decimals", k, StrikePrecision)
		}
	}
	for i := 1; i < len(strikes); i++ {
		if !strikes[i].GreaterThan(strikes[i-1]) {
			t.Fatalf("strikes not strictly ascending at %d: %s, %s", i, strikes[i-1], strikes[i])
		}
	}
}

func TestStrikeGrid_StepBelowPrecision(t *testing.T) {
	g := StrikeGrid{LowerOffset: 2, UpperOffset: 3, Step: 1e-6}
	strikes := g.Strikes(83.2)

	if n := g.Len(83.2); n != 50001 {
		t.Fatalf("Len = %d, want 50001 distinct 4dp strikes", n)
	}
	if len(strikes) != 50001 || cap(strikes) != 50001 {
		t.Fatalf("len = %d, cap = %d, want 50001", len(strikes), cap(strikes))
	}
	if strikes[0].String() != "81.2" || strikes[len(strikes)-1].String() != "86.2" {
		t.Fatalf("bounds = %s..%s", strikes[0], strikes[len(strikes)-1])
	}
	for i := 1; i < len(strikes); i++ {
		if !strikes[i].Sub(strikes[i-1]).Equal(strikeTick) {
			t.Fatalf("gap at %d: %s -> %s", i, strikes[i-1], strikes[i])
		}
	}

	// 原始点数 5e12，去重后仍为 50001
	if n := (StrikeGrid{LowerOffset: 2, UpperOffset: 3, Step: 1e-12}).Len(83.2); n != 50001 {
		t.Fatalf("Len(step=1e-12) = %d, want 50001", n)
	}
}

func TestStrikeGrid_LenNotTruncated(t *testing.T) {
	g := StrikeGrid{LowerOffset: 0, UpperOffset: 1e6, Step: 1e-4}
	if n := g.Len(1); n != 10_000_000_001 {
		t.Fatalf("Len = %d, want 10000000001", n)
	}

	huge := StrikeGrid{LowerOffset: 0, UpperOffset: 1e300, Step: 1}
	if n := huge.Len(1); n != math.MaxInt {
		t.Fatalf("Len = %d, want saturation at MaxInt", n)
	}
	if s := huge.Strikes(1); s != nil {
		t.Fatalf("Strikes returned %d points for an unrepresentable grid", len(s))
	}
	if _, err := GenerateChainForDays(1, 0.1, 0.05, 0.02, 30, huge); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestATMStrike_TieTakesFirst(t *testing.T) {
	strikes := []decimal.Decimal{
		decimal.RequireFromString("99.5"),
		decimal.RequireFromString("100.5"),
		decimal.RequireFromString("101.5"),
	}
	atm, ok := ATMStrike(strikes, decimal.NewFromInt(100))
	if !ok {
		t.Fatal("expected an ATM strike")
	}
	if atm.String() != "99.5" {
		t.Fatalf("atm = %s, want 99.5", atm)
	}

	if _, ok := ATMStrike(nil, decimal.NewFromInt(100)); ok {
		t.Fatal("expected no ATM strike for an empty grid")
	}
}

func TestClassify(t *testing.T) {
	spot := decimal.RequireFromString("83.2")
	atm := decimal.RequireFromString("83.2")
	cases := []struct {
		strike string
		want   Moneyness
	}{
		{"83.2", MoneynessATM},
		{"83.2000001", MoneynessATM},
		{"83.19", MoneynessITM},
		{"81.2", MoneynessITM},
		{"83.21", MoneynessOTM},
		{"86.2", MoneynessOTM},
	}
	for _, tc := range cases {
		if got := Classify(decimal.RequireFromString(tc.strike), atm, spot); got != tc.want {
			t.Errorf("Classify(%s) = %s, want %s", tc.strike, got, tc.want)
		}
	}
}

func TestGenerateChain_Default(t *testing.T) {
	chain, err := GenerateChainForDays(83.20, 0.08, 0.065, 0.052, 30, DefaultStrikeGrid())
	if err != nil {
		t.Fatalf("GenerateChain: %v", err)
	}
	if len(chain.Rows) != 21 {
		t.Fatalf("rows = %d, want 21", len(chain.Rows))
	}
	if n := chain.Count(MoneynessATM); n != 1 {
		t.Fatalf("ATM rows = %d, want 1", n)
	}
	if n := chain.Count(MoneynessITM); n != 8 {
		t.Errorf("ITM rows = %d, want 8", n)
	}
	if n := chain.Count(MoneynessOTM); n != 12 {
		t.Errorf("OTM rows = %d, want 12", n)
	}
	if chain.ATMStrike.String() != "83.2" {
		t.Errorf("atm strike = %s, want 83.2", chain.ATMStrike)
	}

	atm := chain.Filter(MoneynessATM)[0]
	if atm.Call.String() != "0.802658" {
		t.Errorf("ATM call = %s, want 0.802658", atm.Call)
	}
	if atm.Put.String() != "0.714186" {
		t.Errorf("ATM put = %s, want 0.714186", atm.Put)
	}

	for i := 1; i < len(chain.Rows); i++ {
		prev, cur := chain.Rows[i-1], chain.Rows[i]
		if !cur.Strike.GreaterThan(prev.Strike) {
			t.Fatalf("rows not ascending at %d", i)
		}
		if cur.Call.GreaterThan(prev.Call) {
			t.Errorf("call price increased with strike at %s", cur.Strike)
		}
		if cur.Put.LessThan(prev.Put) {
			t.Errorf("put price decreased with strike at %s", cur.Strike)
		}
	}
}

func TestGenerateChain_ExactlyOneATMWhenSpotBetweenStrikes(t *testing.T) {
	grids := []StrikeGrid{
		DefaultStrikeGrid(),
		{LowerOffset: 1.1, UpperOffset: 1.4, Step: 0.2},
		{LowerOffset: 0.125, UpperOffset: 0.125, Step: 0.25},
		{LowerOffset: 0.0003, UpperOffset: 0.0003, Step: 0.00001},
	}
	for _, spot := range []float64{83.20, 83.33, 97.4321, 150.005} {
		for _, g := range grids {
			chain, err := GenerateChainForDays(spot, 0.1, 0.05, 0.02, 45, g)
			if err != nil {
				t.Fatalf("spot=%v grid=%+v: %v", spot, g, err)
			}
			if len(chain.Rows) == 0 {
				continue
			}
			if n := chain.Count(MoneynessATM); n != 1 {
				t.Errorf("spot=%v grid=%+v: ATM rows = %d, want 1", spot, g, n)
			}
		}
	}
}

func TestGenerateChain_EmptyRange(t *testing.T) {
	chain, err := GenerateChainForDays(83.20, 0.08, 0.065, 0.052, 30, StrikeGrid{LowerOffset: -3, UpperOffset: 2, Step: 0.25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain.Rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(chain.Rows))
	}
	if chain.Count(MoneynessATM) != 0 {
		t.Fatal("empty chain must not have an ATM row")
	}
}

func TestGenerateChain_DegenerateHasNoTimeValue(t *testing.T) {
	chain, err := GenerateChainForDays(84, 0.08, 0, 0, 0, StrikeGrid{LowerOffset: 1, UpperOffset: 1, Step: 1})
	if err != nil {
		t.Fatalf("GenerateChain: %v", err)
	}
	want := []struct{ call, put string }{{"1", "0"}, {"0", "0"}, {"0", "1"}}
	if len(chain.Rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(chain.Rows), len(want))
	}
	for i, row := range chain.Rows {
		if row.Call.String() != want[i].call || row.Put.String() != want[i].put {
			t.Errorf("row %s: call=%s put=%s, want %s/%s", row.Strike, row.Call, row.Put, want[i].call, want[i].put)
		}
	}
}

func TestGenerateChain_PropagatesInvalidInput(t *testing.T) {
	// 网格下探到非正行权价
	chain, err := GenerateChainForDays(1.5, 0.08, 0.065, 0.052, 30, DefaultStrikeGrid())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if chain != nil {
		t.Fatal("no partial chain expected")
	}
}

func TestGenerateChain_Forward(t *testing.T) {
	chain, err := GenerateChainForDays(83.20, 0.08, 0.065, 0.052, 30, DefaultStrikeGrid())
	if err != nil {
		t.Fatal(err)
	}
	if chain.Forward <= chain.Spot {
		t.Fatalf("forward %v should be above spot when r_d > r_f", chain.Forward)
	}
}
