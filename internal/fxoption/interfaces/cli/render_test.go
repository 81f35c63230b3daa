package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/wyfcoding/fxoption/internal/fxoption/application"
)

var _ Pricer = (*application.FXOptionService)(nil)

func defaultChain(t *testing.T) *application.ChainDTO {
	t.Helper()
	svc := application.NewFXOptionService(application.DefaultDefaults(), nil)
	chain, err := svc.GenerateChain(context.Background(), application.GenerateChainCommand{})
	if err != nil {
		t.Fatal(err)
	}
	return chain
}

func TestRenderChain(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderChain(&buf, defaultChain(t)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"== ATM Strike (1)",
		"== In The Money (ITM) (8)",
		"== Out of The Money (OTM) (12)",
		"83.2000",
		"0.802658",
		"0.714186",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "ATM Strike") > strings.Index(out, "In The Money") {
		t.Error("ATM table should come first")
	}
}

func TestRenderChain_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderChain(&buf, &application.ChainDTO{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "empty") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestRenderMarket(t *testing.T) {
	var buf bytes.Buffer
	err := RenderMarket(&buf, MarketHeader{Pair: "USD/INR", Spot: 83.2, Future: 83.5}, defaultChain(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"USD/INR", "83.2", "83.5", "83.288946", "30"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRenderQuote(t *testing.T) {
	svc := application.NewFXOptionService(application.DefaultDefaults(), nil)

	quote, err := svc.Calculate(context.Background(), application.CalculateCommand{OptionType: "call"})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := RenderQuote(&buf, quote); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"0.802658", "d1:", "0.058055", "d2:", "0.035120", "Delta:"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	days := 0.0
	expired, err := svc.Calculate(context.Background(), application.CalculateCommand{
		OptionType:  "call",
		MarketInput: application.MarketInput{DaysToExpiry: &days},
	})
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := RenderQuote(&buf, expired); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Greeks unavailable") || strings.Contains(buf.String(), "d1:") {
		t.Fatalf("degenerate output:\n%s", buf.String())
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, defaultChain(t)); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 22 {
		t.Fatalf("records = %d, want header + 21", len(records))
	}
	if strings.Join(records[0], ",") != "strike,call,put,status" {
		t.Fatalf("header = %v", records[0])
	}
	if records[1][0] != "81.2" || records[21][0] != "86.2" {
		t.Fatalf("first/last strike = %s/%s", records[1][0], records[21][0])
	}
}
