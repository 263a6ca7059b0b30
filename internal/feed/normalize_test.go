package feed

import (
	"testing"

	"reconciler/internal/models"
)

func TestNormalizeHappyPath(t *testing.T) {
	raw := map[string]string{
		"trade_id":        "T100",
		"trade_date":      "2024-03-01",
		"settlement_date": "2024-03-03",
		"instrument_id":   "ABC",
		"quantity":        "100",
		"price":           "10.00",
		"currency":        "USD",
		"counterparty":    "JPM",
	}

	trade, warning, err := Normalize(raw, models.SourceInternal)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if warning != nil {
		t.Fatalf("unexpected warning: %v", warning)
	}
	if trade.TradeID != "T100" {
		t.Errorf("TradeID = %q, want T100", trade.TradeID)
	}
	if trade.Status != models.TradeStatusUnmatched {
		t.Errorf("Status = %v, want unmatched", trade.Status)
	}
}

func TestNormalizeTriesEveryDateLayout(t *testing.T) {
	layouts := []string{"2024-03-01", "20240301", "01/03/2024", "03/01/2024"}
	for _, layout := range layouts {
		raw := map[string]string{
			"trade_id":        "T1",
			"trade_date":      layout,
			"settlement_date": "2024-03-01",
			"quantity":        "1",
			"price":           "1",
		}
		if _, _, err := Normalize(raw, models.SourceInternal); err != nil {
			t.Errorf("layout %q: unexpected error %v", layout, err)
		}
	}
}

func TestNormalizeUnparseableDateFails(t *testing.T) {
	raw := map[string]string{
		"trade_date":      "not-a-date",
		"settlement_date": "2024-03-01",
	}
	if _, _, err := Normalize(raw, models.SourceInternal); err == nil {
		t.Fatal("expected an error for an unparseable trade_date")
	}
}

func TestNormalizeEmptyNumericDefaultsToZeroWithWarning(t *testing.T) {
	raw := map[string]string{
		"trade_date":      "2024-03-01",
		"settlement_date": "2024-03-01",
		"quantity":        "",
		"price":           "10",
	}
	trade, warning, err := Normalize(raw, models.SourceInternal)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !trade.Quantity.IsZero() {
		t.Errorf("Quantity = %s, want 0", trade.Quantity)
	}
	if warning == nil {
		t.Fatal("expected a ParseWarning for the empty quantity field")
	}
}

func TestNormalizeDefaultsCurrencyToUSD(t *testing.T) {
	raw := map[string]string{
		"trade_date":      "2024-03-01",
		"settlement_date": "2024-03-01",
		"quantity":        "1",
		"price":           "1",
	}
	trade, _, err := Normalize(raw, models.SourceInternal)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if trade.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", trade.Currency)
	}
}

func TestNormalizeIdempotentOnRawData(t *testing.T) {
	raw := map[string]string{
		"trade_id":        "T1",
		"trade_date":      "2024-03-01",
		"settlement_date": "2024-03-01",
		"instrument_id":   "ABC",
		"quantity":        "10",
		"price":           "5",
		"currency":        "USD",
		"counterparty":    "JPM",
	}

	first, _, err := Normalize(raw, models.SourceInternal)
	if err != nil {
		t.Fatalf("first Normalize() error = %v", err)
	}

	second, _, err := Normalize(first.RawData, models.SourceInternal)
	if err != nil {
		t.Fatalf("second Normalize() error = %v", err)
	}

	if !first.Quantity.Equal(second.Quantity) || !first.Price.Equal(second.Price) {
		t.Errorf("normalize(raw) != normalize(normalize(raw).raw_data): %+v vs %+v", first, second)
	}
	if first.InstrumentID != second.InstrumentID || first.Counterparty != second.Counterparty {
		t.Errorf("normalize(raw) != normalize(normalize(raw).raw_data): %+v vs %+v", first, second)
	}
}
