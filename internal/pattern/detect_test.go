package pattern

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reconciler/internal/models"
)

func decTest(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal.NewFromString(%q) error = %v", s, err)
	}
	return d
}

func TestDetectFewerThanMinimumReturnsEmpty(t *testing.T) {
	breaks := make([]models.Break, 4)
	for i := range breaks {
		breaks[i] = models.Break{ID: "B" + string(rune('0'+i)), BreakType: models.BreakTypePriceMismatch}
	}
	got := Detect(breaks, nil)
	if got != nil {
		t.Errorf("Detect() = %+v, want nil for fewer than 5 breaks", got)
	}
}

func TestDetectClustersSimilarBreaks(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	trades := map[string]*models.Trade{}
	var breaks []models.Break

	for i := 0; i < 6; i++ {
		tradeID := "I" + string(rune('A'+i))
		trades[tradeID] = &models.Trade{
			ID:           tradeID,
			Counterparty: "JPMORGAN",
			InstrumentID: "ABC",
			Price:        decTest(t, "10.00"),
			Quantity:     decTest(t, "100"),
		}
		breaks = append(breaks, models.Break{
			ID:                "BRK" + string(rune('A'+i)),
			BreakType:         models.BreakTypePriceMismatch,
			RootCauseCategory: models.RootCauseRoundingDifference,
			TradeRef:          tradeID,
			Difference:        decTest(t, "0.05"),
			PriorityScore:     10,
			CreatedAt:         base.Add(time.Duration(i) * time.Hour),
			Status:            models.BreakStatusOpen,
		})
	}

	patterns := Detect(breaks, trades)
	if len(patterns) != 1 {
		t.Fatalf("len(patterns) = %d, want 1: %+v", len(patterns), patterns)
	}
	p := patterns[0]
	if p.MemberCount != 6 {
		t.Errorf("MemberCount = %d, want 6", p.MemberCount)
	}
	if p.CommonCounterparty != "JPMORGAN" {
		t.Errorf("CommonCounterparty = %q, want JPMORGAN", p.CommonCounterparty)
	}
	if p.CommonRootCause != models.RootCauseRoundingDifference {
		t.Errorf("CommonRootCause = %v, want rounding_difference", p.CommonRootCause)
	}
	if p.Recommendation == "" {
		t.Errorf("Recommendation empty, want non-empty advice string")
	}
	if p.Severity != models.SeverityMedium {
		t.Errorf("Severity = %v, want medium (<=10 members)", p.Severity)
	}
}

func TestDetectIgnoresTerminalBreaks(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var breaks []models.Break
	for i := 0; i < 6; i++ {
		status := models.BreakStatusOpen
		if i == 5 {
			status = models.BreakStatusResolved
		}
		breaks = append(breaks, models.Break{
			ID:                "BRK" + string(rune('A'+i)),
			BreakType:         models.BreakTypePriceMismatch,
			RootCauseCategory: models.RootCauseRoundingDifference,
			Difference:        decTest(t, "0.05"),
			PriorityScore:     10,
			CreatedAt:         base.Add(time.Duration(i) * time.Hour),
			Status:            status,
		})
	}

	got := Detect(breaks, nil)
	// Only 5 open breaks remain after filtering the resolved one — exactly
	// at the minimum, so detection still proceeds but the resolved break
	// can never appear as a member.
	for _, p := range got {
		for _, id := range p.MemberBreakIDs {
			if id == "BRKF" {
				t.Errorf("resolved break BRKF should never appear in a pattern's members")
			}
		}
	}
}

func TestDetectStableAcrossRepeatedCalls(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	trades := map[string]*models.Trade{}
	var breaks []models.Break
	for i := 0; i < 6; i++ {
		tradeID := "I" + string(rune('A'+i))
		trades[tradeID] = &models.Trade{
			ID:           tradeID,
			Counterparty: "GOLDMAN",
			InstrumentID: "XYZ",
			Price:        decTest(t, "20.00"),
			Quantity:     decTest(t, "50"),
		}
		breaks = append(breaks, models.Break{
			ID:                "BRK" + string(rune('A'+i)),
			BreakType:         models.BreakTypeQuantityMismatch,
			RootCauseCategory: models.RootCausePartialFill,
			TradeRef:          tradeID,
			Difference:        decTest(t, "1"),
			PriorityScore:     20,
			CreatedAt:         base.Add(time.Duration(i) * time.Hour),
			Status:            models.BreakStatusOpen,
		})
	}

	first := Detect(breaks, trades)
	second := Detect(breaks, trades)

	if len(first) != len(second) {
		t.Fatalf("pattern count differs across calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("pattern ID differs across calls: %q vs %q", first[i].ID, second[i].ID)
		}
	}
}
