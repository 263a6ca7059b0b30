package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reconciler/internal/errs"
	"reconciler/internal/models"
)

// dateLayouts is the ordered list of formats the normalizer tries before
// giving up, ported from the original CSV/FIX parsers' fallback chain
// (%Y-%m-%d, %Y%m%d, %d/%m/%Y, %m/%d/%Y).
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"02/01/2006",
	"01/02/2006",
}

// Normalize converts a raw string-keyed field map into a canonical Trade.
// Date parsing tries every layout in dateLayouts and only fails (wrapping
// errs.ErrUnparseableDate) once all of them do. Numeric fields parse as
// decimal.Decimal; an empty numeric field becomes decimal.Zero and the
// row is flagged with a non-fatal warning rather than rejected outright.
//
// Per the compatibility requirement in the external interfaces, this
// function must be byte-stable: the same raw map and source always
// produce the same canonical trade.
func Normalize(raw map[string]string, source models.Source) (*models.Trade, *errs.ParseWarning, error) {
	tradeDate, err := parseDate(raw["trade_date"])
	if err != nil {
		return nil, nil, fmt.Errorf("trade_date: %w", errs.ErrUnparseableDate)
	}

	settlementDate, err := parseDate(raw["settlement_date"])
	if err != nil {
		// The original normalizer requires both dates to parse; an
		// unparseable settlement_date is just as fatal to the row as an
		// unparseable trade_date.
		return nil, nil, fmt.Errorf("settlement_date: %w", errs.ErrUnparseableDate)
	}

	var warning *errs.ParseWarning

	quantity, quantityFlagged := parseDecimal(raw["quantity"])
	price, priceFlagged := parseDecimal(raw["price"])
	if quantityFlagged || priceFlagged {
		warning = &errs.ParseWarning{
			Source: string(source),
			Reason: "empty numeric field defaulted to zero: " + strings.Join(emptyFields(raw, quantityFlagged, priceFlagged), ", "),
		}
	}

	currency := raw["currency"]
	if currency == "" {
		currency = "USD"
	}

	trade := &models.Trade{
		TradeID:        raw["trade_id"],
		Source:         source,
		TradeDate:      tradeDate,
		SettlementDate: settlementDate,
		InstrumentID:   raw["instrument_id"],
		InstrumentName: raw["instrument_name"],
		Quantity:       quantity,
		Price:          price,
		Currency:       currency,
		Counterparty:   raw["counterparty"],
		Account:        raw["account"],
		Status:         models.TradeStatusUnmatched,
		RawData:        raw,
	}

	return trade, warning, nil
}

func emptyFields(raw map[string]string, quantityFlagged, priceFlagged bool) []string {
	var fields []string
	if quantityFlagged {
		fields = append(fields, "quantity")
	}
	if priceFlagged {
		fields = append(fields, "price")
	}
	return fields
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errs.ErrUnparseableDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errs.ErrUnparseableDate
}

// parseDecimal returns (value, flagged) — flagged is true when the input
// was empty and the zero value was substituted, so the caller can attach
// a ParseWarning.
func parseDecimal(value string) (decimal.Decimal, bool) {
	if value == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		// Not a numeric string at all: treat the same as empty rather
		// than aborting the whole row, matching the per-row tolerance
		// the delimited and tag=value adapters already apply.
		return decimal.Zero, true
	}
	return d, false
}
