package feed

import (
	"context"
	"encoding/csv"
	"os"
	"time"

	"reconciler/internal/errs"
	"reconciler/internal/models"
)

// Delimited reads canonical trades from a CSV file, with an optional
// ColumnMapping from the file's own header names to the canonical field
// names (trade_id, instrument_id, ...). Per-row parse failures never
// abort the feed — they are accumulated as ParseWarning, mirroring the
// original CSVTradeParser.parse's per-row try/except.
type Delimited struct {
	FilePath      string
	ColumnMapping map[string]string
	Source        models.Source
}

// Fetch opens FilePath and normalizes every row. A failure to open the
// file itself is an errs.FeedIOError; a malformed individual row is a
// ParseWarning and does not stop the remaining rows from being read.
func (a *Delimited) Fetch(ctx context.Context, tradeDate time.Time, sourceTag string) (<-chan NormalizeResult, error) {
	f, err := os.Open(a.FilePath)
	if err != nil {
		return nil, &errs.FeedIOError{Source: sourceTag, Err: err}
	}

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		f.Close()
		return nil, &errs.FeedIOError{Source: sourceTag, Err: err}
	}
	header = a.mapHeader(header)

	out := make(chan NormalizeResult)
	go func() {
		defer close(out)
		defer f.Close()

		line := 1
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			record, err := reader.Read()
			if err != nil {
				break // io.EOF or a fatal CSV error both end the feed
			}
			line++

			raw := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(record) {
					raw[col] = record[i]
				}
			}

			source := a.Source
			if source == "" {
				source = models.Source(sourceTag)
			}

			trade, warning, err := Normalize(raw, source)
			if err != nil {
				out <- NormalizeResult{Warning: &errs.ParseWarning{Source: sourceTag, Line: line, Reason: err.Error()}}
				continue
			}
			if warning != nil {
				warning.Line = line
				out <- NormalizeResult{Warning: warning}
			}
			out <- NormalizeResult{Trade: trade}
		}
	}()

	return out, nil
}

// mapHeader renames CSV header columns per ColumnMapping, leaving
// unmapped columns as-is.
func (a *Delimited) mapHeader(header []string) []string {
	if len(a.ColumnMapping) == 0 {
		return header
	}
	mapped := make([]string, len(header))
	for i, col := range header {
		if renamed, ok := a.ColumnMapping[col]; ok {
			mapped[i] = renamed
		} else {
			mapped[i] = col
		}
	}
	return mapped
}
