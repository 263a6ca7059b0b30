package feed

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"reconciler/internal/errs"
	"reconciler/internal/models"
)

// tagFieldMap is the fixed tag-to-canonical-field dictionary, ported from
// the original FIXMessageParser.FIX_TAG_MAP. Tags not present here are
// retained under a "tag_<n>" key instead of being dropped, so no
// information is silently lost.
var tagFieldMap = map[string]string{
	"11": "trade_id",
	"55": "instrument_id",
	"54": "side",
	"38": "quantity",
	"44": "price",
	"15": "currency",
	"75": "trade_date",
	"64": "settlement_date",
}

// TagValue parses one message per line, each message a Delimiter-joined
// sequence of tag=value pairs (pipe by default).
type TagValue struct {
	FilePath  string
	Delimiter string
	Source    models.Source
}

// Fetch opens FilePath and normalizes every line/message. A malformed
// message is a ParseWarning and does not stop the remaining lines from
// being read, mirroring the original's per-message try/except.
func (a *TagValue) Fetch(ctx context.Context, tradeDate time.Time, sourceTag string) (<-chan NormalizeResult, error) {
	f, err := os.Open(a.FilePath)
	if err != nil {
		return nil, &errs.FeedIOError{Source: sourceTag, Err: err}
	}

	delim := a.Delimiter
	if delim == "" {
		delim = "|"
	}

	out := make(chan NormalizeResult)
	go func() {
		defer close(out)
		defer f.Close()

		scanner := bufio.NewScanner(f)
		line := 0
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			line++

			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}

			raw := parseTagValueMessage(text, delim)

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

// parseTagValueMessage splits text on delim into "tag=value" fields and
// maps each tag through tagFieldMap; an unrecognized tag lands under
// "tag_<n>" instead of being dropped.
func parseTagValueMessage(text, delim string) map[string]string {
	raw := make(map[string]string)
	for _, field := range strings.Split(text, delim) {
		tag, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		fieldName, known := tagFieldMap[tag]
		if !known {
			fieldName = fmt.Sprintf("tag_%s", tag)
		}
		raw[fieldName] = value
	}
	return raw
}
