package pattern

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/shopspring/decimal"

	"reconciler/internal/models"
)

const (
	minBreaksRequired = 5
	epsilon           = 0.5
	minPts            = 3

	highSeverityMemberThreshold = 10
)

var recommendations = map[models.RootCause]string{
	models.RootCauseLateBooking:        "review late-booking cutoff times with the counterparty's middle office",
	models.RootCauseBrokerFeedIssue:    "escalate to the broker feed integration team for a connectivity review",
	models.RootCauseInternalBookingErr: "audit the internal booking workflow for the affected desk",
	models.RootCauseDataEntryError:     "schedule a data entry accuracy review with the originating desk",
	models.RootCauseRoundingDifference: "confirm rounding conventions match between systems; consider widening tolerance",
	models.RootCausePartialFill:        "reconcile partial fill allocations against the execution blotter",
	models.RootCauseUnknown:            "investigate manually; no common root cause was found",
}

// Detect clusters the open subset of breaks and emits one Pattern per
// non-noise cluster with at least minPts members. Fewer than
// minBreaksRequired open breaks returns nil without attempting to
// cluster, per the documented boundary behavior.
func Detect(breaks []models.Break, trades map[string]*models.Trade) []models.Pattern {
	open := make([]models.Break, 0, len(breaks))
	for _, b := range breaks {
		if !b.IsTerminal() {
			open = append(open, b)
		}
	}
	if len(open) < minBreaksRequired {
		return nil
	}

	vectors := buildVectors(open, trades)
	standardize(vectors)
	labels := dbscan(vectors, epsilon, minPts)

	byCluster := make(map[int][]int)
	for i, label := range labels {
		if label == noise {
			continue
		}
		byCluster[label] = append(byCluster[label], i)
	}

	clusterIDs := make([]int, 0, len(byCluster))
	for id := range byCluster {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Ints(clusterIDs)

	var patterns []models.Pattern
	for _, id := range clusterIDs {
		members := byCluster[id]
		if len(members) < minPts {
			continue
		}
		patterns = append(patterns, summarize(members, open, trades))
	}
	return patterns
}

func summarize(members []int, breaks []models.Break, trades map[string]*models.Trade) models.Pattern {
	counterpartyCounts := make(map[string]int)
	breakTypeCounts := make(map[models.BreakType]int)
	rootCauseCounts := make(map[models.RootCause]int)

	var memberIDs []string
	totalImpact := decimal.Zero
	firstOccurrence := breaks[members[0]].CreatedAt
	lastOccurrence := breaks[members[0]].CreatedAt

	for _, idx := range members {
		b := breaks[idx]
		memberIDs = append(memberIDs, b.ID)

		trade := trades[b.TradeRef]
		if trade == nil {
			trade = trades[b.MatchedTradeRef]
		}
		if trade != nil {
			counterpartyCounts[trade.Counterparty]++
		}
		breakTypeCounts[b.BreakType]++
		rootCauseCounts[b.RootCauseCategory]++

		totalImpact = totalImpact.Add(impact(b, trades))

		if b.CreatedAt.Before(firstOccurrence) {
			firstOccurrence = b.CreatedAt
		}
		if b.CreatedAt.After(lastOccurrence) {
			lastOccurrence = b.CreatedAt
		}
	}

	severity := models.SeverityMedium
	if len(members) > highSeverityMemberThreshold {
		severity = models.SeverityHigh
	}

	commonRootCause := plurality(rootCauseCounts)

	return models.Pattern{
		ID:                 patternID(memberIDs),
		MemberBreakIDs:     memberIDs,
		CommonCounterparty: pluralityString(counterpartyCounts),
		CommonBreakType:    pluralityBreakType(breakTypeCounts),
		CommonRootCause:    commonRootCause,
		MemberCount:        len(members),
		TotalImpact:        totalImpact,
		FirstOccurrence:    firstOccurrence,
		LastOccurrence:     lastOccurrence,
		Severity:           severity,
		Recommendation:     recommendations[commonRootCause],
	}
}

// impact is |difference| times the counterpart figure not already
// expressed in the difference itself: price for a quantity mismatch and
// quantity for every other break kind. When neither referenced trade is
// known, it is the bare difference.
func impact(b models.Break, trades map[string]*models.Trade) decimal.Decimal {
	trade := trades[b.TradeRef]
	if trade == nil {
		trade = trades[b.MatchedTradeRef]
	}
	diff := b.Difference.Abs()
	if trade == nil {
		return diff
	}
	if b.BreakType == models.BreakTypeQuantityMismatch {
		return diff.Mul(trade.Price.Abs())
	}
	return diff.Mul(trade.Quantity.Abs())
}

func plurality(counts map[models.RootCause]int) models.RootCause {
	var winner models.RootCause
	best := -1
	keys := make([]models.RootCause, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		if counts[k] > best {
			best = counts[k]
			winner = k
		}
	}
	return winner
}

func pluralityString(counts map[string]int) string {
	var winner string
	best := -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > best {
			best = counts[k]
			winner = k
		}
	}
	return winner
}

func pluralityBreakType(counts map[models.BreakType]int) models.BreakType {
	var winner models.BreakType
	best := -1
	keys := make([]models.BreakType, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		if counts[k] > best {
			best = counts[k]
			winner = k
		}
	}
	return winner
}

// patternID derives a stable identifier from the cluster's member break
// ids, so the same break set reproduces the same pattern identity across
// runs and process restarts rather than depending on a random seed.
func patternID(memberIDs []string) string {
	sorted := append([]string(nil), memberIDs...)
	sort.Strings(sorted)

	h := fnv.New32a()
	for _, id := range sorted {
		_, _ = h.Write([]byte(id))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("pattern-%08x", h.Sum32())
}
