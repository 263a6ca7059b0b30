// Package pattern clusters related open breaks at the end of a run and
// summarizes each cluster into a recommendation an operator can act on
// across every member at once, instead of triaging each break alone.
package pattern

import (
	"hash/fnv"
	"math"

	"gonum.org/v1/gonum/stat"

	"reconciler/internal/models"
)

// hashModPrime is the stable, non-random-seeded hash the feature vector
// relies on: fnv.New32a never varies across runs or process restarts,
// unlike Go's built-in map iteration or hash/maphash, so cluster
// membership stays reproducible given the same break set.
func hashModPrime(s string, prime uint32) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return float64(h.Sum32() % prime)
}

const hashPrime = 97

// vector is the feature vector for one break: hashed categorical fields
// plus three numeric signals, in a fixed column order so standardization
// and distance computation agree on what each column means.
type vector struct {
	breakIndex int
	values     [6]float64
}

// buildVectors produces one feature vector per break in the same order
// as breaks. trades resolves a break's trade_ref/matched_trade_ref into
// the counterparty/instrument/price/quantity context the hash-based
// columns need; a break missing both sides gets zero-valued numeric
// columns rather than being dropped, since the clustering step already
// tolerates noise points.
func buildVectors(breaks []models.Break, trades map[string]*models.Trade) []vector {
	vectors := make([]vector, len(breaks))
	for i, b := range breaks {
		trade := trades[b.TradeRef]
		if trade == nil {
			trade = trades[b.MatchedTradeRef]
		}

		var counterparty, instrument string
		var price, quantity float64
		if trade != nil {
			counterparty = trade.Counterparty
			instrument = trade.InstrumentID
			price, _ = trade.Price.Float64()
			quantity, _ = trade.Quantity.Float64()
		}

		vectors[i] = vector{
			breakIndex: i,
			values: [6]float64{
				hashModPrime(counterparty, hashPrime),
				hashModPrime(instrument, hashPrime),
				hashModPrime(string(b.BreakType), hashPrime),
				b.PriorityScore,
				price,
				quantity,
			},
		}
	}
	return vectors
}

// standardize z-scores every column in place: (x - mean) / stddev. A
// zero-variance column (every break shares the same hash bucket, or the
// same priority score) is left at zero rather than dividing by zero —
// a constant column carries no discriminating signal for distance
// computation either way.
func standardize(vectors []vector) {
	if len(vectors) == 0 {
		return
	}
	const numCols = 6

	column := make([]float64, len(vectors))
	for col := 0; col < numCols; col++ {
		for i, v := range vectors {
			column[i] = v.values[col]
		}
		mean, stddev := stat.MeanStdDev(column, nil)

		if stddev == 0 {
			for i := range vectors {
				vectors[i].values[col] = 0
			}
			continue
		}
		for i := range vectors {
			vectors[i].values[col] = (vectors[i].values[col] - mean) / stddev
		}
	}
}

func euclidean(a, b vector) float64 {
	sum := 0.0
	for i := range a.values {
		d := a.values[i] - b.values[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
