package scoring

import "github.com/shopspring/decimal"

// Standing is a score's position among all completed results of an exam at
// the time it was calculated.
type Standing struct {
	Rank          int
	TotalAttempts int
	Percentile    decimal.Decimal
}

// Rank places score among existing completed scores. Ties share the better rank.
func Rank(existing []decimal.Decimal, score decimal.Decimal) Standing {
	higher := 0
	for _, s := range existing {
		if s.GreaterThan(score) {
			higher++
		}
	}
	return RankFromCounts(len(existing), higher)
}

// RankFromCounts is Rank for callers that count in storage.
func RankFromCounts(existing, higher int) Standing {
	total := existing + 1
	rank := higher + 1
	pct := decimal.NewFromInt(int64(total-rank+1)).
		Mul(hundred).
		DivRound(decimal.NewFromInt(int64(total)), 2)
	return Standing{Rank: rank, TotalAttempts: total, Percentile: pct}
}
