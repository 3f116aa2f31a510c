package core

import (
	"fmt"
	"sort"
)

// maxBuckets bounds the monthly series to the trailing six months, matching
// what the statistics chart can display.
const maxBuckets = 6

// Summary holds running totals over a set of records.
type Summary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// MonthBucket aggregates one calendar month. Label is "M/YYYY" with a
// 1-indexed month.
type MonthBucket struct {
	Label   string  `json:"month"`
	Year    int     `json:"-"`
	Month   int     `json:"-"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// Totals sums income and expense over records. An empty input yields zeros.
func Totals(records []Transaction) Summary {
	var s Summary
	for _, r := range records {
		switch r.Type {
		case TypeIncome:
			s.Income += r.Amount
		case TypeExpense:
			s.Expense += r.Amount
		}
	}
	s.Balance = s.Income - s.Expense
	return s
}

// MonthlyBuckets groups records by (year, month) of their timestamp, sums
// income and expense per bucket, sorts ascending chronologically and keeps
// the trailing six buckets. Records whose timestamp cannot be parsed are
// skipped; the second return value reports how many were.
func MonthlyBuckets(records []Transaction) ([]MonthBucket, int) {
	type key struct{ year, month int }
	byMonth := make(map[key]*MonthBucket)
	skipped := 0

	for _, r := range records {
		ts, err := ParseCreatedAt(r.CreatedAt)
		if err != nil {
			skipped++
			continue
		}
		k := key{year: ts.Year(), month: int(ts.Month())}
		b, ok := byMonth[k]
		if !ok {
			b = &MonthBucket{
				Label: fmt.Sprintf("%d/%d", k.month, k.year),
				Year:  k.year,
				Month: k.month,
			}
			byMonth[k] = b
		}
		switch r.Type {
		case TypeIncome:
			b.Income += r.Amount
		case TypeExpense:
			b.Expense += r.Amount
		}
	}

	buckets := make([]MonthBucket, 0, len(byMonth))
	for _, b := range byMonth {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Year != buckets[j].Year {
			return buckets[i].Year < buckets[j].Year
		}
		return buckets[i].Month < buckets[j].Month
	})
	if len(buckets) > maxBuckets {
		buckets = buckets[len(buckets)-maxBuckets:]
	}
	return buckets, skipped
}
