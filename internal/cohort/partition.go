// Package cohort splits users into ordered spending-volume bands.
package cohort

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Band is a half-open amount range [Min, Max). A Max that is not Valid is
// unbounded above.
type Band struct {
	Position int
	Min      decimal.Decimal
	Max      decimal.NullDecimal
}

func (b Band) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(b.Min) {
		return false
	}
	return !b.Max.Valid || amount.LessThan(b.Max.Decimal)
}

// Partition cuts the sorted totals at empirical quantiles into at most
// bandCount contiguous bands covering [0, ∞). Duplicate cut points collapse,
// so fewer bands come back when totals are tied or sparse. Every returned band
// holds at least one of the totals, except when totals is empty and the single
// band [0, ∞) is returned.
func Partition(totals []decimal.Decimal, bandCount int) ([]Band, error) {
	if bandCount < 1 {
		return nil, fmt.Errorf("band count must be at least 1, got %d", bandCount)
	}

	sorted := make([]decimal.Decimal, len(totals))
	copy(sorted, totals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	for _, t := range sorted {
		if t.IsNegative() {
			return nil, fmt.Errorf("negative total %s", t)
		}
	}

	n := len(sorted)
	var cuts []decimal.Decimal
	if n > 0 {
		last := sorted[0]
		for i := 1; i < bandCount; i++ {
			idx := (i*n + bandCount - 1) / bandCount
			if idx >= n {
				break
			}
			if c := sorted[idx]; c.GreaterThan(last) {
				cuts = append(cuts, c)
				last = c
			}
		}
	}

	bands := make([]Band, 0, len(cuts)+1)
	lo := decimal.Zero
	for _, c := range cuts {
		bands = append(bands, Band{
			Position: len(bands),
			Min:      lo,
			Max:      decimal.NewNullDecimal(c),
		})
		lo = c
	}
	bands = append(bands, Band{Position: len(bands), Min: lo})

	return bands, nil
}

// Locate returns the index of the band containing amount, or -1.
func Locate(bands []Band, amount decimal.Decimal) int {
	i := sort.Search(len(bands), func(i int) bool { return bands[i].Min.GreaterThan(amount) }) - 1
	if i < 0 || !bands[i].Contains(amount) {
		return -1
	}
	return i
}

// Validate checks that bands are ordered, contiguous, start at zero and end
// unbounded.
func Validate(bands []Band) error {
	if len(bands) == 0 {
		return fmt.Errorf("no bands")
	}
	if !bands[0].Min.IsZero() {
		return fmt.Errorf("lowest band starts at %s, want 0", bands[0].Min)
	}
	for i, b := range bands {
		if b.Position != i {
			return fmt.Errorf("band %d has position %d", i, b.Position)
		}
		if i == len(bands)-1 {
			if b.Max.Valid {
				return fmt.Errorf("highest band is bounded at %s", b.Max.Decimal)
			}
			break
		}
		if !b.Max.Valid {
			return fmt.Errorf("band %d is unbounded but not last", i)
		}
		if !b.Max.Decimal.GreaterThan(b.Min) {
			return fmt.Errorf("band %d is empty: [%s, %s)", i, b.Min, b.Max.Decimal)
		}
		if !bands[i+1].Min.Equal(b.Max.Decimal) {
			return fmt.Errorf("gap between band %d and %d: %s != %s", i, i+1, b.Max.Decimal, bands[i+1].Min)
		}
	}
	return nil
}
