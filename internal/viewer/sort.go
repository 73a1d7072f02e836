package viewer

import (
	"cmp"
	"slices"
	"strings"

	"github.com/h0rv/ghsync/internal/domain"
)

// SortRows returns rows ordered by the value at the dot path. Numbers compare
// numerically, everything else by case-folded text. Rows missing the field or
// holding null sort last in either direction. The sort is stable.
func SortRows(rows []domain.Record, path string, order domain.SortOrder) []domain.Record {
	if path == "" || len(rows) < 2 {
		return rows
	}
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b domain.Record) int {
		av, aok := a.Lookup(path)
		bv, bok := b.Lookup(path)
		aok = aok && av.Kind != domain.KindNull
		bok = bok && bv.Kind != domain.KindNull
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c := compareValues(av, bv)
		if order == domain.SortDesc {
			return -c
		}
		return c
	})
	return out
}

func compareValues(a, b domain.Value) int {
	if a.Kind == domain.KindNumber && b.Kind == domain.KindNumber {
		af, aerr := a.Number.Float64()
		bf, berr := b.Number.Float64()
		if aerr == nil && berr == nil {
			return cmp.Compare(af, bf)
		}
	}
	if a.Kind == domain.KindBool && b.Kind == domain.KindBool {
		switch {
		case a.Bool == b.Bool:
			return 0
		case b.Bool:
			return -1
		}
		return 1
	}
	return cmp.Compare(strings.ToLower(a.Text()), strings.ToLower(b.Text()))
}
