package sandbox

import (
	"fmt"
	"math"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

func newStatisticsModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "statistics",
		Members: starlark.StringDict{
			"mean":      statsFunc("mean", 1, mean),
			"fmean":     statsFunc("fmean", 1, mean),
			"median":    statsFunc("median", 1, median),
			"stdev":     statsFunc("stdev", 2, func(xs []float64) float64 { return math.Sqrt(variance(xs, 1)) }),
			"pstdev":    statsFunc("pstdev", 1, func(xs []float64) float64 { return math.Sqrt(variance(xs, 0)) }),
			"variance":  statsFunc("variance", 2, func(xs []float64) float64 { return variance(xs, 1) }),
			"pvariance": statsFunc("pvariance", 1, func(xs []float64) float64 { return variance(xs, 0) }),
			"mode":      starlark.NewBuiltin("mode", statsMode),
		},
	}
}

func statsFunc(name string, minPoints int, fn func([]float64) float64) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var data starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &data); err != nil {
			return nil, err
		}
		xs, err := floats(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		if len(xs) < minPoints {
			if minPoints == 1 {
				return nil, fmt.Errorf("%s requires at least one data point", b.Name())
			}
			return nil, fmt.Errorf("%s requires at least two data points", b.Name())
		}
		return starlark.Float(fn(xs)), nil
	})
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// variance is the sum of squared deviations divided by n minus ddof.
func variance(xs []float64, ddof int) float64 {
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return ss / float64(len(xs)-ddof)
}

// statsMode returns the most common element, preferring the first seen on
// ties. Elements need not be numbers.
func statsMode(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &data); err != nil {
		return nil, err
	}
	vals, err := iterValues(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s requires at least one data point", b.Name())
	}
	counts := starlark.NewDict(len(vals))
	var best starlark.Value
	bestN := 0
	for _, v := range vals {
		n := 1
		if cur, found, err := counts.Get(v); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		} else if found {
			_ = starlark.AsInt(cur, &n)
			n++
		}
		if err := counts.SetKey(v, starlark.MakeInt(n)); err != nil {
			return nil, err
		}
		if n > bestN {
			best, bestN = v, n
		}
	}
	return best, nil
}
