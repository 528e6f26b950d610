// Package signal converts raw enrichment values into normalized [0,1]
// credibility signals. Every normalizer is a pure function that returns an
// absent option when its validity precondition fails; it never substitutes a
// sentinel number.
package signal

import (
	"fmt"
	"math"

	"github.com/trackless/cred1/internal/model"
)

// SignalRangeError reports a raw enrichment value outside its documented
// range. The affected signal is treated as absent; one bad upstream value
// must not invalidate a domain's whole score.
type SignalRangeError struct {
	Signal string
	Value  float64
}

func (e *SignalRangeError) Error() string {
	return fmt.Sprintf("signal %s: value %g out of range", e.Signal, e.Value)
}

// Iffy passes the Iffy.news score through unchanged. Values outside [0,1]
// are a range error.
func Iffy(raw model.Option[float64]) (model.Option[float64], error) {
	v, ok := raw.Get()
	if !ok {
		return model.None[float64](), nil
	}
	if v < 0 || v > 1 {
		return model.None[float64](), &SignalRangeError{Signal: "iffy", Value: v}
	}
	return model.Some(v), nil
}

// Tranco maps a popularity rank onto [0,1] on a log scale: rank 1 scores 1.0
// and rank 1M scores 0.0. Ranks below 1 are a range error.
func Tranco(rank model.Option[int]) (model.Option[float64], error) {
	r, ok := rank.Get()
	if !ok {
		return model.None[float64](), nil
	}
	if r < 1 {
		return model.None[float64](), &SignalRangeError{Signal: "tranco", Value: float64(r)}
	}
	s := 1.0 - math.Log10(float64(r))/6.0
	return model.Some(clamp01(s)), nil
}

// Age maps registration age in years onto [0,1], saturating at 20 years.
// Negative ages are a range error.
func Age(years model.Option[float64]) (model.Option[float64], error) {
	y, ok := years.Get()
	if !ok {
		return model.None[float64](), nil
	}
	if y < 0 {
		return model.None[float64](), &SignalRangeError{Signal: "age", Value: y}
	}
	return model.Some(math.Min(1.0, y/20.0)), nil
}

// Factcheck maps a fact-check claim count onto [0,1]: heavily fact-checked
// domains score low. Zero claims is absence of evidence, not a signal, so it
// normalizes to absent rather than to a score. Negative counts are a range
// error.
func Factcheck(claims model.Option[int]) (model.Option[float64], error) {
	n, ok := claims.Get()
	if !ok {
		return model.None[float64](), nil
	}
	if n < 0 {
		return model.None[float64](), &SignalRangeError{Signal: "factcheck", Value: float64(n)}
	}
	if n == 0 {
		return model.None[float64](), nil
	}
	s := 1.0 - math.Log10(float64(n))/1.7
	return model.Some(clamp01(s)), nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
