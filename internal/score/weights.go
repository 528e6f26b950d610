package score

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Weights holds the blend weights for the composite score. Category is the
// anchor signal: weight left unused by absent signals is redistributed to it.
type Weights struct {
	Cat       float64 `yaml:"cat" mapstructure:"cat"`
	Iffy      float64 `yaml:"iffy" mapstructure:"iffy"`
	Factcheck float64 `yaml:"factcheck" mapstructure:"factcheck"`
	Tranco    float64 `yaml:"tranco" mapstructure:"tranco"`
	Age       float64 `yaml:"age" mapstructure:"age"`
}

// DefaultWeights returns the standard blend. The weights sum to 0.90; the
// remaining 0.10 reaches the category signal through weight redistribution.
func DefaultWeights() Weights {
	return Weights{
		Cat:       0.50,
		Iffy:      0.15,
		Factcheck: 0.15,
		Tranco:    0.05,
		Age:       0.05,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Cat + w.Iffy + w.Factcheck + w.Tranco + w.Age
}

// Validate checks that the weights are internally consistent: non-negative,
// with a positive category weight (the fill target must exist), and summing
// to at most 1 so the redistributed fill weight is never negative.
func (w Weights) Validate() error {
	var errs []string

	named := map[string]float64{
		"cat":       w.Cat,
		"iffy":      w.Iffy,
		"factcheck": w.Factcheck,
		"tranco":    w.Tranco,
		"age":       w.Age,
	}
	for name, v := range named {
		if v < 0 {
			errs = append(errs, name+" must be >= 0")
		}
	}

	if w.Cat <= 0 {
		errs = append(errs, "cat must be > 0")
	}
	if w.Sum() > 1.0+1e-9 {
		errs = append(errs, "weights must sum to at most 1.0")
	}

	if len(errs) > 0 {
		return eris.Errorf("score: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
