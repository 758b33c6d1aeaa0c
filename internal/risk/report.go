package risk

import (
	"sort"
	"time"
)

// Factor is one named contributor to a risk score. Contribution is signed:
// positive increases risk, negative is protective. Evidence references the
// graph entities that triggered the factor; a factor with a non-zero
// contribution and no evidence is invalid model output.
type Factor struct {
	Name         string
	Contribution float64
	Evidence     []string
}

// Report is the explainable output of one scoring pass. Factors are ordered
// by absolute contribution, largest first.
type Report struct {
	PatientID    string
	Score        float64
	Factors      []Factor
	GeneratedAt  time.Time
	ModelVersion string
}

// SortFactors orders factors by absolute contribution descending, stable.
func SortFactors(factors []Factor) {
	sort.SliceStable(factors, func(i, j int) bool {
		return abs(factors[i].Contribution) > abs(factors[j].Contribution)
	})
}

// FactorByName returns the named factor, if present.
func (r *Report) FactorByName(name string) (Factor, bool) {
	for _, f := range r.Factors {
		if f.Name == name {
			return f, true
		}
	}
	return Factor{}, false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
