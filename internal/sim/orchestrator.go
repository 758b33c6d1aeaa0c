package sim

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"caregraph/internal/patient"
	"caregraph/internal/risk"
)

// BaselineScenarioName is the implicit zero-mutation entry included in
// every comparison.
const BaselineScenarioName = "Baseline"

// Result captures one simulated scenario against the baseline.
type Result struct {
	BaselineRisk   float64
	ModifiedRisk   float64
	Delta          float64
	BaselineReport *risk.Report
	ModifiedReport *risk.Report
	Graph          *patient.ClinicalGraph
	Mutations      []Mutation
	Explanation    string
}

// Scenario is a named mutation list evaluated against the baseline.
// Comparisons take an ordered slice rather than a map so that ranking ties
// resolve by submission order.
type Scenario struct {
	Name      string
	Mutations []Mutation
}

// Comparison is the outcome of evaluating several scenarios side by side.
// Ranked is ascending by modified risk; BestScenario is Ranked[0].
type Comparison struct {
	Results      map[string]*Result
	Ranked       []string
	BestScenario string
}

// Orchestrator drives mutations through a bound risk model against a fixed
// baseline. The baseline report is computed once and cached; every scenario
// works on its own copy of the baseline, so instances are safe for
// concurrent use and the original record is never touched.
type Orchestrator struct {
	baseline *patient.ClinicalGraph
	model    risk.Model
	opts     risk.Options

	baselineOnce   sync.Once
	baselineReport *risk.Report
	baselineErr    error
}

// NewOrchestrator binds a baseline graph to a model. When opts.AsOf is zero
// it is pinned to the current instant so that the baseline and every
// scenario share one reference time for recency windows.
func NewOrchestrator(baseline *patient.ClinicalGraph, model risk.Model, opts risk.Options) *Orchestrator {
	if opts.AsOf.IsZero() {
		opts.AsOf = time.Now().UTC()
	}
	return &Orchestrator{baseline: baseline, model: model, opts: opts}
}

// BaselineReport scores the baseline on first use and caches the report for
// the lifetime of the orchestrator.
func (o *Orchestrator) BaselineReport() (*risk.Report, error) {
	o.baselineOnce.Do(func() {
		o.baselineReport, o.baselineErr = o.model.CalculateRisk(o.baseline, o.opts)
	})
	return o.baselineReport, o.baselineErr
}

// Simulate applies the mutations to a copy of the baseline, scores the
// modified graph, and reports the risk delta with an explanation of which
// factors appeared, disappeared, or changed sign.
func (o *Orchestrator) Simulate(mutations ...Mutation) (*Result, error) {
	simModel, ok := o.model.(risk.SimulationModel)
	if !ok {
		return nil, &SimulationError{
			Reason: fmt.Sprintf("model %s does not support simulation", o.model.Version()),
		}
	}

	baseReport, err := o.BaselineReport()
	if err != nil {
		return nil, &SimulationError{Reason: "scoring baseline", Err: err}
	}

	modified, err := ApplyAll(mutations, o.baseline.Clone())
	if err != nil {
		return nil, &SimulationError{Reason: "applying mutations", Err: err}
	}

	delta, err := simModel.CalculateRiskDelta(o.baseline, modified, o.opts)
	if err != nil {
		return nil, &SimulationError{Reason: "scoring modified graph", Err: err}
	}

	// Delta is recomputed against the cached baseline so that every result
	// handed out by this orchestrator is consistent with every other.
	modReport := delta.Modified
	return &Result{
		BaselineRisk:   baseReport.Score,
		ModifiedRisk:   modReport.Score,
		Delta:          modReport.Score - baseReport.Score,
		BaselineReport: baseReport,
		ModifiedReport: modReport,
		Graph:          modified,
		Mutations:      mutations,
		Explanation:    explainChange(baseReport, modReport),
	}, nil
}

// CompareScenarios evaluates every scenario plus the implicit Baseline
// entry, in parallel. A single failing scenario fails the whole comparison;
// a partial ranking would misrepresent relative risk.
func (o *Orchestrator) CompareScenarios(ctx context.Context, scenarios []Scenario) (*Comparison, error) {
	all := make([]Scenario, 0, len(scenarios)+1)
	all = append(all, Scenario{Name: BaselineScenarioName})
	seen := map[string]struct{}{BaselineScenarioName: {}}
	for _, sc := range scenarios {
		if strings.TrimSpace(sc.Name) == "" {
			return nil, &SimulationError{Reason: "scenario name must not be empty"}
		}
		if _, dup := seen[sc.Name]; dup {
			return nil, &SimulationError{Scenario: sc.Name, Reason: "duplicate scenario name"}
		}
		seen[sc.Name] = struct{}{}
		all = append(all, sc)
	}

	results := make([]*Result, len(all))
	group, _ := errgroup.WithContext(ctx)
	for i, sc := range all {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := o.Simulate(sc.Mutations...)
			if err != nil {
				if simErr, ok := err.(*SimulationError); ok && simErr.Scenario == "" {
					simErr.Scenario = sc.Name
				}
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	order := make([]int, len(all))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return results[order[a]].ModifiedRisk < results[order[b]].ModifiedRisk
	})

	comparison := &Comparison{
		Results: make(map[string]*Result, len(all)),
		Ranked:  make([]string, 0, len(all)),
	}
	for _, idx := range order {
		comparison.Ranked = append(comparison.Ranked, all[idx].Name)
	}
	for i, sc := range all {
		comparison.Results[sc.Name] = results[i]
	}
	comparison.BestScenario = comparison.Ranked[0]
	return comparison, nil
}

func explainChange(baseline, modified *risk.Report) string {
	delta := modified.Score - baseline.Score

	var summary string
	switch {
	case delta > 0:
		summary = fmt.Sprintf("Risk increased by %.1f%%.", delta*100)
	case delta < 0:
		summary = fmt.Sprintf("Risk decreased by %.1f%%.", -delta*100)
	default:
		summary = "Risk unchanged."
	}

	var appeared, disappeared, flipped []string
	for _, f := range modified.Factors {
		base, ok := baseline.FactorByName(f.Name)
		switch {
		case !ok:
			appeared = append(appeared, f.Name)
		case base.Contribution*f.Contribution < 0:
			flipped = append(flipped, f.Name)
		}
	}
	for _, f := range baseline.Factors {
		if _, ok := modified.FactorByName(f.Name); !ok {
			disappeared = append(disappeared, f.Name)
		}
	}

	var parts []string
	if len(appeared) > 0 {
		parts = append(parts, "New factors: "+strings.Join(appeared, ", ")+".")
	}
	if len(disappeared) > 0 {
		parts = append(parts, "Removed factors: "+strings.Join(disappeared, ", ")+".")
	}
	if len(flipped) > 0 {
		parts = append(parts, "Factors that changed sign: "+strings.Join(flipped, ", ")+".")
	}
	if len(parts) == 0 {
		if delta == 0 {
			return summary
		}
		parts = append(parts, "Factor contributions changed.")
	}
	return summary + " " + strings.Join(parts, " ")
}
