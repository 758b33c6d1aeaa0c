package ingest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"caregraph/internal/sim"
)

// MutationSpec is the external shape of one hypothetical change. Beyond the
// raw mutation kinds it accepts the shorthand kinds stable_housing,
// employed, unemployed, and start_mat, mapping them to the corresponding
// convenience constructors.
type MutationSpec struct {
	Kind        string   `yaml:"kind" json:"kind"`
	Status      string   `yaml:"status" json:"status,omitempty"`
	Description string   `yaml:"description" json:"description,omitempty"`
	ImpactScore *float64 `yaml:"impact_score" json:"impact_score,omitempty"`
	TargetID    string   `yaml:"target_id" json:"target_id,omitempty"`
	Medication  string   `yaml:"medication" json:"medication,omitempty"`

	Event        *EventSpec        `yaml:"event" json:"event,omitempty"`
	Intervention *InterventionSpec `yaml:"intervention" json:"intervention,omitempty"`
	SubstanceUse *UseSpec          `yaml:"substance_use" json:"substance_use,omitempty"`
}

type ScenarioSpec struct {
	Name      string         `yaml:"name" json:"name"`
	Mutations []MutationSpec `yaml:"mutations" json:"mutations"`
}

type scenarioFile struct {
	Scenarios []ScenarioSpec `yaml:"scenarios"`
}

func (s MutationSpec) ToMutation() (sim.Mutation, error) {
	switch strings.ToLower(s.Kind) {
	case "stable_housing":
		return sim.StableHousing(), nil

	case "employed":
		return sim.Employment(true), nil

	case "unemployed":
		return sim.Employment(false), nil

	case "start_mat":
		return sim.MATIntervention(s.Medication), nil

	case string(sim.SetHousingStatusMutation):
		if s.Status == "" {
			return sim.Mutation{}, fmt.Errorf("%s: status is required", s.Kind)
		}
		impact := 0.7
		if s.ImpactScore != nil {
			impact = *s.ImpactScore
		}
		description := s.Description
		if description == "" {
			description = fmt.Sprintf("Housing status changed to %s", s.Status)
		}
		return sim.SetHousingStatus(s.Status, description, impact), nil

	case string(sim.SetEmploymentMutation):
		switch s.Status {
		case "employed":
			return sim.Employment(true), nil
		case "unemployed":
			return sim.Employment(false), nil
		default:
			return sim.Mutation{}, fmt.Errorf("%s: status must be employed or unemployed", s.Kind)
		}

	case string(sim.AddEventMutation):
		if s.Event == nil {
			return sim.Mutation{}, fmt.Errorf("%s: event payload is required", s.Kind)
		}
		e, err := s.Event.ToEvent()
		if err != nil {
			return sim.Mutation{}, err
		}
		return sim.AddEvent(e), nil

	case string(sim.ModifyEventMutation):
		if s.Event == nil {
			return sim.Mutation{}, fmt.Errorf("%s: event payload is required", s.Kind)
		}
		e, err := s.Event.ToEvent()
		if err != nil {
			return sim.Mutation{}, err
		}
		return sim.ModifyEvent(e), nil

	case string(sim.RemoveEventMutation):
		if s.TargetID == "" {
			return sim.Mutation{}, fmt.Errorf("%s: target_id is required", s.Kind)
		}
		return sim.RemoveEvent(s.TargetID), nil

	case string(sim.AddInterventionMutation):
		if s.Intervention == nil {
			return sim.Mutation{}, fmt.Errorf("%s: intervention payload is required", s.Kind)
		}
		iv, err := s.Intervention.ToIntervention()
		if err != nil {
			return sim.Mutation{}, err
		}
		return sim.AddIntervention(iv), nil

	case string(sim.RemoveInterventionMutation):
		if s.TargetID == "" {
			return sim.Mutation{}, fmt.Errorf("%s: target_id is required", s.Kind)
		}
		return sim.RemoveIntervention(s.TargetID), nil

	case string(sim.AddSubstanceUseMutation):
		if s.SubstanceUse == nil {
			return sim.Mutation{}, fmt.Errorf("%s: substance_use payload is required", s.Kind)
		}
		r, err := s.SubstanceUse.ToRecord()
		if err != nil {
			return sim.Mutation{}, err
		}
		return sim.AddSubstanceUse(r), nil

	default:
		return sim.Mutation{}, fmt.Errorf("unknown mutation kind %q", s.Kind)
	}
}

// Scenarios converts specs into engine scenarios, preserving order.
func Scenarios(specs []ScenarioSpec) ([]sim.Scenario, error) {
	scenarios := make([]sim.Scenario, 0, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, fmt.Errorf("scenario name is required")
		}
		mutations := make([]sim.Mutation, 0, len(spec.Mutations))
		for _, mutationSpec := range spec.Mutations {
			m, err := mutationSpec.ToMutation()
			if err != nil {
				return nil, fmt.Errorf("scenario %q: %w", spec.Name, err)
			}
			mutations = append(mutations, m)
		}
		scenarios = append(scenarios, sim.Scenario{Name: spec.Name, Mutations: mutations})
	}
	return scenarios, nil
}

// ParseScenarioFile reads a scenario YAML file into engine scenarios.
func ParseScenarioFile(path string) ([]sim.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario file defines no scenarios")
	}
	return Scenarios(file.Scenarios)
}
