package sim

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"caregraph/internal/patient"
)

// MutationKind tags the closed set of supported hypothetical changes.
type MutationKind string

const (
	AddEventMutation           MutationKind = "add_event"
	RemoveEventMutation        MutationKind = "remove_event"
	ModifyEventMutation        MutationKind = "modify_event"
	AddInterventionMutation    MutationKind = "add_intervention"
	RemoveInterventionMutation MutationKind = "remove_intervention"
	AddSubstanceUseMutation    MutationKind = "add_substance_use"
	SetHousingStatusMutation   MutationKind = "set_housing_status"
	SetEmploymentMutation      MutationKind = "set_employment_status"
)

// Canonical event IDs for synthesized status events. A fixed ID makes the
// later of two same-kind mutations overwrite the earlier one.
const (
	housingStatusEventID    = "housing-status"
	employmentStatusEventID = "employment-status"

	metaHousingStatus    = "simulated_housing_status"
	metaEmploymentStatus = "simulated_employment_status"
)

// Mutation is a pure description of one hypothetical change. Applying it is
// a separate, deterministic operation: constructors capture timestamps and
// mint IDs, Apply never consults the clock.
type Mutation struct {
	Kind  MutationKind
	Label string

	Event        *patient.Event
	Intervention *patient.Intervention
	SubstanceUse *patient.SubstanceUseRecord
	TargetID     string

	// Payload for the synthesized status variants.
	Status      string
	Description string
	ImpactScore float64
	Date        time.Time
}

// Apply dispatches on the mutation kind and returns a new graph with the
// change merged in. The input graph is never modified.
func Apply(m Mutation, g *patient.ClinicalGraph) (*patient.ClinicalGraph, error) {
	if g == nil {
		return nil, fmt.Errorf("apply %s: graph is nil", m.Kind)
	}

	switch m.Kind {
	case AddEventMutation:
		if m.Event == nil {
			return nil, fmt.Errorf("apply %s: event payload is required", m.Kind)
		}
		return g.WithEvent(*m.Event)

	case RemoveEventMutation:
		if m.TargetID == "" {
			return nil, fmt.Errorf("apply %s: target id is required", m.Kind)
		}
		return g.WithoutEvent(m.TargetID)

	case ModifyEventMutation:
		if m.Event == nil {
			return nil, fmt.Errorf("apply %s: event payload is required", m.Kind)
		}
		return g.ReplaceEvent(*m.Event)

	case AddInterventionMutation:
		if m.Intervention == nil {
			return nil, fmt.Errorf("apply %s: intervention payload is required", m.Kind)
		}
		return g.WithIntervention(*m.Intervention)

	case RemoveInterventionMutation:
		if m.TargetID == "" {
			return nil, fmt.Errorf("apply %s: target id is required", m.Kind)
		}
		return g.WithoutIntervention(m.TargetID)

	case AddSubstanceUseMutation:
		if m.SubstanceUse == nil {
			return nil, fmt.Errorf("apply %s: substance use payload is required", m.Kind)
		}
		return g.WithSubstanceUse(*m.SubstanceUse)

	case SetHousingStatusMutation:
		return applyStatusEvent(g, m, housingStatusEventID, patient.EventHousingChange, metaHousingStatus)

	case SetEmploymentMutation:
		return applyStatusEvent(g, m, employmentStatusEventID, patient.EventJobChange, metaEmploymentStatus)

	default:
		return nil, fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
}

func applyStatusEvent(g *patient.ClinicalGraph, m Mutation, eventID string, eventType patient.EventType, metaKey string) (*patient.ClinicalGraph, error) {
	if m.Date.IsZero() {
		return nil, fmt.Errorf("apply %s: date is required", m.Kind)
	}
	event := patient.Event{
		ID:          eventID,
		Type:        eventType,
		Description: m.Description,
		Date:        m.Date,
		ImpactScore: m.ImpactScore,
	}

	var (
		out *patient.ClinicalGraph
		err error
	)
	if _, exists := g.EventByID(eventID); exists {
		out, err = g.ReplaceEvent(event)
	} else {
		out, err = g.WithEvent(event)
	}
	if err != nil {
		return nil, err
	}
	return out.WithMetadata(metaKey, m.Status), nil
}

// ApplyAll applies mutations left to right, each step feeding the next.
// An empty list is the identity mutation and returns the input graph.
func ApplyAll(mutations []Mutation, g *patient.ClinicalGraph) (*patient.ClinicalGraph, error) {
	current := g
	for i, m := range mutations {
		next, err := Apply(m, current)
		if err != nil {
			return nil, fmt.Errorf("mutation %d (%s): %w", i, m.Kind, err)
		}
		current = next
	}
	return current, nil
}

// AddEvent describes appending an event to the history.
func AddEvent(e patient.Event) Mutation {
	return Mutation{
		Kind:  AddEventMutation,
		Label: fmt.Sprintf("Add event %s", e.ID),
		Event: &e,
	}
}

// RemoveEvent describes removing the identified event.
func RemoveEvent(id string) Mutation {
	return Mutation{
		Kind:     RemoveEventMutation,
		Label:    fmt.Sprintf("Remove event %s", id),
		TargetID: id,
	}
}

// ModifyEvent describes replacing the event sharing the payload's ID.
func ModifyEvent(e patient.Event) Mutation {
	return Mutation{
		Kind:  ModifyEventMutation,
		Label: fmt.Sprintf("Modify event %s", e.ID),
		Event: &e,
	}
}

// AddIntervention describes adding an intervention to the plan.
func AddIntervention(iv patient.Intervention) Mutation {
	return Mutation{
		Kind:         AddInterventionMutation,
		Label:        fmt.Sprintf("Add intervention %s", iv.ID),
		Intervention: &iv,
	}
}

// RemoveIntervention describes withdrawing the identified intervention.
func RemoveIntervention(id string) Mutation {
	return Mutation{
		Kind:     RemoveInterventionMutation,
		Label:    fmt.Sprintf("Remove intervention %s", id),
		TargetID: id,
	}
}

// AddSubstanceUse describes recording a hypothetical use episode.
func AddSubstanceUse(r patient.SubstanceUseRecord) Mutation {
	return Mutation{
		Kind:         AddSubstanceUseMutation,
		Label:        fmt.Sprintf("Add substance use %s", r.ID),
		SubstanceUse: &r,
	}
}

// Clinical data is day-granular. Stamping synthesized entities at the start
// of the current day keeps them on the covered side of any reference time
// picked later the same day.
func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// SetHousingStatus describes a housing change, synthesized as a canonical
// housing event dated today.
func SetHousingStatus(status, description string, impact float64) Mutation {
	return Mutation{
		Kind:        SetHousingStatusMutation,
		Label:       fmt.Sprintf("Housing: %s", status),
		Status:      status,
		Description: description,
		ImpactScore: impact,
		Date:        today(),
	}
}

// StableHousing is the common "What if housing stabilizes?" scenario.
func StableHousing() Mutation {
	m := SetHousingStatus("stable", "Housing became stable (shelter or permanent residence)", 0.7)
	m.Label = "Stable Housing"
	return m
}

// Employment describes gaining or losing employment, synthesized as a
// canonical job event dated today.
func Employment(employed bool) Mutation {
	status, description, impact := "employed", "Patient gained employment", 0.6
	if !employed {
		status, description, impact = "unemployed", "Patient lost employment", -0.6
	}
	m := Mutation{
		Kind:        SetEmploymentMutation,
		Status:      status,
		Description: description,
		ImpactScore: impact,
		Date:        today(),
	}
	if employed {
		m.Label = "Employed"
	} else {
		m.Label = "Unemployed"
	}
	return m
}

// MATIntervention describes starting medication-assisted treatment.
func MATIntervention(medication string) Mutation {
	if medication == "" {
		medication = "buprenorphine"
	}
	iv := patient.Intervention{
		ID:            "sim-mat-" + uuid.NewString(),
		Type:          patient.InterventionMedication,
		Description:   fmt.Sprintf("Medication-Assisted Treatment (%s)", medication),
		StartDate:     today(),
		Effectiveness: 0.75,
	}
	m := AddIntervention(iv)
	m.Label = fmt.Sprintf("Start MAT (%s)", medication)
	return m
}
