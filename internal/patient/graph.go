package patient

import (
	"sort"
	"time"
)

// ClinicalGraph is the longitudinal clinical record for one patient. It is
// immutable once constructed: accessors return copies and every derivation
// method builds a new graph, so a baseline handed to the simulation layer
// can never be corrupted by a scenario.
type ClinicalGraph struct {
	patientID     string
	createdAt     time.Time
	events        []Event
	substanceUse  []SubstanceUseRecord
	interventions []Intervention
	metadata      map[string]string
}

// New validates the supplied entities and constructs a graph timestamped at
// the current instant.
func New(patientID string, events []Event, uses []SubstanceUseRecord, interventions []Intervention) (*ClinicalGraph, error) {
	return NewAt(patientID, time.Now(), events, uses, interventions)
}

// NewAt is New with an explicit construction time, used when rehydrating a
// stored graph. All entity dates must be non-future relative to createdAt;
// an intervention end date is the planned end and may lie ahead of it.
func NewAt(patientID string, createdAt time.Time, events []Event, uses []SubstanceUseRecord, interventions []Intervention) (*ClinicalGraph, error) {
	if patientID == "" {
		return nil, validationErrorf("patient_id", "must not be empty")
	}
	if createdAt.IsZero() {
		return nil, validationErrorf("created_at", "must not be zero")
	}
	createdAt = createdAt.UTC()

	g := &ClinicalGraph{
		patientID:     patientID,
		createdAt:     createdAt,
		events:        make([]Event, 0, len(events)),
		substanceUse:  make([]SubstanceUseRecord, 0, len(uses)),
		interventions: make([]Intervention, 0, len(interventions)),
	}

	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if err := validateEvent(e, createdAt); err != nil {
			return nil, err
		}
		if _, dup := seen[e.ID]; dup {
			return nil, validationErrorf("events", "duplicate event id %q", e.ID)
		}
		seen[e.ID] = struct{}{}
		e.Date = e.Date.UTC()
		g.events = append(g.events, e)
	}

	seen = make(map[string]struct{}, len(uses))
	for _, r := range uses {
		if err := validateSubstanceUse(r, createdAt); err != nil {
			return nil, err
		}
		if _, dup := seen[r.ID]; dup {
			return nil, validationErrorf("substance_use", "duplicate record id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		r.Date = r.Date.UTC()
		g.substanceUse = append(g.substanceUse, r)
	}

	seen = make(map[string]struct{}, len(interventions))
	for _, iv := range interventions {
		if err := validateIntervention(iv, createdAt); err != nil {
			return nil, err
		}
		if _, dup := seen[iv.ID]; dup {
			return nil, validationErrorf("interventions", "duplicate intervention id %q", iv.ID)
		}
		seen[iv.ID] = struct{}{}
		iv.StartDate = iv.StartDate.UTC()
		if iv.EndDate != nil {
			end := iv.EndDate.UTC()
			iv.EndDate = &end
		}
		g.interventions = append(g.interventions, iv)
	}

	sort.SliceStable(g.events, func(i, j int) bool { return g.events[i].Date.Before(g.events[j].Date) })
	sort.SliceStable(g.substanceUse, func(i, j int) bool { return g.substanceUse[i].Date.Before(g.substanceUse[j].Date) })
	sort.SliceStable(g.interventions, func(i, j int) bool {
		return g.interventions[i].StartDate.Before(g.interventions[j].StartDate)
	})

	return g, nil
}

func validateEvent(e Event, createdAt time.Time) error {
	if e.ID == "" {
		return validationErrorf("events", "event id must not be empty")
	}
	if !e.Type.Valid() {
		return validationErrorf("events", "event %q has unknown type %q", e.ID, e.Type)
	}
	if e.Date.IsZero() {
		return validationErrorf("events", "event %q has no date", e.ID)
	}
	if e.Date.After(createdAt) {
		return validationErrorf("events", "event %q is dated in the future (%s)", e.ID, e.Date.UTC().Format(time.RFC3339))
	}
	if e.ImpactScore < -1.0 || e.ImpactScore > 1.0 {
		return validationErrorf("events", "event %q impact score %v outside [-1, 1]", e.ID, e.ImpactScore)
	}
	return nil
}

func validateSubstanceUse(r SubstanceUseRecord, createdAt time.Time) error {
	if r.ID == "" {
		return validationErrorf("substance_use", "record id must not be empty")
	}
	if !r.Substance.Valid() {
		return validationErrorf("substance_use", "record %q has unknown substance %q", r.ID, r.Substance)
	}
	if !r.Status.Valid() {
		return validationErrorf("substance_use", "record %q has unknown status %q", r.ID, r.Status)
	}
	if r.Date.IsZero() {
		return validationErrorf("substance_use", "record %q has no date", r.ID)
	}
	if r.Date.After(createdAt) {
		return validationErrorf("substance_use", "record %q is dated in the future", r.ID)
	}
	if r.Severity != 0 && (r.Severity < 1 || r.Severity > 10) {
		return validationErrorf("substance_use", "record %q severity %d outside [1, 10]", r.ID, r.Severity)
	}
	return nil
}

func validateIntervention(iv Intervention, createdAt time.Time) error {
	if iv.ID == "" {
		return validationErrorf("interventions", "intervention id must not be empty")
	}
	if !iv.Type.Valid() {
		return validationErrorf("interventions", "intervention %q has unknown type %q", iv.ID, iv.Type)
	}
	if iv.StartDate.IsZero() {
		return validationErrorf("interventions", "intervention %q has no start date", iv.ID)
	}
	if iv.StartDate.After(createdAt) {
		return validationErrorf("interventions", "intervention %q starts in the future", iv.ID)
	}
	if iv.EndDate != nil && iv.EndDate.Before(iv.StartDate) {
		return validationErrorf("interventions", "intervention %q ends before it starts", iv.ID)
	}
	if iv.Effectiveness < 0.0 || iv.Effectiveness > 1.0 {
		return validationErrorf("interventions", "intervention %q effectiveness %v outside [0, 1]", iv.ID, iv.Effectiveness)
	}
	return nil
}

func (g *ClinicalGraph) PatientID() string    { return g.patientID }
func (g *ClinicalGraph) CreatedAt() time.Time { return g.createdAt }

func (g *ClinicalGraph) Events() []Event {
	return append([]Event(nil), g.events...)
}

func (g *ClinicalGraph) SubstanceUse() []SubstanceUseRecord {
	return append([]SubstanceUseRecord(nil), g.substanceUse...)
}

func (g *ClinicalGraph) Interventions() []Intervention {
	out := make([]Intervention, len(g.interventions))
	for i, iv := range g.interventions {
		out[i] = copyIntervention(iv)
	}
	return out
}

func (g *ClinicalGraph) Metadata() map[string]string {
	out := make(map[string]string, len(g.metadata))
	for k, v := range g.metadata {
		out[k] = v
	}
	return out
}

func (g *ClinicalGraph) MetadataValue(key string) (string, bool) {
	v, ok := g.metadata[key]
	return v, ok
}

func (g *ClinicalGraph) EventByID(id string) (Event, bool) {
	for _, e := range g.events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

func (g *ClinicalGraph) SubstanceUseByID(id string) (SubstanceUseRecord, bool) {
	for _, r := range g.substanceUse {
		if r.ID == id {
			return r, true
		}
	}
	return SubstanceUseRecord{}, false
}

func (g *ClinicalGraph) InterventionByID(id string) (Intervention, bool) {
	for _, iv := range g.interventions {
		if iv.ID == id {
			return copyIntervention(iv), true
		}
	}
	return Intervention{}, false
}

// NodeIDs returns the identifiers of every entity in the graph.
func (g *ClinicalGraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.events)+len(g.substanceUse)+len(g.interventions))
	for _, e := range g.events {
		ids = append(ids, e.ID)
	}
	for _, r := range g.substanceUse {
		ids = append(ids, r.ID)
	}
	for _, iv := range g.interventions {
		ids = append(ids, iv.ID)
	}
	return ids
}

func (g *ClinicalGraph) Clone() *ClinicalGraph {
	clone := &ClinicalGraph{
		patientID:     g.patientID,
		createdAt:     g.createdAt,
		events:        append([]Event(nil), g.events...),
		substanceUse:  append([]SubstanceUseRecord(nil), g.substanceUse...),
		interventions: g.Interventions(),
	}
	if g.metadata != nil {
		clone.metadata = g.Metadata()
	}
	return clone
}

// Equal reports structural equality: same patient, same entities, same
// metadata. Construction times are not compared.
func (g *ClinicalGraph) Equal(other *ClinicalGraph) bool {
	if other == nil || g.patientID != other.patientID {
		return false
	}
	if len(g.events) != len(other.events) ||
		len(g.substanceUse) != len(other.substanceUse) ||
		len(g.interventions) != len(other.interventions) ||
		len(g.metadata) != len(other.metadata) {
		return false
	}
	for i, e := range g.events {
		o := other.events[i]
		if e.ID != o.ID || e.Type != o.Type || e.Description != o.Description ||
			!e.Date.Equal(o.Date) || e.ImpactScore != o.ImpactScore {
			return false
		}
	}
	for i, r := range g.substanceUse {
		o := other.substanceUse[i]
		if r.ID != o.ID || r.Substance != o.Substance || r.Status != o.Status ||
			!r.Date.Equal(o.Date) || r.Severity != o.Severity || r.Notes != o.Notes {
			return false
		}
	}
	for i, iv := range g.interventions {
		o := other.interventions[i]
		if iv.ID != o.ID || iv.Type != o.Type || iv.Description != o.Description ||
			!iv.StartDate.Equal(o.StartDate) || iv.Effectiveness != o.Effectiveness {
			return false
		}
		if (iv.EndDate == nil) != (o.EndDate == nil) {
			return false
		}
		if iv.EndDate != nil && !iv.EndDate.Equal(*o.EndDate) {
			return false
		}
	}
	for k, v := range g.metadata {
		if ov, ok := other.metadata[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func copyIntervention(iv Intervention) Intervention {
	if iv.EndDate != nil {
		end := *iv.EndDate
		iv.EndDate = &end
	}
	return iv
}

// derive rebuilds the graph from modified entity sets, revalidating
// everything. The construction time advances to cover entity dates that
// post-date the source graph, which keeps derivation deterministic without
// consulting the wall clock.
func (g *ClinicalGraph) derive(events []Event, uses []SubstanceUseRecord, interventions []Intervention) (*ClinicalGraph, error) {
	createdAt := g.createdAt
	for _, e := range events {
		if e.Date.After(createdAt) {
			createdAt = e.Date
		}
	}
	for _, r := range uses {
		if r.Date.After(createdAt) {
			createdAt = r.Date
		}
	}
	for _, iv := range interventions {
		if iv.StartDate.After(createdAt) {
			createdAt = iv.StartDate
		}
	}

	derived, err := NewAt(g.patientID, createdAt, events, uses, interventions)
	if err != nil {
		return nil, err
	}
	if g.metadata != nil {
		derived.metadata = g.Metadata()
	}
	return derived, nil
}

// WithEvent returns a new graph with the event appended.
func (g *ClinicalGraph) WithEvent(e Event) (*ClinicalGraph, error) {
	return g.derive(append(g.Events(), e), g.substanceUse, g.interventions)
}

// ReplaceEvent returns a new graph with the event of the same ID replaced.
func (g *ClinicalGraph) ReplaceEvent(e Event) (*ClinicalGraph, error) {
	events := g.Events()
	found := false
	for i := range events {
		if events[i].ID == e.ID {
			events[i] = e
			found = true
			break
		}
	}
	if !found {
		return nil, validationErrorf("events", "no event with id %q", e.ID)
	}
	return g.derive(events, g.substanceUse, g.interventions)
}

// WithoutEvent returns a new graph with the identified event removed.
func (g *ClinicalGraph) WithoutEvent(id string) (*ClinicalGraph, error) {
	events := g.Events()
	kept := events[:0]
	found := false
	for _, e := range events {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return nil, validationErrorf("events", "no event with id %q", id)
	}
	return g.derive(kept, g.substanceUse, g.interventions)
}

// WithSubstanceUse returns a new graph with the record appended.
func (g *ClinicalGraph) WithSubstanceUse(r SubstanceUseRecord) (*ClinicalGraph, error) {
	return g.derive(g.events, append(g.SubstanceUse(), r), g.interventions)
}

// WithIntervention returns a new graph with the intervention appended.
func (g *ClinicalGraph) WithIntervention(iv Intervention) (*ClinicalGraph, error) {
	return g.derive(g.events, g.substanceUse, append(g.Interventions(), iv))
}

// WithoutIntervention returns a new graph with the identified intervention
// removed.
func (g *ClinicalGraph) WithoutIntervention(id string) (*ClinicalGraph, error) {
	interventions := g.Interventions()
	kept := interventions[:0]
	found := false
	for _, iv := range interventions {
		if iv.ID == id {
			found = true
			continue
		}
		kept = append(kept, iv)
	}
	if !found {
		return nil, validationErrorf("interventions", "no intervention with id %q", id)
	}
	return g.derive(g.events, g.substanceUse, kept)
}

// WithMetadata returns a new graph with the key set.
func (g *ClinicalGraph) WithMetadata(key, value string) *ClinicalGraph {
	clone := g.Clone()
	if clone.metadata == nil {
		clone.metadata = make(map[string]string, 1)
	}
	clone.metadata[key] = value
	return clone
}
