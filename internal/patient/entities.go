package patient

import "time"

type EventType string

const (
	EventJobChange          EventType = "job_change"
	EventHousingChange      EventType = "housing_change"
	EventRelationshipChange EventType = "relationship_change"
	EventTrauma             EventType = "trauma"
	EventLegal              EventType = "legal_event"
	EventMedical            EventType = "medical_event"
	EventOther              EventType = "other"
)

func (t EventType) Valid() bool {
	switch t {
	case EventJobChange, EventHousingChange, EventRelationshipChange,
		EventTrauma, EventLegal, EventMedical, EventOther:
		return true
	}
	return false
}

type SubstanceType string

const (
	SubstanceAlcohol         SubstanceType = "alcohol"
	SubstanceOpioids         SubstanceType = "opioids"
	SubstanceStimulants      SubstanceType = "stimulants"
	SubstanceCannabis        SubstanceType = "cannabis"
	SubstanceBenzodiazepines SubstanceType = "benzodiazepines"
	SubstanceOther           SubstanceType = "other"
)

func (t SubstanceType) Valid() bool {
	switch t {
	case SubstanceAlcohol, SubstanceOpioids, SubstanceStimulants,
		SubstanceCannabis, SubstanceBenzodiazepines, SubstanceOther:
		return true
	}
	return false
}

type UseStatus string

const (
	UseActive    UseStatus = "active_use"
	UseRelapse   UseStatus = "relapse"
	UseRemission UseStatus = "remission"
	UseRecovery  UseStatus = "recovery"
	UseUnknown   UseStatus = "unknown"
)

func (s UseStatus) Valid() bool {
	switch s {
	case UseActive, UseRelapse, UseRemission, UseRecovery, UseUnknown:
		return true
	}
	return false
}

type InterventionType string

const (
	InterventionMedication      InterventionType = "medication"
	InterventionTherapy         InterventionType = "therapy"
	InterventionSupportGroup    InterventionType = "support_group"
	InterventionHospitalization InterventionType = "hospitalization"
	InterventionOther           InterventionType = "other"
)

func (t InterventionType) Valid() bool {
	switch t {
	case InterventionMedication, InterventionTherapy, InterventionSupportGroup,
		InterventionHospitalization, InterventionOther:
		return true
	}
	return false
}

// Event is a discrete life event in the patient's history. ImpactScore is
// signed: negative values destabilize recovery, positive values support it.
type Event struct {
	ID          string
	Type        EventType
	Description string
	Date        time.Time
	ImpactScore float64
}

type SubstanceUseRecord struct {
	ID        string
	Substance SubstanceType
	Status    UseStatus
	Date      time.Time
	Severity  int
	Notes     string
}

type Intervention struct {
	ID            string
	Type          InterventionType
	Description   string
	StartDate     time.Time
	EndDate       *time.Time
	Effectiveness float64
}

// Active reports whether the intervention covers the given instant.
func (i Intervention) Active(at time.Time) bool {
	if i.StartDate.After(at) {
		return false
	}
	return i.EndDate == nil || !i.EndDate.Before(at)
}
