package domain

import "time"

type Patient struct {
	Name      *string `json:"name,omitempty"`
	Gender    *string `json:"gender,omitempty"`
	BirthDate *string `json:"birthDate,omitempty"`
	Race      *string `json:"race,omitempty"`
	Ethnicity *string `json:"ethnicity,omitempty"`
	Address   *string `json:"address,omitempty"`
}

type Condition struct {
	Condition          *string `json:"condition"`
	ClinicalStatus     *string `json:"clinicalStatus"`
	VerificationStatus *string `json:"verificationStatus"`
	OnsetDateTime      *string `json:"onsetDateTime"`
}

type CarePlan struct {
	Plan   *string `json:"plan"`
	Status *string `json:"status"`
	Start  *string `json:"start"`
}

type Encounter struct {
	Type *string `json:"type"`
	Date *string `json:"date"`
}

type DiagnosticReport struct {
	Report            *string `json:"report"`
	EffectiveDateTime *string `json:"effectiveDateTime"`
}

type Observation struct {
	Observation       *string  `json:"observation"`
	Value             *float64 `json:"value"`
	Unit              *string  `json:"unit"`
	EffectiveDateTime *string  `json:"effectiveDateTime"`
}

type Procedure struct {
	Procedure         *string `json:"procedure"`
	Status            *string `json:"status"`
	PerformedDateTime *string `json:"performedDateTime"`
}

// PatientSummary is the flat projection of one clinical record.
type PatientSummary struct {
	Patient           Patient            `json:"patient_data"`
	Conditions        []Condition        `json:"conditions"`
	CarePlans         []CarePlan         `json:"care_plans"`
	Encounters        []Encounter        `json:"encounters"`
	DiagnosticReports []DiagnosticReport `json:"diagnostic_reports"`
	Observations      []Observation      `json:"observations"`
	Procedures        []Procedure        `json:"procedures"`
}

// NewPatientSummary returns a summary with empty, non-nil sequences.
func NewPatientSummary() PatientSummary {
	return PatientSummary{
		Conditions:        []Condition{},
		CarePlans:         []CarePlan{},
		Encounters:        []Encounter{},
		DiagnosticReports: []DiagnosticReport{},
		Observations:      []Observation{},
		Procedures:        []Procedure{},
	}
}

// ActiveConditions returns display labels of conditions whose clinical status
// is "active" or unknown, in document order and without duplicates.
func (s *PatientSummary) ActiveConditions() []string {
	seen := make(map[string]struct{})
	var labels []string

	for _, c := range s.Conditions {
		if c.Condition == nil || *c.Condition == "" {
			continue
		}
		if c.ClinicalStatus != nil && *c.ClinicalStatus != "active" {
			continue
		}
		if _, ok := seen[*c.Condition]; ok {
			continue
		}

		seen[*c.Condition] = struct{}{}
		labels = append(labels, *c.Condition)
	}

	return labels
}

type Narrative struct {
	TrialMatches string
	Report       string
	TrialLinks   []string
}

type Analysis struct {
	ID        string
	Source    string
	Summary   PatientSummary
	Narrative Narrative
	CreatedAt time.Time
}

type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is a content-free record of one analysis attempt.
type Run struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Status       RunStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
	EntryCount   int64     `json:"entry_count"`
	SkippedCount int64     `json:"skipped_count"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
