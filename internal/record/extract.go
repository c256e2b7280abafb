package record

import (
	"errors"
	"fmt"
	"io"

	"patientbrief/internal/domain"

	"github.com/tidwall/gjson"
)

var ErrMalformedDocument = errors.New("malformed document")

// Stats counts what a single extraction pass saw.
type Stats struct {
	Entries int
	Skipped int
	ByKind  map[string]int
}

// Extract reads a FHIR Bundle from r and projects it into a summary.
func Extract(r io.Reader) (domain.PatientSummary, Stats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.PatientSummary{}, Stats{}, fmt.Errorf("read document: %w", err)
	}

	return ExtractBytes(data)
}

// ExtractBytes projects a FHIR Bundle into a summary in one pass over its
// entries. Only a document without a top-level entry array is an error;
// anything missing inside an entry becomes an absent field.
func ExtractBytes(data []byte) (domain.PatientSummary, Stats, error) {
	if !gjson.ValidBytes(data) {
		return domain.PatientSummary{}, Stats{}, fmt.Errorf("%w: invalid JSON", ErrMalformedDocument)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return domain.PatientSummary{}, Stats{}, fmt.Errorf("%w: document is not an object", ErrMalformedDocument)
	}

	entries := root.Get("entry")
	if !entries.IsArray() {
		return domain.PatientSummary{}, Stats{}, fmt.Errorf("%w: entry array is missing", ErrMalformedDocument)
	}

	summary := domain.NewPatientSummary()
	stats := Stats{ByKind: make(map[string]int)}

	entries.ForEach(func(_, entry gjson.Result) bool {
		stats.Entries++

		resource := entry.Get("resource")
		kind := resource.Get("resourceType")
		if !resource.IsObject() || kind.Type != gjson.String {
			stats.Skipped++
			return true
		}

		if !project(&summary, Kind(kind.Str), resource) {
			stats.Skipped++
			return true
		}

		stats.ByKind[kind.Str]++
		return true
	})

	return summary, stats, nil
}

func project(s *domain.PatientSummary, kind Kind, resource gjson.Result) bool {
	switch kind {
	case KindPatient:
		s.Patient = patient(resource)
	case KindCondition:
		s.Conditions = append(s.Conditions, condition(resource))
	case KindCarePlan:
		s.CarePlans = append(s.CarePlans, carePlan(resource))
	case KindEncounter:
		s.Encounters = append(s.Encounters, encounter(resource))
	case KindDiagnosticReport:
		s.DiagnosticReports = append(s.DiagnosticReports, diagnosticReport(resource))
	case KindObservation:
		s.Observations = append(s.Observations, observation(resource))
	case KindProcedure:
		s.Procedures = append(s.Procedures, procedure(resource))
	default:
		return false
	}

	return true
}
