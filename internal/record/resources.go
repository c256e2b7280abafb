package record

import (
	"math"

	"patientbrief/internal/domain"

	"github.com/tidwall/gjson"
)

type Kind string

const (
	KindPatient          Kind = "Patient"
	KindCondition        Kind = "Condition"
	KindCarePlan         Kind = "CarePlan"
	KindEncounter        Kind = "Encounter"
	KindDiagnosticReport Kind = "DiagnosticReport"
	KindObservation      Kind = "Observation"
	KindProcedure        Kind = "Procedure"
)

const (
	RaceExtensionURL      = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-race"
	EthnicityExtensionURL = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-ethnicity"

	codingDisplayPath    = "code.coding.0.display"
	extensionDisplayPath = "extension.0.valueCoding.display"
)

func patient(r gjson.Result) domain.Patient {
	p := domain.Patient{
		Name:      str(r, "name.0.family"),
		Gender:    str(r, "gender"),
		BirthDate: str(r, "birthDate"),
		Address:   str(r, "address.0.city"),
	}

	r.Get("extension").ForEach(func(_, ext gjson.Result) bool {
		switch url := ext.Get("url"); {
		case url.Type != gjson.String:
		case url.Str == RaceExtensionURL:
			p.Race = str(ext, extensionDisplayPath)
		case url.Str == EthnicityExtensionURL:
			p.Ethnicity = str(ext, extensionDisplayPath)
		}

		return true
	})

	return p
}

func condition(r gjson.Result) domain.Condition {
	return domain.Condition{
		Condition:          str(r, codingDisplayPath),
		ClinicalStatus:     str(r, "clinicalStatus.coding.0.code"),
		VerificationStatus: str(r, "verificationStatus.coding.0.code"),
		OnsetDateTime:      str(r, "onsetDateTime"),
	}
}

func carePlan(r gjson.Result) domain.CarePlan {
	return domain.CarePlan{
		Plan:   str(r, "activity.0.detail."+codingDisplayPath),
		Status: str(r, "status"),
		Start:  str(r, "period.start"),
	}
}

func encounter(r gjson.Result) domain.Encounter {
	return domain.Encounter{
		Type: str(r, "type.0.coding.0.display"),
		Date: str(r, "period.start"),
	}
}

func diagnosticReport(r gjson.Result) domain.DiagnosticReport {
	return domain.DiagnosticReport{
		Report:            str(r, codingDisplayPath),
		EffectiveDateTime: str(r, "effectiveDateTime"),
	}
}

func observation(r gjson.Result) domain.Observation {
	return domain.Observation{
		Observation:       str(r, codingDisplayPath),
		Value:             num(r, "valueQuantity.value"),
		Unit:              str(r, "valueQuantity.unit"),
		EffectiveDateTime: str(r, "effectiveDateTime"),
	}
}

func procedure(r gjson.Result) domain.Procedure {
	return domain.Procedure{
		Procedure:         str(r, codingDisplayPath),
		Status:            str(r, "status"),
		PerformedDateTime: str(r, "performedDateTime"),
	}
}

// str follows path and yields the string there, or nil when any step is
// missing or the final value is not a JSON string.
func str(r gjson.Result, path string) *string {
	v := r.Get(path)
	if v.Type != gjson.String {
		return nil
	}

	s := v.Str
	return &s
}

// num yields the finite number at path. Literals outside the float64 range
// resolve to absent so the summary stays serializable.
func num(r gjson.Result, path string) *float64 {
	v := r.Get(path)
	if v.Type != gjson.Number || math.IsInf(v.Num, 0) || math.IsNaN(v.Num) {
		return nil
	}

	f := v.Num
	return &f
}
