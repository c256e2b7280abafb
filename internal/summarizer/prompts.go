package summarizer

import "fmt"

const (
	PresetDefault = "default"
	PresetConcise = "concise"
)

//nolint:gochecknoglobals // Prompt presets meant to be immutable.
var (
	DefaultTemplates = Templates{
		TrialMatch: Template{
			System: `You help clinicians find clinical trials that fit a patient's profile.
Answer with well-formed HTML suitable for embedding in a web page.`,
			Instruction: "Find clinical trials that match this profile.",
		},
		Report: Template{
			System: `You read structured patient data and write it up as a clinical care report ready to be shared.
Answer with properly structured HTML suitable for embedding in a web page.`,
			Instruction: "Write the patient data up in a readable format.",
		},
	}

	ConciseTemplates = Templates{
		TrialMatch: Template{
			System: `You match patients to recruiting clinical trials.
List at most five trials with their registry identifier, title and one line on eligibility fit.
Answer with an HTML fragment (no <html> or <body> tags).`,
			Instruction: "List the best matching clinical trials for this patient.",
		},
		Report: Template{
			System: `You summarize patient records for busy clinicians.
Use short sections: demographics, active problems, recent encounters, key results, procedures.
Answer with an HTML fragment (no <html> or <body> tags).`,
			Instruction: "Summarize this patient record.",
		},
	}
)

// TemplatesForPreset resolves a configured preset name.
func TemplatesForPreset(preset string) (Templates, error) {
	switch preset {
	case "", PresetDefault:
		return DefaultTemplates, nil
	case PresetConcise:
		return ConciseTemplates, nil
	default:
		return Templates{}, fmt.Errorf("unknown prompt preset %q", preset)
	}
}
