package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"patientbrief/internal/domain"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"
)

// ListingsProvider supplies optional registry context for the trial prompt.
type ListingsProvider interface {
	Listings(ctx context.Context, summary domain.PatientSummary) (string, error)
}

type NarratorConfig struct {
	Templates Templates
	Listings  ListingsProvider
}

// Narrator renders a summary into prompts and collects the two narrative texts.
type Narrator struct {
	completer Completer
	templates Templates
	listings  ListingsProvider
	log       *slog.Logger
}

func NewNarrator(completer Completer, cfg NarratorConfig, log *slog.Logger) (*Narrator, error) {
	if completer == nil {
		return nil, errors.New("completer is nil")
	}

	if cfg.Templates.TrialMatch.System == "" || cfg.Templates.Report.System == "" {
		return nil, errors.New("templates are incomplete")
	}

	return &Narrator{
		completer: completer,
		templates: cfg.Templates,
		listings:  cfg.Listings,
		log:       log,
	}, nil
}

// Summarize issues the trial-match and report requests concurrently. Either
// failure aborts both and no text is returned.
func (n *Narrator) Summarize(
	ctx context.Context,
	summary domain.PatientSummary,
) (domain.Narrative, error) {
	patientData, err := RenderPatientData(summary)
	if err != nil {
		return domain.Narrative{}, fmt.Errorf("render patient data: %w", err)
	}

	trialPrompt := BuildPrompt(patientData, n.templates.TrialMatch.Instruction, n.fetchListings(ctx, summary))
	reportPrompt := BuildPrompt(patientData, n.templates.Report.Instruction, "")

	var trialText, reportText string

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, completeErr := n.complete(gCtx, n.templates.TrialMatch.System, trialPrompt)
		if completeErr != nil {
			return fmt.Errorf("complete trial match: %w", completeErr)
		}

		trialText = text
		return nil
	})
	g.Go(func() error {
		text, completeErr := n.complete(gCtx, n.templates.Report.System, reportPrompt)
		if completeErr != nil {
			return fmt.Errorf("complete report: %w", completeErr)
		}

		reportText = text
		return nil
	})

	if err = g.Wait(); err != nil {
		return domain.Narrative{}, err
	}

	return domain.Narrative{
		TrialMatches: trialText,
		Report:       reportText,
		TrialLinks:   TrialLinks(trialText),
	}, nil
}

func (n *Narrator) complete(ctx context.Context, system string, prompt string) (string, error) {
	text, err := n.completer.Complete(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExternalService, err)
	}

	cleaned, err := CleanFragment(text)
	if err != nil {
		n.log.WarnContext(ctx, "Failed to clean completion fragment",
			"error", err,
			"textLen", len(text))

		return strings.TrimSpace(text), nil
	}

	return cleaned, nil
}

func (n *Narrator) fetchListings(ctx context.Context, summary domain.PatientSummary) string {
	if n.listings == nil {
		return ""
	}

	listings, err := n.listings.Listings(ctx, summary)
	listings = strings.TrimSpace(listings)
	if err != nil {
		n.log.WarnContext(ctx, "Failed to fetch some registry listings",
			"error", err,
			"conditionCount", len(summary.Conditions),
			"listingsLen", len(listings))
	}

	return listings
}

// RenderPatientData serializes a summary the way it is embedded into prompts.
func RenderPatientData(summary domain.PatientSummary) (string, error) {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(summary)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// BuildPrompt renders the user prompt for one request.
func BuildPrompt(patientData string, instruction string, listings string) string {
	b := strings.Builder{}
	b.WriteString("Patient data: ")
	b.WriteString(patientData)
	b.WriteString(". ")
	b.WriteString(strings.TrimSpace(instruction))

	if listings != "" {
		b.WriteString("\n\nRegistry listings:\n")
		b.WriteString(listings)
	}

	return b.String()
}
