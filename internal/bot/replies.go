package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"patientbrief/internal/domain"
	"patientbrief/internal/markdown"
	"patientbrief/internal/summarizer"
)

const (
	telegramMessageMaxLength = 4096
	absentValue              = "unknown"
)

func (b *Bot) sendAnalysis(ctx context.Context, chatID int64, result *domain.Analysis) error {
	var errs []error

	if err := b.sendMessageWithKeyboard(ctx, chatID, formatPatientBlock(result), nil); err != nil {
		errs = append(errs, fmt.Errorf("send patient block: %w", err))
	}

	sections := []struct {
		title    string
		fragment string
	}{
		{"📋 Clinical care report", result.Narrative.Report},
		{"🧪 Matched clinical trials", result.Narrative.TrialMatches},
	}

	for _, section := range sections {
		text, err := summarizer.PlainText(section.fragment)
		if err != nil {
			b.log.WarnContext(ctx, "Failed to render fragment as plain text",
				"error", err,
				"section", section.title)

			text = section.fragment
		}

		for _, message := range splitMessage(section.title+"\n\n"+text, telegramMessageMaxLength) {
			if err = b.sendPlainMessage(ctx, chatID, message); err != nil {
				errs = append(errs, fmt.Errorf("send %s: %w", section.title, err))
			}
		}
	}

	if len(result.Narrative.TrialLinks) > 0 {
		links := "🔗 Trial links\n\n" + strings.Join(result.Narrative.TrialLinks, "\n")
		for _, message := range splitMessage(links, telegramMessageMaxLength) {
			if err := b.sendPlainMessage(ctx, chatID, message); err != nil {
				errs = append(errs, fmt.Errorf("send trial links: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

func formatPatientBlock(result *domain.Analysis) string {
	p := result.Summary.Patient

	var message strings.Builder
	message.WriteString("🧾 " + markdown.Bold(result.Source) + "\n\n")

	fields := []struct {
		label string
		value *string
	}{
		{"Name", p.Name},
		{"Gender", p.Gender},
		{"Birth date", p.BirthDate},
		{"Race", p.Race},
		{"Ethnicity", p.Ethnicity},
		{"Address", p.Address},
	}

	for _, f := range fields {
		value := absentValue
		if f.value != nil {
			value = *f.value
		}

		message.WriteString(fmt.Sprintf("%s %s\n", markdown.Bold(f.label+":"), markdown.EscapeV2(value)))
	}

	if active := result.Summary.ActiveConditions(); len(active) > 0 {
		message.WriteString("\n" + markdown.Bold("Active conditions:") + "\n")
		for _, label := range active {
			message.WriteString("– " + markdown.EscapeV2(label) + "\n")
		}
	}

	counts := []struct {
		label string
		count int
	}{
		{"Conditions", len(result.Summary.Conditions)},
		{"Care plans", len(result.Summary.CarePlans)},
		{"Encounters", len(result.Summary.Encounters)},
		{"Diagnostic reports", len(result.Summary.DiagnosticReports)},
		{"Observations", len(result.Summary.Observations)},
		{"Procedures", len(result.Summary.Procedures)},
	}

	message.WriteString("\n")
	for _, c := range counts {
		message.WriteString(fmt.Sprintf("%s %s\n", markdown.Bold(c.label+":"), strconv.Itoa(c.count)))
	}

	message.WriteString("\n" + markdown.EscapeV2("Run: "+result.ID))

	return message.String()
}

// splitMessage splits text into chunks of at most limit UTF-16 code units,
// the unit Telegram measures message length in, preferring line boundaries.
func splitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var messages []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			messages = append(messages, chunk)
		}
		current.Reset()
		currentLen = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		lineLen := utf16Len(line)

		if currentLen+lineLen > limit {
			flush()
		}

		for lineLen > limit {
			var head string
			head, line = cutUTF16(line, limit)
			messages = append(messages, head)
			lineLen = utf16Len(line)
		}

		current.WriteString(line)
		currentLen += lineLen
	}

	flush()

	return messages
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// cutUTF16 splits s after at most limit code units without breaking a
// surrogate pair. The first rune is always kept so progress is guaranteed.
func cutUTF16(s string, limit int) (string, string) {
	n := 0
	for i, r := range s {
		n += utf16.RuneLen(r)
		if n > limit && i > 0 {
			return s[:i], s[i:]
		}
	}
	return s, ""
}
