package summarizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockElements = "p, div, li, tr, h1, h2, h3, h4, h5, h6, table, ul, ol, section, article"

var (
	codeFenceRe  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?```$")
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// CleanFragment turns completion text into an embeddable HTML fragment:
// Markdown code fences are stripped, full documents are unwrapped to their
// body and script/style elements are dropped. Plain text is returned trimmed.
func CleanFragment(text string) (string, error) {
	text = stripCodeFence(text)
	if !strings.Contains(text, "<") {
		return text, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}

	doc.Find("script, style").Remove()

	html, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render fragment: %w", err)
	}

	return strings.TrimSpace(html), nil
}

// PlainText renders an HTML fragment as readable plain text.
func PlainText(fragment string) (string, error) {
	fragment = strings.TrimSpace(fragment)
	if !strings.Contains(fragment, "<") {
		return fragment, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}

	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").PrependHtml("• ")
	doc.Find(blockElements).AppendHtml("\n")

	lines := strings.Split(doc.Find("body").Text(), "\n")
	for i := range lines {
		lines[i] = strings.Join(strings.Fields(lines[i]), " ")
	}

	text := blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")

	return strings.TrimSpace(text), nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)

	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	return text
}
