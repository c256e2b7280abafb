package summarizer

import (
	"regexp"
	"strings"

	"mvdan.cc/xurls/v2"
)

const trialRegistryStudyURL = "https://clinicaltrials.gov/study/"

var nctIDRe = regexp.MustCompile(`\bNCT\d{8}\b`)

// TrialLinks collects URLs mentioned in trial-match text plus registry links
// for bare NCT identifiers, in order of first appearance.
func TrialLinks(text string) []string {
	var links []string
	seen := make(map[string]struct{})

	add := func(link string) {
		link = strings.TrimRight(strings.TrimSpace(link), ".,;:")
		if link == "" {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}

		seen[link] = struct{}{}
		links = append(links, link)
	}

	for _, u := range xurls.Strict().FindAllString(text, -1) {
		add(u)
	}

	for _, id := range nctIDRe.FindAllString(text, -1) {
		add(trialRegistryStudyURL + id)
	}

	return links
}
