package trials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"patientbrief/internal/domain"

	"github.com/mmcdole/gofeed"
)

const (
	ConditionPlaceholder = "{condition}"

	feedClientTimeout = 20 * time.Second
	maxConditions     = 3
	maxItemsPerFeed   = 5
	userAgent         = "patientbrief/1.0 (+registry listings)"
)

// Feed fetches recent registry listings for a patient's active conditions.
type Feed struct {
	urlTemplate string
	parser      *gofeed.Parser
	log         *slog.Logger
}

// New returns nil when urlTemplate is empty, which disables listings.
func New(urlTemplate string, log *slog.Logger) (*Feed, error) {
	urlTemplate = strings.TrimSpace(urlTemplate)
	if urlTemplate == "" {
		return nil, nil
	}

	if !strings.Contains(urlTemplate, ConditionPlaceholder) {
		return nil, fmt.Errorf("feed URL template has no %s placeholder", ConditionPlaceholder)
	}

	if _, err := url.Parse(strings.ReplaceAll(urlTemplate, ConditionPlaceholder, "x")); err != nil {
		return nil, fmt.Errorf("parse feed URL template: %w", err)
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: feedClientTimeout}
	parser.UserAgent = userAgent

	return &Feed{
		urlTemplate: urlTemplate,
		parser:      parser,
		log:         log,
	}, nil
}

// Listings renders up to maxItemsPerFeed entries for each of the first
// maxConditions active conditions. Listings gathered before a failure are
// returned together with the joined errors.
func (f *Feed) Listings(ctx context.Context, summary domain.PatientSummary) (string, error) {
	conditions := summary.ActiveConditions()
	if len(conditions) > maxConditions {
		conditions = conditions[:maxConditions]
	}

	var (
		b    strings.Builder
		errs []error
	)

	for _, condition := range conditions {
		feedURL := f.FeedURL(condition)

		parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse feed (condition = %s): %w", condition, err))
			continue
		}

		written := 0
		for _, item := range parsed.Items {
			if written == maxItemsPerFeed {
				break
			}

			title := strings.Join(strings.Fields(item.Title), " ")
			link := strings.TrimSpace(item.Link)
			if title == "" && link == "" {
				continue
			}

			fmt.Fprintf(&b, "- [%s] %s %s\n", condition, title, link)
			written++
		}

		f.log.DebugContext(ctx, "Registry listings are fetched",
			"feedURL", feedURL,
			"itemCount", len(parsed.Items),
			"writtenCount", written)
	}

	return strings.TrimSpace(b.String()), errors.Join(errs...)
}

func (f *Feed) FeedURL(condition string) string {
	return strings.ReplaceAll(f.urlTemplate, ConditionPlaceholder, url.QueryEscape(strings.TrimSpace(condition)))
}
