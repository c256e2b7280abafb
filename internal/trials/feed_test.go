package trials_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"patientbrief/internal/domain"
	"patientbrief/internal/trials"
)

const diabetesFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Recruiting studies</title>
    <item><title>Insulin   pump study</title><link>https://clinicaltrials.gov/study/NCT00000001</link></item>
    <item><title>Diet study</title><link>https://clinicaltrials.gov/study/NCT00000002</link></item>
  </channel>
</rss>`

func summaryWithConditions(conditions ...domain.Condition) domain.PatientSummary {
	s := domain.NewPatientSummary()
	s.Conditions = append(s.Conditions, conditions...)

	return s
}

func TestNewDisabledWithoutTemplate(t *testing.T) {
	f, err := trials.New("  ", slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f != nil {
		t.Fatalf("expected nil feed when template is empty")
	}
}

func TestNewRequiresPlaceholder(t *testing.T) {
	if _, err := trials.New("https://example.org/rss", slog.Default()); err == nil {
		t.Fatalf("expected error for template without placeholder")
	}
}

func TestFeedURLEscapesCondition(t *testing.T) {
	f, err := trials.New("https://example.org/rss?cond={condition}&recrs=a", slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := f.FeedURL(" Diabetes mellitus type 2 (disorder) ")
	want := "https://example.org/rss?cond=Diabetes+mellitus+type+2+%28disorder%29&recrs=a"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFeedListings(t *testing.T) {
	var queried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cond := r.URL.Query().Get("cond")
		queried = append(queried, cond)

		if cond == "Anemia" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, diabetesFeed)
	}))
	defer srv.Close()

	f, err := trials.New(srv.URL+"/rss?cond={condition}", slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary := summaryWithConditions(
		domain.Condition{Condition: domain.Ptr("Diabetes"), ClinicalStatus: domain.Ptr("active")},
		domain.Condition{Condition: domain.Ptr("Fracture"), ClinicalStatus: domain.Ptr("resolved")},
		domain.Condition{Condition: domain.Ptr("Anemia")},
		domain.Condition{Condition: domain.Ptr("Diabetes"), ClinicalStatus: domain.Ptr("active")},
	)

	listings, err := f.Listings(context.Background(), summary)
	if err == nil {
		t.Fatalf("expected error for failing condition feed")
	}

	if strings.Join(queried, ",") != "Diabetes,Anemia" {
		t.Fatalf("unexpected queried conditions: %v", queried)
	}

	want := "- [Diabetes] Insulin pump study https://clinicaltrials.gov/study/NCT00000001\n" +
		"- [Diabetes] Diet study https://clinicaltrials.gov/study/NCT00000002"
	if listings != want {
		t.Fatalf("got %q want %q", listings, want)
	}
}

func TestFeedListingsWithoutConditions(t *testing.T) {
	f, err := trials.New("https://example.invalid/rss?cond={condition}", slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	listings, err := f.Listings(context.Background(), domain.NewPatientSummary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if listings != "" {
		t.Fatalf("expected empty listings, got %q", listings)
	}
}
