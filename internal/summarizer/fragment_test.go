package summarizer_test

import (
	"testing"

	"patientbrief/internal/summarizer"
)

func TestCleanFragment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"Plain text is trimmed",
			"  No trials found.  ",
			"No trials found.",
		},
		{
			"Fragment is kept",
			"<h2>Summary</h2><p>Stable.</p>",
			"<h2>Summary</h2><p>Stable.</p>",
		},
		{
			"Code fence is stripped",
			"```html\n<ul><li>A</li></ul>\n```",
			"<ul><li>A</li></ul>",
		},
		{
			"Document is unwrapped",
			"<!DOCTYPE html><html><head><title>x</title><style>p{}</style></head><body><p>Body</p></body></html>",
			"<p>Body</p>",
		},
		{
			"Scripts are removed",
			"<p>Safe</p><script>alert(1)</script>",
			"<p>Safe</p>",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := summarizer.CleanFragment(test.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != test.want {
				t.Errorf("got %q want %q", got, test.want)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	in := "<h1>Care report</h1><p>Patient is <b>stable</b>.</p><ul><li>Diabetes</li><li>Anemia</li></ul>"

	got, err := summarizer.PlainText(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Care report\nPatient is stable.\n• Diabetes\n• Anemia"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestPlainTextWithoutMarkup(t *testing.T) {
	got, err := summarizer.PlainText("  just text ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "just text" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestTrialLinks(t *testing.T) {
	text := `<p>Consider <a href="https://clinicaltrials.gov/study/NCT04280705">NCT04280705</a>,
also NCT01234567; details at https://example.org/trials/42.</p>`

	got := summarizer.TrialLinks(text)
	want := []string{
		"https://clinicaltrials.gov/study/NCT04280705",
		"https://example.org/trials/42",
		"https://clinicaltrials.gov/study/NCT01234567",
	}

	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("link %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestTrialLinksEmpty(t *testing.T) {
	if got := summarizer.TrialLinks("No matching trials."); len(got) != 0 {
		t.Fatalf("expected no links, got %v", got)
	}
}
