package launcher

import (
	"net/url"
	"strings"
	"testing"

	"github.com/recap-reports/recap/internal/aggregator"
)

func TestURLRoundTrip(t *testing.T) {
	jobText := aggregator.InstructionHeader +
		"MEETING: Weekly Sync\nCONTENT: Shipped X & Y, 100% done #milestone\n\n"

	full := URL("https://gemini.google.com/app", jobText)

	base, frag, ok := strings.Cut(full, "#")
	if !ok {
		t.Fatal("URL has no fragment")
	}
	if base != "https://gemini.google.com/app" {
		t.Errorf("base mangled: %q", base)
	}

	// The agent decodes with decodeURIComponent; PathUnescape accepts the
	// same encodings.
	decoded, err := url.PathUnescape(frag)
	if err != nil {
		t.Fatalf("fragment does not decode: %v", err)
	}
	if decoded != jobText {
		t.Errorf("round trip changed the job text:\ngot  %q\nwant %q", decoded, jobText)
	}
}

func TestURLFragmentSurvivesRecognition(t *testing.T) {
	jobText := aggregator.InstructionHeader + "MEETING: a\nCONTENT: b\n\n"
	full := URL("http://localhost/app", jobText)

	_, frag, _ := strings.Cut(full, "#")
	decoded, err := url.PathUnescape(frag)
	if err != nil {
		t.Fatalf("fragment does not decode: %v", err)
	}
	if !aggregator.IsJobText(decoded) {
		t.Error("decoded fragment no longer recognized as a job")
	}
}

func TestURLEscapesHashInJobText(t *testing.T) {
	full := URL("http://localhost/app", "before # after")
	if strings.Count(full, "#") != 1 {
		t.Errorf("job text hash leaked into the URL: %q", full)
	}
}
