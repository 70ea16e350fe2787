package ingest

import (
	"strings"
	"testing"
)

func TestCleanText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "collapses spaces", input: "a   b\t c", want: "a b c"},
		{name: "keeps paragraphs", input: "first line\n\nsecond line", want: "first line\n\nsecond line"},
		{name: "windows line endings", input: "first\r\nsecond", want: "first\n\nsecond"},
		{name: "drops blank lines", input: "\n\n  \nonly\n \n", want: "only"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CleanText(tc.input); got != tc.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestStripTags(t *testing.T) {
	t.Parallel()

	got := CleanText(stripTags("<p>Hello <b>world</b></p>"))
	if got != "Hello world" {
		t.Fatalf("stripTags produced %q", got)
	}
}

func TestExtractDescription(t *testing.T) {
	t.Parallel()

	html := `<html><body><article>
		<p>Join a guided walk through the city's best laneway art, led by local artists who know every stencil and paste-up.</p>
		<p>Comfortable shoes recommended; the route covers about three kilometres of cobblestones and arcades.</p>
	</article></body></html>`

	text := ExtractDescription(html, "https://tours.example.com/laneway", "Laneway Art Walk")
	if text == "" {
		t.Fatalf("expected extracted text")
	}
	if !strings.Contains(text, "laneway art") {
		t.Fatalf("expected body text to survive extraction, got %q", text)
	}
	if strings.Contains(text, "<p>") {
		t.Fatalf("expected markup removed, got %q", text)
	}
}

func TestExtractDescriptionEmptyInput(t *testing.T) {
	t.Parallel()

	if got := ExtractDescription("   ", "", "Some Title"); got != "" {
		t.Fatalf("expected empty result for empty html, got %q", got)
	}
}
