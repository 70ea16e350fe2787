package ingest

import (
	"bytes"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
)

// fallbackBaseURL anchors relative links when a listing carries HTML but no
// usable booking URL.
const fallbackBaseURL = "https://listings.invalid/"

// ExtractDescription renders scraper-supplied listing HTML into plain
// readable text. Falls back to the title when nothing useful survives
// extraction; returns "" only for empty input.
func ExtractDescription(descriptionHTML, bookingURL, title string) string {
	html := strings.TrimSpace(descriptionHTML)
	if html == "" {
		return ""
	}

	base, err := url.Parse(strings.TrimSpace(bookingURL))
	if err != nil || base.Host == "" {
		base, _ = url.Parse(fallbackBaseURL)
	}

	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return CleanText(stripTags(html))
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return CleanText(stripTags(html))
	}

	text := CleanText(rendered.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	if text == "" {
		text = strings.TrimSpace(title)
	}
	return text
}

// CleanText normalises line endings and collapses in-line whitespace,
// keeping paragraph breaks.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}

// stripTags is the crude fallback when readability cannot parse the
// fragment: drop everything between angle brackets.
func stripTags(html string) string {
	var b strings.Builder
	b.Grow(len(html))
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
