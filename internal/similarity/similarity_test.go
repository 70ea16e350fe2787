package similarity

import (
	"testing"
	"time"

	"horse.fit/whatson/internal/normalize"
)

func newNormalizer() *normalize.Normalizer {
	return normalize.New(0)
}

func TestBucketKey(t *testing.T) {
	t.Parallel()

	n := newNormalizer()
	cases := []struct {
		name  string
		title string
		want  string
	}{
		{name: "three tokens", title: "Melbourne International Comedy Festival Gala", want: "melbourne international comedy"},
		{name: "short title", title: "Hamilton", want: "hamilton"},
		{name: "stop words dropped first", title: "The Phantom of the Opera", want: "phantom opera"},
		{name: "empty title", title: "!!!", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := BucketKey(n, tc.title); got != tc.want {
				t.Fatalf("BucketKey(%q) = %q, want %q", tc.title, got, tc.want)
			}
		})
	}
}

func TestFirstTokenKey(t *testing.T) {
	t.Parallel()

	n := newNormalizer()
	if got := FirstTokenKey(n, "Hamilton - An American Musical"); got != "hamilton" {
		t.Fatalf("FirstTokenKey = %q, want %q", got, "hamilton")
	}
	if got := FirstTokenKey(n, "   "); got != "" {
		t.Fatalf("FirstTokenKey on blank = %q, want empty", got)
	}
}

func TestTitleSimilarity(t *testing.T) {
	t.Parallel()

	n := newNormalizer()

	if got := TitleSimilarity(n, "Hamilton", "HAMILTON!"); got != 1.0 {
		t.Fatalf("expected identical normalised titles to score 1.0, got %v", got)
	}
	if got := TitleSimilarity(n, "Hamilton", "Hamilton Musical"); got != 0.95 {
		t.Fatalf("expected substring titles to score 0.95, got %v", got)
	}

	related := TitleSimilarity(n, "Melbourne Jazz Festival", "Melbourne Jazz Festival Opening Night")
	unrelated := TitleSimilarity(n, "Melbourne Jazz Festival", "Quantum Computing Symposium")
	if related <= unrelated {
		t.Fatalf("expected related titles (%v) to outscore unrelated (%v)", related, unrelated)
	}
	if unrelated > 0.4 {
		t.Fatalf("expected unrelated titles to score low, got %v", unrelated)
	}

	if got := TitleSimilarity(n, "", "Hamilton"); got != 0 {
		t.Fatalf("expected empty title to score 0, got %v", got)
	}
}

func TestVenueSimilarity(t *testing.T) {
	t.Parallel()

	n := newNormalizer()
	if got := VenueSimilarity(n, "Princess Theatre Melbourne", "Princess Theatre"); got != 1.0 {
		t.Fatalf("expected suffix-stripped venues to score 1.0, got %v", got)
	}
	if got := VenueSimilarity(n, "The Corner Hotel", "Sidney Myer Music Bowl"); got >= 0.5 {
		t.Fatalf("expected different venues to score low, got %v", got)
	}
}

func TestSimilaritySymmetry(t *testing.T) {
	t.Parallel()

	n := newNormalizer()
	pairs := [][2]string{
		{"Hamilton", "Hamilton Musical"},
		{"Melbourne Jazz Festival", "Melb Jazz Fest"},
		{"Night Market", "Queen Vic Night Market"},
	}
	for _, pair := range pairs {
		ab := TitleSimilarity(n, pair[0], pair[1])
		ba := TitleSimilarity(n, pair[1], pair[0])
		if ab != ba {
			t.Fatalf("similarity not symmetric for %q/%q: %v vs %v", pair[0], pair[1], ab, ba)
		}
	}
}

func TestQuickReject(t *testing.T) {
	t.Parallel()

	n := newNormalizer()

	if QuickReject(n, "Hamilton", "HAMILTON", DefaultQuickRejectThreshold) {
		t.Fatalf("equal normalised titles must never be rejected")
	}
	if QuickReject(n, "Hamilton", "Hamilton Musical", DefaultQuickRejectThreshold) {
		t.Fatalf("substring titles must never be rejected")
	}
	if !QuickReject(n, "Hamilton", "Zzyzx", DefaultQuickRejectThreshold) {
		t.Fatalf("expected disjoint character sets to be rejected")
	}
}

// QuickReject is a heuristic; this sweep checks it never drops a pair the
// full comparison would have scored as a near-duplicate.
func TestQuickRejectNeverDropsStrongPairs(t *testing.T) {
	t.Parallel()

	n := newNormalizer()
	pairs := [][2]string{
		{"Hamilton", "Hamilton - An American Musical"},
		{"The Phantom of the Opera", "Phantom of the Opera 25th Anniversary"},
		{"Melbourne International Comedy Festival", "Melb International Comedy Festival"},
		{"St Kilda Festival", "St Kilda Festival 2026"},
		{"Midsumma Carnival", "Midsumma Carnival Opening"},
		{"White Night", "White Night Melbourne"},
		{"Moomba Festival", "Moomba"},
		{"NGV Friday Nights", "Friday Nights at NGV"},
	}

	for _, pair := range pairs {
		score := TitleSimilarity(n, pair[0], pair[1])
		if score < 0.78 {
			continue
		}
		if QuickReject(n, pair[0], pair[1], DefaultQuickRejectThreshold) {
			t.Fatalf("quick reject dropped %q/%q which scores %v", pair[0], pair[1], score)
		}
	}
}

func TestDateOverlap(t *testing.T) {
	t.Parallel()

	day := 24 * time.Hour
	base := time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC)
	end := base.Add(3 * day)

	cases := []struct {
		name   string
		start1 time.Time
		end1   *time.Time
		start2 time.Time
		end2   *time.Time
		want   float64
	}{
		{name: "same instant", start1: base, start2: base, want: 1.0},
		{name: "intersecting ranges", start1: base, end1: &end, start2: base.Add(day), want: 1.0},
		{name: "within window", start1: base, start2: base.Add(10 * day), want: 0.85},
		{name: "window boundary", start1: base, start2: base.Add(14 * day), want: 0.85},
		{name: "within double window", start1: base, start2: base.Add(20 * day), want: 0.5},
		{name: "beyond double window", start1: base, start2: base.Add(60 * day), want: 0},
		{name: "order independent", start1: base.Add(10 * day), start2: base, want: 0.85},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DateOverlap(tc.start1, tc.end1, tc.start2, tc.end2, DefaultDateWindow)
			if got != tc.want {
				t.Fatalf("DateOverlap = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDateOverlapEndBeforeStartIgnored(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC)
	bogus := base.Add(-48 * time.Hour)
	if got := DateOverlap(base, &bogus, base, nil, DefaultDateWindow); got != 1.0 {
		t.Fatalf("expected an end before start to collapse to the start, got %v", got)
	}
}
