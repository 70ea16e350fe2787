package normalize

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase", input: "HAMILTON", want: "hamilton"},
		{name: "punctuation to spaces", input: "Jazz @ The Loft!", want: "jazz the loft"},
		{name: "collapses whitespace", input: "  Night   Market  ", want: "night market"},
		{name: "unicode letters kept", input: "Café Nights", want: "café nights"},
		{name: "numbers kept", input: "Top 40 Countdown", want: "top 40 countdown"},
		{name: "empty", input: "   ", want: ""},
		{name: "only punctuation", input: "?!*", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tc.input); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestTitleNormalization(t *testing.T) {
	t.Parallel()

	n := New(0)
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "drops stop words", input: "The Phantom of the Opera", want: "phantom opera"},
		{name: "drops listing filler", input: "Tash Sultana Live in Concert", want: "tash sultana concert"},
		{name: "drops single characters", input: "A B C Festival", want: "festival"},
		{name: "identical after noise", input: "Hamilton - The Musical!!!", want: "hamilton musical"},
		{name: "all stop words", input: "The And Of", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := n.Title(tc.input); got != tc.want {
				t.Fatalf("Title(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestVenueNormalization(t *testing.T) {
	t.Parallel()

	n := New(0)
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "strips locality suffix", input: "Princess Theatre Melbourne", want: "princess"},
		{name: "strips stacked suffixes", input: "Forum Theatre Melbourne Victoria", want: "forum"},
		{name: "no suffix untouched", input: "The Tote", want: "the tote"},
		{name: "suffix only falls back", input: "Melbourne", want: "melbourne"},
		{name: "all suffixes falls back", input: "Arena Melbourne", want: "arena melbourne"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := n.Venue(tc.input); got != tc.want {
				t.Fatalf("Venue(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestVenueEquivalence(t *testing.T) {
	t.Parallel()

	n := New(0)
	if a, b := n.Venue("Princess Theatre Melbourne"), n.Venue("Princess Theatre"); a != b {
		t.Fatalf("expected equal venue keys, got %q and %q", a, b)
	}
}

func TestCacheCeilingClears(t *testing.T) {
	t.Parallel()

	cache := NewCache(3)
	cache.put("a", "1")
	cache.put("b", "2")
	cache.put("c", "3")
	if got := cache.Len(); got != 3 {
		t.Fatalf("expected 3 entries, got %d", got)
	}

	// The fourth insert crosses the ceiling and clears first.
	cache.put("d", "4")
	if got := cache.Len(); got != 1 {
		t.Fatalf("expected cache cleared to 1 entry, got %d", got)
	}
	if _, ok := cache.get("a"); ok {
		t.Fatalf("expected early entry to be evicted")
	}
	if value, ok := cache.get("d"); !ok || value != "4" {
		t.Fatalf("expected latest entry to survive, got %q ok=%t", value, ok)
	}
}

func TestCacheResult(t *testing.T) {
	t.Parallel()

	n := New(16)
	first := n.Title("The Phantom of the Opera")
	second := n.Title("The Phantom of the Opera")
	if first != second {
		t.Fatalf("cached result diverged: %q vs %q", first, second)
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	t.Parallel()

	var cache *Cache
	cache.put("a", "1")
	if _, ok := cache.get("a"); ok {
		t.Fatalf("nil cache should not store entries")
	}
	if cache.Len() != 0 {
		t.Fatalf("nil cache length should be 0")
	}
	cache.Reset()
}
