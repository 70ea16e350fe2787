package taxonomy

import "testing"

func TestCategoriesStable(t *testing.T) {
	t.Parallel()

	got := Categories()
	want := []string{"music", "theatre", "comedy", "arts", "family", "food-drink", "sport", "film", "community"}
	if len(got) != len(want) {
		t.Fatalf("expected %d categories, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("category %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestCategoryIndex(t *testing.T) {
	t.Parallel()

	if got := CategoryIndex("music"); got != 0 {
		t.Fatalf("expected music at index 0, got %d", got)
	}
	if got := CategoryIndex("  Theatre "); got != 1 {
		t.Fatalf("expected case-insensitive lookup, got %d", got)
	}
	if got := CategoryIndex("opera"); got != -1 {
		t.Fatalf("expected -1 for unknown category, got %d", got)
	}
}

func TestPairIndexMatchesFlattening(t *testing.T) {
	t.Parallel()

	pairs := Pairs()
	for i, pair := range pairs {
		if got := PairIndex(pair.Category, pair.Subcategory); got != i {
			t.Fatalf("pair %v: expected index %d, got %d", pair, i, got)
		}
	}
	if got := PairIndex("music", "Musicals"); got != -1 {
		t.Fatalf("expected -1 for subcategory outside its category, got %d", got)
	}
}

func TestIsSubcategory(t *testing.T) {
	t.Parallel()

	if !IsSubcategory("theatre", "musicals") {
		t.Fatalf("expected case-insensitive subcategory membership")
	}
	if IsSubcategory("comedy", "Jazz") {
		t.Fatalf("did not expect Jazz under comedy")
	}
}

func TestCanonicalCategory(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "known", raw: "Music", want: "music"},
		{name: "padded", raw: "  food-drink ", want: "food-drink"},
		{name: "unknown falls back", raw: "astronomy", want: Fallback},
		{name: "empty falls back", raw: "", want: Fallback},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CanonicalCategory(tc.raw); got != tc.want {
				t.Fatalf("CanonicalCategory(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestCanonicalSubcategory(t *testing.T) {
	t.Parallel()

	if got := CanonicalSubcategory("music", "hip hop"); got != "Hip Hop" {
		t.Fatalf("expected canonical casing Hip Hop, got %q", got)
	}
	if got := CanonicalSubcategory("music", "Screenings"); got != "" {
		t.Fatalf("expected empty for subcategory of another category, got %q", got)
	}
	if got := CanonicalSubcategory("unknown", "Rock"); got != "" {
		t.Fatalf("expected empty for unknown category, got %q", got)
	}
}

func TestSubcategoriesCopy(t *testing.T) {
	t.Parallel()

	subs := Subcategories("music")
	if len(subs) == 0 {
		t.Fatalf("expected music subcategories")
	}
	subs[0] = "mutated"
	if again := Subcategories("music"); again[0] == "mutated" {
		t.Fatalf("Subcategories must return a copy")
	}
}
