package dedupe

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "strips scheme and www",
			raw:  "https://www.lafriche.org/events/nuit-electro",
			want: "lafriche.org/events/nuit-electro",
		},
		{
			name: "http and https normalize the same",
			raw:  "http://lafriche.org/events/nuit-electro/",
			want: "lafriche.org/events/nuit-electro",
		},
		{
			name: "drops utm parameters",
			raw:  "https://shotgun.live/e/42?utm_source=newsletter&utm_campaign=aout",
			want: "shotgun.live/e/42",
		},
		{
			name: "drops known tracking parameters",
			raw:  "https://example.org/e/42?fbclid=abc&ref=home",
			want: "example.org/e/42",
		},
		{
			name: "keeps and sorts identity parameters",
			raw:  "https://example.org/agenda?seance=2&id=42",
			want: "example.org/agenda?id=42&seance=2",
		},
		{
			name: "empty stays empty",
			raw:  "",
			want: "",
		},
		{
			name: "unparseable falls back to string cleanup",
			raw:  "www.example.org/e/42/",
			want: "example.org/e/42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.raw); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeURLEquivalence(t *testing.T) {
	variants := []string{
		"https://www.lafriche.org/events/nuit-electro",
		"http://lafriche.org/events/nuit-electro/",
		"https://lafriche.org/events/nuit-electro?utm_source=fb",
	}
	first := NormalizeURL(variants[0])
	for _, v := range variants[1:] {
		if got := NormalizeURL(v); got != first {
			t.Errorf("expected %q to normalize to %q, got %q", v, first, got)
		}
	}
}
