package textutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and strips accents",
			input:    "La Criée",
			expected: "la criee",
		},
		{
			name:     "replaces hyphens and apostrophes",
			input:    "L'Œuvre — Vide-Grenier",
			expected: "l oeuvre vide grenier",
		},
		{
			name:     "collapses whitespace",
			input:    "  Espace   Julien  ",
			expected: "espace julien",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripArticles(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"la criee", "criee"},
		{"le cepac silo", "cepac silo"},
		{"les bernardines", "bernardines"},
		{"friche belle de mai", "friche belle de mai"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := StripArticles(tt.input); got != tt.expected {
			t.Errorf("StripArticles(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSlugify(t *testing.T) {
	if got := Slugify("Théâtre de la Criée"); got != "theatre-de-la-criee" {
		t.Errorf("Slugify = %q, want %q", got, "theatre-de-la-criee")
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{
			name: "identical after normalization",
			a:    "La Criée",
			b:    "la criee",
			min:  1.0,
			max:  1.0,
		},
		{
			name: "close titles score high",
			a:    "Concert Jazz au Silo",
			b:    "Concert Jazz au Silo !",
			min:  0.95,
			max:  1.0,
		},
		{
			name: "unrelated titles score low",
			a:    "Ballet contemporain",
			b:    "Marché aux poissons",
			min:  0.0,
			max:  0.4,
		},
		{
			name: "empty side scores zero",
			a:    "",
			b:    "quelque chose",
			min:  0.0,
			max:  0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("Similarity(%q, %q) = %.3f, want in [%.2f, %.2f]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}
