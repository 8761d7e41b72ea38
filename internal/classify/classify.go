// Package classify assigns each accepted candidate exactly one
// canonical category. A per-source raw-category mapping wins when it
// applies; otherwise keyword scoring over name and description decides,
// with ties broken by the fixed category priority order. What happens
// when nothing matches is an explicit, logged policy: assign the
// configured catch-all or reject the record.
package classify

import (
	"fmt"
	"strings"

	"github.com/massalia/agenda/internal/config"
	"github.com/massalia/agenda/internal/event"
	"github.com/massalia/agenda/internal/textutil"
)

// Weights for keyword hits. A match in the name is a stronger signal
// than one buried in the description.
const (
	nameWeight = 2.0
	descWeight = 1.0
)

// defaultKeywords is the built-in keyword-to-category table (French),
// extended but never replaced by configuration.
var defaultKeywords = map[string][]string{
	event.CategoryDanse: {
		"danse", "ballet", "chorégraphie", "hip-hop", "hip hop",
		"flamenco", "tango", "salsa", "breakdance", "modern jazz",
		"danseur", "danseuse", "bal",
	},
	event.CategoryMusique: {
		"concert", "musique", "music", "jazz", "rock", "électro",
		"techno", "house", "orchestre", "chanson", "rap", "dj set", "dj",
		"symphonie", "opéra", "chorale", "récital", "philharmonique",
		"acoustique", "unplugged",
	},
	event.CategoryTheatre: {
		"théâtre", "spectacle", "pièce", "comédie", "tragédie",
		"one man show", "humour", "stand-up", "stand up", "marionnette",
		"cirque", "magie", "conte", "lecture", "mise en scène", "clown",
	},
	event.CategoryArt: {
		"exposition", "expo", "vernissage", "galerie", "peinture",
		"sculpture", "photographie", "photo", "installation",
		"beaux-arts", "musée", "cinéma", "projection", "film",
		"street art", "graffiti", "dessin", "gravure", "céramique",
	},
	event.CategoryCommunaute: {
		"festival", "marché", "brocante", "vide-grenier", "fête",
		"carnaval", "défilé", "parade", "rencontre", "atelier",
		"workshop", "conférence", "débat", "forum", "salon",
		"journée", "portes ouvertes",
	},
}

// ErrNoCategory is returned under the reject fallback policy when
// neither a source mapping nor a keyword matched.
var ErrNoCategory = fmt.Errorf("no category mapping and no keyword match")

// Result is the classification outcome for one candidate.
type Result struct {
	Category   string
	Explicit   bool // true when a per-source mapping decided
	Confidence float64
	Reason     string
}

// Classifier assigns canonical categories.
type Classifier struct {
	cfg      config.Category
	keywords map[string][]string // normalized keyword -> per category
}

// New builds a classifier from the category configuration. Configured
// keywords extend the built-in table.
func New(cfg config.Category) *Classifier {
	keywords := make(map[string][]string, len(defaultKeywords))
	for cat, kws := range defaultKeywords {
		normalized := make([]string, 0, len(kws))
		for _, kw := range kws {
			normalized = append(normalized, textutil.Normalize(kw))
		}
		keywords[cat] = normalized
	}
	for cat, kws := range cfg.Keywords {
		for _, kw := range kws {
			keywords[cat] = append(keywords[cat], textutil.Normalize(kw))
		}
	}
	if cfg.Default == "" {
		cfg.Default = event.CategoryCommunaute
	}
	if cfg.FallbackPolicy == "" {
		cfg.FallbackPolicy = config.FallbackDefault
	}
	return &Classifier{cfg: cfg, keywords: keywords}
}

// Classify assigns a category from the raw source categories plus name
// and description. ErrNoCategory is returned only under the reject
// policy; the default policy always yields a category.
func (cl *Classifier) Classify(sourceID string, rawCategories []string, name, description string) (Result, error) {
	// 1. Per-source explicit mapping, highest priority.
	if mapping := cl.cfg.Sources[sourceID]; mapping != nil {
		for _, raw := range rawCategories {
			rawNorm := textutil.Normalize(raw)
			for key, target := range mapping {
				if keyNorm := textutil.Normalize(key); keyNorm != "" && strings.Contains(rawNorm, keyNorm) {
					return Result{
						Category:   target,
						Explicit:   true,
						Confidence: 0.95,
						Reason:     fmt.Sprintf("source category %q mapped to %s", raw, target),
					}, nil
				}
			}
		}
	}

	// 2. Keyword scoring over name and description.
	nameNorm := textutil.Normalize(name)
	descNorm := textutil.Normalize(description)
	// Raw categories with no explicit mapping still contribute as text.
	if len(rawCategories) > 0 {
		descNorm += " " + textutil.Normalize(strings.Join(rawCategories, " "))
	}

	scores := make(map[string]float64, len(cl.keywords))
	for cat, kws := range cl.keywords {
		for _, kw := range kws {
			if kw == "" {
				continue
			}
			if strings.Contains(nameNorm, kw) {
				scores[cat] += nameWeight
			} else if strings.Contains(descNorm, kw) {
				scores[cat] += descWeight
			}
		}
	}

	best, bestScore, total := "", 0.0, 0.0
	// Iterate in priority order so ties resolve deterministically.
	for _, cat := range event.Categories {
		total += scores[cat]
		if scores[cat] > bestScore {
			best, bestScore = cat, scores[cat]
		}
	}

	if bestScore > 0 {
		confidence := bestScore / total
		if confidence > 0.95 {
			confidence = 0.95
		}
		return Result{
			Category:   best,
			Confidence: confidence,
			Reason:     fmt.Sprintf("keyword score %.1f for %s", bestScore, best),
		}, nil
	}

	// 3. No signal at all: apply the configured fallback policy.
	if cl.cfg.FallbackPolicy == config.FallbackReject {
		return Result{}, ErrNoCategory
	}
	return Result{
		Category:   cl.cfg.Default,
		Confidence: 0.3,
		Reason:     fmt.Sprintf("no keyword matched, default %s", cl.cfg.Default),
	}, nil
}
