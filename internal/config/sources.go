package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed sources.schema.json
var sourcesSchemaJSON string

// RateLimit throttles fetching for one source.
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	DelayBetweenPages float64 `yaml:"delay_between_pages" json:"delay_between_pages"`
}

// Selectors holds the CSS selectors the generic HTML adapter uses to
// extract events from a listing page.
type Selectors struct {
	EventList        string `yaml:"event_list" json:"event_list,omitempty"`
	EventItem        string `yaml:"event_item" json:"event_item,omitempty"`
	EventTitle       string `yaml:"event_title" json:"event_title,omitempty"`
	EventDate        string `yaml:"event_date" json:"event_date,omitempty"`
	EventTime        string `yaml:"event_time" json:"event_time,omitempty"`
	EventLink        string `yaml:"event_link" json:"event_link,omitempty"`
	EventImage       string `yaml:"event_image" json:"event_image,omitempty"`
	EventDescription string `yaml:"event_description" json:"event_description,omitempty"`
	EventCategory    string `yaml:"event_category" json:"event_category,omitempty"`
	EventLocation    string `yaml:"event_location" json:"event_location,omitempty"`
}

// Source configures a single event source.
type Source struct {
	Name          string            `yaml:"name" json:"name"`
	ID            string            `yaml:"id" json:"id"`
	URL           string            `yaml:"url" json:"url"`
	Parser        string            `yaml:"parser" json:"parser"`
	Enabled       bool              `yaml:"enabled" json:"enabled"`
	RateLimit     RateLimit         `yaml:"rate_limit" json:"rate_limit"`
	Selectors     Selectors         `yaml:"selectors" json:"selectors"`
	CategoriesMap map[string]string `yaml:"categories_map" json:"categories_map,omitempty"`
}

// Sources is the sources.yaml document.
type Sources struct {
	Defaults struct {
		RateLimit RateLimit `yaml:"rate_limit" json:"rate_limit"`
	} `yaml:"defaults" json:"defaults"`
	Sources []Source `yaml:"sources" json:"sources"`
}

// Enabled returns only the enabled sources.
func (s *Sources) Enabled() []Source {
	out := make([]Source, 0, len(s.Sources))
	for _, src := range s.Sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

// ByID finds a source by id.
func (s *Sources) ByID(id string) *Source {
	for i := range s.Sources {
		if s.Sources[i].ID == id {
			return &s.Sources[i]
		}
	}
	return nil
}

var (
	sourcesSchemaOnce sync.Once
	sourcesSchema     *jsonschema.Schema
	sourcesSchemaErr  error
)

func loadSourcesSchema() (*jsonschema.Schema, error) {
	sourcesSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("sources.schema.json", strings.NewReader(sourcesSchemaJSON)); err != nil {
			sourcesSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		sourcesSchema, sourcesSchemaErr = compiler.Compile("sources.schema.json")
	})
	return sourcesSchema, sourcesSchemaErr
}

// LoadSources reads, validates and normalizes the sources document.
// Unlike selection criteria there is no default: a pipeline without
// sources cannot run, so a missing file is fatal.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Document: "sources", Err: err}
	}
	return ParseSources(data)
}

// ParseSources validates raw YAML against the embedded schema and
// applies defaults plus environment overrides.
func ParseSources(data []byte) (*Sources, error) {
	// The JSON Schema validator wants generic values, so decode twice:
	// once for validation, once into the typed document.
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, &Error{Document: "sources", Err: fmt.Errorf("invalid YAML: %w", err)}
	}
	if generic == nil {
		return nil, &Error{Document: "sources", Err: fmt.Errorf("document is empty")}
	}

	schema, err := loadSourcesSchema()
	if err != nil {
		return nil, &Error{Document: "sources", Err: err}
	}
	if err := schema.Validate(toJSONValue(generic)); err != nil {
		return nil, &Error{Document: "sources", Err: fmt.Errorf("schema validation: %w", err)}
	}

	cfg := &Sources{}
	cfg.Defaults.RateLimit = RateLimit{RequestsPerSecond: 1.0, DelayBetweenPages: 2.0}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Document: "sources", Err: err}
	}
	if len(cfg.Sources) == 0 {
		return nil, &Error{Document: "sources", Err: fmt.Errorf("no sources defined")}
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if seen[src.ID] {
			return nil, &Error{Document: "sources", Err: fmt.Errorf("duplicate source id %q", src.ID)}
		}
		seen[src.ID] = true

		if src.RateLimit.RequestsPerSecond == 0 {
			src.RateLimit.RequestsPerSecond = cfg.Defaults.RateLimit.RequestsPerSecond
		}
		if src.RateLimit.DelayBetweenPages == 0 {
			src.RateLimit.DelayBetweenPages = cfg.Defaults.RateLimit.DelayBetweenPages
		}
		applyEnvOverrides(src)
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments retarget or disable a source
// without editing the document: AGENDA_SOURCE_<ID>_URL and
// AGENDA_SOURCE_<ID>_ENABLED.
func applyEnvOverrides(src *Source) {
	prefix := "AGENDA_SOURCE_" + strings.ToUpper(strings.ReplaceAll(src.ID, "-", "_"))

	if url := os.Getenv(prefix + "_URL"); url != "" {
		src.URL = url
	}
	if enabled := os.Getenv(prefix + "_ENABLED"); enabled != "" {
		switch strings.ToLower(enabled) {
		case "true", "1", "yes":
			src.Enabled = true
		default:
			src.Enabled = false
		}
	}
}

// toJSONValue rewrites YAML-decoded values into the shape the JSON
// Schema validator expects (string-keyed maps all the way down).
func toJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = toJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONValue(item)
		}
		return out
	default:
		return v
	}
}
