package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/massalia/agenda/internal/pipeline"
	"github.com/massalia/agenda/internal/venue"
)

// OutputFormat specifies the output format.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// WriteOutput writes the run result in the specified format.
func WriteOutput(w io.Writer, result *pipeline.Result, format OutputFormat, verbose bool) error {
	if result == nil {
		return nil
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeText outputs a human-readable run report.
func writeText(w io.Writer, result *pipeline.Result, verbose bool) error {
	fmt.Fprintf(w, "Run %s: %s\n", result.RunID, result.Status)

	fmt.Fprintln(w, "\nSources:")
	for _, src := range result.Sources {
		if src.Error != "" {
			fmt.Fprintf(w, "  %s: FAILED (%s)\n", src.ID, src.Error)
			continue
		}
		fmt.Fprintf(w, "  %s: %d candidates\n", src.ID, src.Fetched)
	}

	c := result.Counts
	fmt.Fprintf(w, "\nCandidates: %d\n", c.Candidates)
	fmt.Fprintf(w, "  accepted new:  %d\n", c.Accepted)
	fmt.Fprintf(w, "  merged:        %d\n", c.Merged)
	fmt.Fprintf(w, "  updated:       %d\n", c.Updated)
	fmt.Fprintf(w, "  rejected:      %d\n", c.Rejected)
	fmt.Fprintf(w, "  dropped:       %d\n", c.Dropped)
	if c.Conflicts > 0 {
		fmt.Fprintf(w, "  conflicts:     %d\n", c.Conflicts)
	}

	if len(result.Canonicals) > 0 {
		fmt.Fprintf(w, "\nEmitted (%d):\n", len(result.Canonicals))
		for _, evt := range sortedByStart(result.Canonicals) {
			venueLabel := evt.VenueSlug
			if venueLabel == "" {
				venueLabel = "(unresolved: " + evt.Location + ")"
			}
			fmt.Fprintf(w, "  %s %s  [%s]  %s\n",
				evt.Day(), evt.Start.Format("15:04"), evt.Category, evt.Name)
			if verbose {
				fmt.Fprintf(w, "      key: %s  venue: %s  sources: %d  confidence: %.2f\n",
					evt.IdentityKey, venueLabel, len(evt.SourceIDs), evt.MergeConfidence)
			}
		}
	}

	if len(result.Unresolved) > 0 {
		fmt.Fprintf(w, "\nUnresolved locations (%d):\n", len(result.Unresolved))
		for _, loc := range result.Unresolved {
			fmt.Fprintf(w, "  %s\n", loc)
		}
	}
	return nil
}

// WriteAudit writes the venue-registry audit report.
func WriteAudit(w io.Writer, audit venue.AuditResult, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, audit)
	}

	fmt.Fprintf(w, "Venues: %d\n", audit.TotalVenues)
	if len(audit.Duplicates) > 0 {
		fmt.Fprintf(w, "\nProbable duplicates (%d):\n", len(audit.Duplicates))
		for _, d := range audit.Duplicates {
			fmt.Fprintf(w, "  %s ~ %s (%s, %.2f)\n", d.SlugA, d.SlugB, d.MatchType, d.Similarity)
		}
	}
	if len(audit.MissingFields) > 0 {
		fmt.Fprintf(w, "\nIncomplete entries (%d):\n", len(audit.MissingFields))
		for _, m := range audit.MissingFields {
			fmt.Fprintf(w, "  %s: missing %v\n", m.Slug, m.Fields)
		}
	}
	if len(audit.Duplicates) == 0 && len(audit.MissingFields) == 0 {
		fmt.Fprintln(w, "Registry looks healthy.")
	}
	return nil
}
