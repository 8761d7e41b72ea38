// Package cli implements the agenda-crawl command-line interface.
//
// The root command wires configuration loading, the source adapters,
// the pipeline and the snapshot store into one crawl run, and renders
// the run report as text or JSON. Exit codes distinguish success (0),
// failure (1) and partial success (2).
package cli
