// Package report renders mining results as JSON, YAML or tables and checks
// JSON reports against the bundled schema.
package report

import (
	"time"

	"github.com/Sumatoshi-tech/scenariominer/pkg/batch"
)

// Report is the document written by the mine and export commands.
type Report struct {
	Tool         string                   `json:"tool" yaml:"tool"`
	Version      string                   `json:"version" yaml:"version"`
	GeneratedAt  time.Time                `json:"generated_at" yaml:"generated_at"`
	Repositories []batch.RepositoryResult `json:"repositories" yaml:"repositories"`
}

// New builds a report over results.
func New(version string, generatedAt time.Time, results []batch.RepositoryResult) Report {
	repos := make([]batch.RepositoryResult, len(results))
	copy(repos, results)

	return Report{
		Tool:         "scenariominer",
		Version:      version,
		GeneratedAt:  generatedAt.UTC(),
		Repositories: repos,
	}
}

// Failed counts the repositories whose mining ended with an error.
func (r Report) Failed() int {
	failed := 0

	for _, repo := range r.Repositories {
		if repo.Failed() {
			failed++
		}
	}

	return failed
}

// Scenarios counts the scenarios of every repository.
func (r Report) Scenarios() int {
	total := 0

	for _, repo := range r.Repositories {
		total += repo.Scenarios.Total()
	}

	return total
}
