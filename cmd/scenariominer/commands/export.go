package commands

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scenariominer/pkg/batch"
	"github.com/Sumatoshi-tech/scenariominer/pkg/report"
	"github.com/Sumatoshi-tech/scenariominer/pkg/store"
	"github.com/Sumatoshi-tech/scenariominer/pkg/version"
)

// ErrNoDatabase is returned by export without --db.
var ErrNoDatabase = errors.New("--db is required")

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	return newExportCommandWithDeps(time.Now)
}

func newExportCommandWithDeps(now func() time.Time) *cobra.Command {
	var dbPath, format, output string

	cmd := &cobra.Command{
		Use:   "export --db <path> [name-or-source...]",
		Short: "Re-emit stored mining results",
		Long:  "Load the results of the given repositories, matched by source or name, or of every stored repository, and write them as a report.",
		RunE: func(cmd *cobra.Command, refs []string) error {
			if dbPath == "" {
				return ErrNoDatabase
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := store.Open(ctx, dbPath, nil)
			if err != nil {
				return err
			}
			defer db.Close()

			results, err := loadResults(ctx, db, refs)
			if err != nil {
				return err
			}

			return writeReport(cmd.OutOrStdout(), output, format, report.New(version.Version, now(), results))
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database written by mine --db")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json, yaml, table (default: from --output extension, else json)")
	cmd.Flags().StringVarP(&output, "output", "o", stdoutPath, "Report path, '-' for stdout; a .lz4 suffix compresses it")

	return cmd
}

// loadResults loads every stored result, or those whose source or name
// matches one of refs.
func loadResults(ctx context.Context, db *store.Store, refs []string) ([]batch.RepositoryResult, error) {
	if len(refs) == 0 {
		entries, err := db.List(ctx)
		if err != nil {
			return nil, err
		}

		results := make([]batch.RepositoryResult, 0, len(entries))

		for _, entry := range entries {
			result, err := db.Load(ctx, entry.Source)
			if err != nil {
				return nil, err
			}

			results = append(results, result)
		}

		return results, nil
	}

	var results []batch.RepositoryResult

	for _, ref := range refs {
		found, err := db.Find(ctx, ref)
		if err != nil {
			return nil, err
		}

		results = append(results, found...)
	}

	return results, nil
}
