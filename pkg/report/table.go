package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/scenariominer/pkg/batch"
)

// TableCodec renders a summary table followed by one scenario table per
// repository and scenario kind.
type TableCodec struct{}

// Encode implements Codec.
func (TableCodec) Encode(w io.Writer, rep Report) error {
	err := WriteSummary(w, rep)
	if err != nil {
		return err
	}

	for _, repo := range rep.Repositories {
		for _, section := range scenarioTables(repo) {
			_, err = fmt.Fprintf(w, "\n%s\n%s\n", section.title, section.tbl.Render())
			if err != nil {
				return fmt.Errorf("write table: %w", err)
			}
		}
	}

	return nil
}

// Format implements Codec.
func (TableCodec) Format() string { return FormatTable }

// WriteSummary writes one row per repository with its scenario counts and
// status, plus a totals footer.
func WriteSummary(w io.Writer, rep Report) error {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Repository", "Status", "Branches", "Commits", "File chains", "Merges", "Cherry-picks", "Duration"})

	for _, repo := range rep.Repositories {
		tbl.AppendRow(table.Row{
			repo.Name,
			status(repo),
			humanize.Comma(int64(repo.Branches)),
			humanize.Comma(int64(repo.Commits)),
			humanize.Comma(int64(len(repo.Scenarios.FileChains))),
			humanize.Comma(int64(len(repo.Scenarios.Merges))),
			humanize.Comma(int64(len(repo.Scenarios.CherryPicks))),
			repo.Duration.Round(time.Millisecond).String(),
		})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d repositories", len(rep.Repositories)),
		fmt.Sprintf("%d failed", rep.Failed()),
		"", "", "", "",
		humanize.Comma(int64(rep.Scenarios())) + " scenarios",
	})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	for _, repo := range rep.Repositories {
		if !repo.Failed() {
			continue
		}

		_, err = fmt.Fprintf(w, "%s %s: %s\n", color.RedString("error"), repo.Name, repo.Error)
		if err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	return nil
}

func status(repo batch.RepositoryResult) string {
	switch {
	case repo.Failed():
		return color.RedString("failed")
	case repo.Scenarios.Stats.CherryPickBudgetExpired:
		return color.YellowString("budget expired")
	default:
		return color.GreenString("ok")
	}
}

type section struct {
	title string
	tbl   table.Writer
}

func scenarioTables(repo batch.RepositoryResult) []section {
	var sections []section

	if chains := repo.Scenarios.FileChains; len(chains) > 0 {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"File", "Branch", "Oldest", "Newest", "Times seen"})

		for _, chain := range chains {
			tbl.AppendRow(table.Row{chain.File, chain.Branch, chain.OldestCommit.Short(), chain.NewestCommit.Short(), chain.TimesSeenConsecutively})
		}

		sections = append(sections, section{title: repo.Name + " file-commit chains:", tbl: tbl})
	}

	if merges := repo.Scenarios.Merges; len(merges) > 0 {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"Merge", "Parents", "Conflicts"})

		for _, merge := range merges {
			parents := make([]string, len(merge.Parents))
			for i, parent := range merge.Parents {
				parents[i] = parent.Short()
			}

			tbl.AppendRow(table.Row{merge.MergeCommit.Short(), strings.Join(parents, " "), merge.HadConflicts})
		}

		sections = append(sections, section{title: repo.Name + " merges:", tbl: tbl})
	}

	if picks := repo.Scenarios.CherryPicks; len(picks) > 0 {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"Cherry-pick", "Cherry", "Parents"})

		for _, pick := range picks {
			parents := make([]string, len(pick.Parents))
			for i, parent := range pick.Parents {
				parents[i] = parent.Short()
			}

			tbl.AppendRow(table.Row{pick.CherryPickCommit.Short(), pick.CherryCommit.Short(), strings.Join(parents, " ")})
		}

		sections = append(sections, section{title: repo.Name + " cherry-picks:", tbl: tbl})
	}

	return sections
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Format.Footer = text.FormatDefault

	return tbl
}
