package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scenariominer/pkg/report"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <report.json|report.json.lz4>",
		Short: "Validate a JSON report against the report schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := report.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			document, err := io.ReadAll(file)
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}

			err = report.Validate(document)
			if err != nil {
				color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "report is invalid (%s)\n", args[0])

				return err
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "report is valid (%s)\n", args[0])

			return nil
		},
	}
}
