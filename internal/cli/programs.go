package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strandworks/strand/internal/harness"
)

// ProgramsResult holds the program listing.
type ProgramsResult struct {
	Programs []string `json:"programs"`
}

// NewProgramsCommand creates the programs command.
func NewProgramsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "programs",
		Short: "List built-in scenario programs",
		Long: `List the built-in programs a scenario's "program" field can name.

Examples:
  strand programs
  strand programs --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := harness.Programs()

			if rootOpts.Format == "json" {
				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return out.JSON(ProgramsResult{Programs: names})
			}

			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	return cmd
}
