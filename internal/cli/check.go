package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridimport/internal/core"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	var mapping bool

	cmd := &cobra.Command{
		Use:   "check <file.yaml>",
		Short: "Validate a profile or mapping and print its expanded schema",
		Long: `Check parses a profile (or, with --mapping, a bare mapping document),
builds its column schema and prints every column in resolution order,
appended columns indented under their parent.`,
		Example: `  gridimport check profiles/customers.yaml
  gridimport check --mapping mappings/customers.yaml -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := getOptions(cmd)

			var s schema.Schema
			if mapping {
				var err error
				if s, err = schema.ReadMappingsFile(args[0]); err != nil {
					return err
				}
			} else {
				p, err := core.LoadProfile(args[0])
				if err != nil {
					return err
				}
				s = p.Schema()
				if opts.output == "table" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", p.Name, p.Source.Kind, p.Sink.Kind)
				}
			}
			return renderSchema(cmd.OutOrStdout(), s, opts.output)
		},
	}

	cmd.Flags().BoolVar(&mapping, "mapping", false, "treat the file as a mapping document")
	return cmd
}

// NewProfilesCommand creates the profiles command.
func NewProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles [dir]",
		Short: "List the profiles in a directory",
		Long: `Profiles loads every *.yaml and *.yml profile in dir (default
IMPORT_PROFILES_DIR, then ./profiles) and lists them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := getOptions(cmd)

			dir := os.Getenv("IMPORT_PROFILES_DIR")
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				dir = "profiles"
			}

			reg, err := core.LoadProfiles(dir)
			if err != nil {
				return err
			}
			return renderProfiles(cmd.OutOrStdout(), reg.All(), opts.output)
		},
	}
}
