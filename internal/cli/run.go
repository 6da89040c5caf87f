package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridimport/internal/core"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "run <profile.yaml>",
		Short: "Run an import profile",
		Long: `Run reads the profile's source into a grid and hands it to the profile's
sink. Grid sinks print the rows; database sinks insert them in one
transaction and print a summary. Any failure rolls the whole import back.`,
		Example: `  # Import using the source path in the profile
  gridimport run profiles/customers.yaml

  # Replace the source file and print JSON
  gridimport run profiles/customers.yaml --file new.csv -o json

  # Read the source from stdin
  cat new.csv | gridimport run profiles/customers.yaml --file -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "source file replacing the profile's path (- for stdin)")
	return cmd
}

func runImport(cmd *cobra.Command, path, file string) error {
	opts := getOptions(cmd)
	ctx := cmd.Context()

	p, err := core.LoadProfile(path)
	if err != nil {
		return err
	}

	db, closer, err := opts.openDatabase(ctx, p)
	if err != nil {
		return err
	}
	defer closer.Close()

	reg := core.NewRegistry()
	if err := reg.Register(p); err != nil {
		return err
	}
	svcOpts := []core.ServiceOption{core.WithLogger(opts.logger(cmd))}
	if db != nil {
		svcOpts = append(svcOpts, core.WithDatabase(db))
	}
	svc := core.NewService(reg, svcOpts...)

	req := core.RunRequest{Profile: p.Name}
	switch file {
	case "":
	case "-":
		req.Source = cmd.InOrStdin()
		req.SourceName = "stdin"
	default:
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open source: %w", err)
		}
		defer f.Close()
		req.Source = f
		req.SourceName = file
	}

	res, err := svc.Run(ctx, req)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if res.Grid != nil {
		return renderGrid(w, res.Grid, opts.output)
	}
	return renderRunSummary(w, p, res, opts.output)
}
