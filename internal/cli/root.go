// Package cli provides the gridimport command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridimport/internal/core"
	"github.com/JonMunkholm/gridimport/internal/database"
	"github.com/JonMunkholm/gridimport/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// options are the persistent flags shared by every command.
type options struct {
	dbDriver  string
	dbURL     string
	logLevel  string
	logFormat string
	output    string
}

type optionsKey struct{}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "gridimport",
		Short: "Schema-driven tabular imports",
		Long: `gridimport reads delimited, fixed-width, spreadsheet or query sources
into a typed grid described by a column mapping, then writes the grid to a
database table in a single transaction or prints it.

Database flags default to DATABASE_DRIVER and DATABASE_URL; a .env file in
the working directory is loaded first when present.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			switch opts.output {
			case "table", "json", "csv", "markdown":
			default:
				return fmt.Errorf("unknown output format %q (table|json|csv|markdown)", opts.output)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), optionsKey{}, opts))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// .env values are only defaults for the flags below.
	_ = godotenv.Load()

	driver := os.Getenv("DATABASE_DRIVER")
	if driver == "" {
		driver = string(database.Postgres)
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.dbDriver, "db-driver", driver, "database driver (postgres|mysql|sqlite)")
	pf.StringVar(&opts.dbURL, "db-url", os.Getenv("DATABASE_URL"), "database DSN")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (trace|debug|info|warn|error|critical)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format (text|json)")
	pf.StringVarP(&opts.output, "output", "o", "table", "output format (table|json|csv|markdown)")

	_ = root.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "markdown"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(NewRunCommand())
	root.AddCommand(NewCheckCommand())
	root.AddCommand(NewProfilesCommand())
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", core.FormatUserError(err))
		fmt.Fprintln(cmd.ErrOrStderr(), "detail:", err)
		return 1
	}
	return 0
}

func getOptions(cmd *cobra.Command) *options {
	if opts, ok := cmd.Context().Value(optionsKey{}).(*options); ok {
		return opts
	}
	return &options{dbDriver: string(database.Postgres), logLevel: "warn", logFormat: "text", output: "table"}
}

// logger writes to stderr so it never mixes with rendered output.
func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), o.logLevel, o.logFormat)
}

// openDatabase connects when the profile needs a database. The returned
// closer is always safe to call.
func (o *options) openDatabase(ctx context.Context, p *core.Profile) (*database.DB, io.Closer, error) {
	if !p.NeedsDatabase() {
		return nil, io.NopCloser(nil), nil
	}
	if o.dbURL == "" {
		return nil, nil, errors.New("profile needs a database: set --db-url or DATABASE_URL")
	}
	db, err := database.Open(ctx, o.dbDriver, o.dbURL, database.Options{MaxConns: 4})
	if err != nil {
		return nil, nil, err
	}
	return db, db, nil
}
