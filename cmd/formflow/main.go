// Command formflow runs the form engine: an HTTP server over a SQL-backed
// form catalog, plus tooling to seed, lint, fill and export form definitions.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/pkg/config"
	"github.com/goliatone/go-formflow/pkg/store/gormstore"
)

func main() {
	root := &cobra.Command{
		Use:           "formflow",
		Short:         "Dynamic form engine: serve, seed, lint, fill and export forms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newSeedCommand(),
		newLintCommand(),
		newFillCommand(),
		newExportCommand(),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "formflow:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func openRepository(cfg config.Config) (*gormstore.Store, error) {
	return gormstore.Open(gormstore.Config{
		Driver: gormstore.Driver(cfg.DatabaseDriver),
		DSN:    cfg.DatabaseDSN,
	})
}
