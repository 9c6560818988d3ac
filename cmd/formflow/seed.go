package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/pkg/config"
	"github.com/goliatone/go-formflow/pkg/schemafile"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <definition.yaml>...",
		Short: "Load form definitions into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg)
			if err != nil {
				return err
			}

			for _, path := range args {
				doc, err := schemafile.Load(path)
				if err != nil {
					return err
				}
				issues := schemafile.Lint(doc)
				printIssues(path, issues)
				if schemafile.HasErrors(issues) {
					return fmt.Errorf("seed: %s has lint errors", path)
				}

				id, err := repo.CreateForm(cmd.Context(), doc.Schema())
				if err != nil {
					return err
				}
				color.Green("created form %d from %s", id, path)
			}
			return nil
		},
	}
}
