package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/pkg/config"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/openapi"
)

func newExportCommand() *cobra.Command {
	var output string
	var title string
	var version string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the published forms as an OpenAPI document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			forms, err := repo.PublishedForms(ctx)
			if err != nil {
				return err
			}
			schemas := make([]model.Schema, 0, len(forms))
			for _, form := range forms {
				schema, err := repo.FormByID(ctx, form.ID)
				if err != nil {
					return err
				}
				schemas = append(schemas, schema)
			}

			doc := openapi.Document(title, version, schemas...)
			encoded, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("export: encode document: %w", err)
			}

			if output == "" {
				fmt.Println(string(encoded))
				return nil
			}
			if err := os.WriteFile(output, encoded, 0o644); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Printf("document written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVar(&title, "title", "formflow", "document title")
	cmd.Flags().StringVar(&version, "version", "1.0.0", "document version")
	return cmd
}
