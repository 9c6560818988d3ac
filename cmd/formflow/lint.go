package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/pkg/schemafile"
)

func newLintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <definition.yaml>...",
		Short: "Check form definitions without touching the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			for _, path := range args {
				doc, err := schemafile.Load(path)
				if err != nil {
					return err
				}
				issues := schemafile.Lint(doc)
				printIssues(path, issues)
				if schemafile.HasErrors(issues) {
					failed = true
				} else if len(issues) == 0 {
					color.Green("%s: ok", path)
				}
			}
			if failed {
				return fmt.Errorf("lint: errors found")
			}
			return nil
		},
	}
}

func printIssues(path string, issues []schemafile.Issue) {
	for _, issue := range issues {
		line := fmt.Sprintf("%s: %s", path, issue)
		if issue.Severity == schemafile.SeverityError {
			color.Red(line)
		} else {
			color.Yellow(line)
		}
	}
}
