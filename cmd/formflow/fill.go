package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow"
	"github.com/goliatone/go-formflow/pkg/config"
	"github.com/goliatone/go-formflow/pkg/renderers/tui"
	"github.com/goliatone/go-formflow/pkg/storage"
	"github.com/goliatone/go-formflow/pkg/submission"
)

func newFillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fill <form-id>",
		Short: "Fill out a form interactively and store the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("fill: %q is not a form id", args[0])
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg)
			if err != nil {
				return err
			}
			engine := formflow.New(repo,
				formflow.WithLogger(newLogger()),
				formflow.WithFileStore(storage.NewDisk(cfg.MediaDir, cfg.MediaBaseURL)),
			)

			ctx := cmd.Context()
			schema, err := engine.Schema(ctx, formID)
			if err != nil {
				return err
			}

			values, err := tui.New().Fill(ctx, schema)
			if err != nil {
				if errors.Is(err, tui.ErrAborted) {
					color.Yellow("aborted, nothing saved")
					return nil
				}
				return err
			}

			response, err := engine.Submit(ctx, schema, values, formflow.Requester{})
			if err != nil {
				var verr *submission.FormValidationError
				if errors.As(err, &verr) {
					for name, message := range verr.FieldErrors {
						color.Red("%s: %s", name, message)
					}
					return fmt.Errorf("fill: validation failed")
				}
				return err
			}

			color.Green("stored response %s", response.UniqueID)
			if schema.Form.SuccessMessage != "" {
				fmt.Println(schema.Form.SuccessMessage)
			}
			return nil
		},
	}
}
