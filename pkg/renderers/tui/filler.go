// Package tui collects a form submission interactively from a terminal. It
// walks the rendered field descriptors, prompts per widget kind, and
// re-resolves dependency state after every answer so dependent fields appear
// the moment their controller selects them.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goliatone/go-formflow/pkg/genre"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
)

// Option configures a Filler.
type Option func(*Filler)

// WithPromptDriver overrides the prompt driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithRenderer overrides the field-state renderer.
func WithRenderer(renderer *render.Renderer) Option {
	return func(f *Filler) {
		if renderer != nil {
			f.renderer = renderer
		}
	}
}

// Filler drives an interactive fill session for one form.
type Filler struct {
	driver   PromptDriver
	renderer *render.Renderer
}

// New constructs a Filler with the survey-backed driver.
func New(options ...Option) *Filler {
	f := &Filler{
		driver:   newSurveyDriver(),
		renderer: render.New(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(f)
	}
	return f
}

// Fill prompts for every enabled field in rendering order and returns the raw
// submission payload, ready for validation. Disabled dependents are skipped;
// answering their controller re-enables them on the next pass.
func (f *Filler) Fill(ctx context.Context, schema model.Schema) (map[string]any, error) {
	title := schema.Form.Title
	if title != "" {
		if err := f.driver.Info(ctx, title); err != nil {
			return nil, err
		}
	}

	values := make(map[string]any)
	asked := make(map[string]bool)

	for {
		states, err := f.renderer.Render(ctx, schema, nil, values)
		if err != nil {
			return nil, err
		}

		progressed := false
		for _, state := range states {
			name := state.Field.Name
			if asked[name] || state.Disabled {
				continue
			}
			if state.Widget == render.WidgetHidden {
				values[name] = state.Initial
				asked[name] = true
				continue
			}

			value, err := f.prompt(ctx, state)
			if err != nil {
				return nil, err
			}
			if value != nil {
				values[name] = value
			}
			asked[name] = true
			progressed = true
			// Re-render so dependents of this answer get resolved.
			break
		}
		if !progressed {
			break
		}
	}
	return values, nil
}

func (f *Filler) prompt(ctx context.Context, state render.FieldState) (any, error) {
	message := state.Field.Label
	if message == "" {
		message = state.Field.Name
	}

	switch state.Widget {
	case render.WidgetCheckbox:
		return f.driver.Confirm(ctx, ConfirmConfig{
			Message: message,
			Default: genre.Truthy(state.Initial),
			Help:    state.Field.HelpText,
		})

	case render.WidgetSelect, render.WidgetRadioGroup:
		names, ids := optionLists(state.Options)
		if len(names) == 0 {
			return nil, nil
		}
		index, err := f.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      names,
			DefaultIndex: -1,
			Help:         state.Field.HelpText,
		})
		if err != nil {
			return nil, err
		}
		if index < 0 {
			return nil, nil
		}
		return ids[index], nil

	case render.WidgetCheckboxGroup:
		names, ids := optionLists(state.Options)
		if len(names) == 0 {
			return nil, nil
		}
		indices, err := f.driver.MultiSelect(ctx, SelectConfig{
			Message: message,
			Options: names,
			Help:    state.Field.HelpText,
		})
		if err != nil {
			return nil, err
		}
		selected := make([]int64, 0, len(indices))
		for _, index := range indices {
			if index >= 0 && index < len(ids) {
				selected = append(selected, ids[index])
			}
		}
		return selected, nil

	case render.WidgetTextArea:
		return f.driver.TextArea(ctx, TextAreaConfig{
			Message: message,
			Default: initialString(state.Initial),
			Help:    state.Field.HelpText,
		})

	case render.WidgetPasswordInput:
		return f.driver.Password(ctx, f.inputConfig(message, state))

	case render.WidgetFileInput:
		return f.promptFile(ctx, message, state)

	case render.WidgetCaptcha:
		return f.driver.Input(ctx, InputConfig{
			Message: message,
			Help:    state.Field.HelpText,
		})

	default:
		return f.driver.Input(ctx, f.inputConfig(message, state))
	}
}

func (f *Filler) inputConfig(message string, state render.FieldState) InputConfig {
	cfg := InputConfig{
		Message: message,
		Default: initialString(state.Initial),
		Help:    state.Field.HelpText,
	}
	if state.Field.Placeholder != "" && cfg.Help == "" {
		cfg.Help = state.Field.Placeholder
	}
	required := state.Required
	checkers := state.Checkers
	cfg.Validator = func(answer string) error {
		if answer == "" {
			if required {
				return fmt.Errorf("%s is required", message)
			}
			return nil
		}
		for _, checker := range checkers {
			if err := checker.Check(answer); err != nil {
				return err
			}
		}
		return nil
	}
	return cfg
}

// promptFile asks for a local path and opens it as an upload. An empty answer
// leaves the field unset.
func (f *Filler) promptFile(ctx context.Context, message string, state render.FieldState) (any, error) {
	path, err := f.driver.Input(ctx, InputConfig{
		Message: message + " (file path)",
		Help:    state.Field.HelpText,
	})
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("tui: stat %q: %w", path, err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tui: open %q: %w", path, err)
	}
	return genre.Upload{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Content: file,
	}, nil
}

func optionLists(options []model.Option) ([]string, []int64) {
	names := make([]string, 0, len(options))
	ids := make([]int64, 0, len(options))
	for _, option := range options {
		names = append(names, option.Name)
		ids = append(ids, option.ID)
	}
	return names, ids
}

func initialString(initial any) string {
	switch v := initial.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
