// Package render turns a resolved form schema into the ordered set of runtime
// input descriptors a client needs to draw the form: widget kind, coerced
// initial value, compiled validators, and dependency-resolved visibility
// state.
package render

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formflow/pkg/genre"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/validation"
)

// Built-in widget identifiers resolved from field genres.
const (
	WidgetTextInput     = "text-input"
	WidgetChips         = "chips"
	WidgetTextArea      = "textarea"
	WidgetNumberInput   = "number-input"
	WidgetDatePicker    = "date-picker"
	WidgetTimePicker    = "time-picker"
	WidgetDateTime      = "datetime-picker"
	WidgetEmailInput    = "email-input"
	WidgetPasswordInput = "password-input"
	WidgetCheckbox      = "checkbox"
	WidgetCheckboxGroup = "checkbox-group"
	WidgetRadioGroup    = "radio-group"
	WidgetSelect        = "select"
	WidgetHidden        = "hidden"
	WidgetCaptcha       = "captcha"
	WidgetFileInput     = "file-input"
)

// FieldState is one rendered input descriptor. Entries come back in the
// form's rendering order, so FieldState[i] lines up with a stored response's
// data[i].
type FieldState struct {
	Field    model.Field          `json:"field"`
	Position model.FieldPosition  `json:"position"`
	Category string               `json:"category,omitempty"`
	Widget   string               `json:"widget"`
	Required bool                 `json:"required"`
	Disabled bool                 `json:"disabled"`
	Initial  any                  `json:"initial,omitempty"`
	Options  []model.Option       `json:"options,omitempty"`
	Checkers []validation.Checker `json:"-"`
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithGenreRegistry injects a custom genre registry.
func WithGenreRegistry(reg *genre.Registry) Option {
	return func(r *Renderer) {
		if reg != nil {
			r.genres = reg
		}
	}
}

// WithWidget overrides the widget resolved for a genre.
func WithWidget(g model.FieldGenre, widget string) Option {
	return func(r *Renderer) {
		if widget != "" {
			r.widgets[g] = widget
		}
	}
}

// Renderer builds FieldState sets from form schemas.
type Renderer struct {
	genres  *genre.Registry
	widgets map[model.FieldGenre]string
}

// New constructs a Renderer with the built-in genre registry and widget map.
func New(options ...Option) *Renderer {
	r := &Renderer{
		genres:  genre.NewRegistry(),
		widgets: defaultWidgets(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Render produces one descriptor per active associated field, in rendering
// order. prior supplies edit-mode initial values by positional correlation;
// values supplies current (possibly partial) client values used for
// dependency resolution and takes precedence over prior data.
func (r *Renderer) Render(ctx context.Context, schema model.Schema, prior *model.FormResponse, values map[string]any) ([]FieldState, error) {
	fields := schema.SortedFields()
	states := make([]FieldState, 0, len(fields))

	current := currentValues(fields, prior, values)

	for i, ff := range fields {
		field := ff.Field

		checkers, err := validation.CompileAll(field.Validators)
		if err != nil {
			return nil, fmt.Errorf("render: field %q: %w", field.Name, err)
		}

		state := FieldState{
			Field:    field,
			Position: ff.Position,
			Widget:   r.widgetFor(field.Genre),
			Required: field.IsRequired,
			Options:  field.ActiveOptions(),
			Checkers: checkers,
		}
		if ff.Category != nil {
			state.Category = ff.Category.Title
		}

		state.Initial = r.initialValue(ctx, field, i, prior, values)
		r.resolveDependency(schema, &state, current)

		states = append(states, state)
	}
	return states, nil
}

func (r *Renderer) widgetFor(g model.FieldGenre) string {
	if widget, ok := r.widgets[g]; ok {
		return widget
	}
	return WidgetTextInput
}

// initialValue resolves the control's starting value: explicit client value,
// then the prior response's value at the same index (edit mode), then the
// field's configured default run through storage coercion so typed genres
// start typed.
func (r *Renderer) initialValue(ctx context.Context, field model.Field, index int, prior *model.FormResponse, values map[string]any) any {
	if v, ok := values[field.Name]; ok {
		return v
	}
	if v, ok := prior.ValueAt(index); ok {
		return v
	}
	if field.Default == "" {
		return nil
	}
	coerced, err := r.genres.Coerce(ctx, field.Genre, field.Default, genre.CoerceContext{})
	if err != nil {
		return field.Default
	}
	return coerced
}

// resolveDependency marks dependent fields disabled until their controller's
// current value selects them, and demotes requiredness while the controller
// is unsatisfied. The graph is one hop: a controller's own dependencies are
// not chased.
func (r *Renderer) resolveDependency(schema model.Schema, state *FieldState, current map[string]any) {
	field := state.Field
	if field.DependsOn.IsZero() {
		return
	}

	controller, ok := schema.ControllerOf(field)
	if !ok {
		// Dangling reference: treat as unsatisfied, never as an error.
		state.Disabled = true
		state.Required = false
		return
	}

	controllerValue, has := current[controller.Field.Name]
	if !has || !schema.DependencySelected(field, controllerValue) {
		state.Disabled = true
		state.Required = false
		return
	}
	state.Disabled = false
	state.Required = field.IsRequired
}

// currentValues merges prior positional data under client-supplied values so
// dependency resolution sees the latest known state per field.
func currentValues(fields []model.FormField, prior *model.FormResponse, values map[string]any) map[string]any {
	current := make(map[string]any, len(fields))
	for i, ff := range fields {
		if v, ok := prior.ValueAt(i); ok {
			current[ff.Field.Name] = v
		}
	}
	for name, v := range values {
		current[name] = v
	}
	return current
}

func defaultWidgets() map[model.FieldGenre]string {
	return map[model.FieldGenre]string{
		model.GenreText:          WidgetTextInput,
		model.GenreMultiText:     WidgetChips,
		model.GenreTextArea:      WidgetTextArea,
		model.GenreNumber:        WidgetNumberInput,
		model.GenreDate:          WidgetDatePicker,
		model.GenreTime:          WidgetTimePicker,
		model.GenreDatetime:      WidgetDateTime,
		model.GenreEmail:         WidgetEmailInput,
		model.GenrePassword:      WidgetPasswordInput,
		model.GenreCheckbox:      WidgetCheckbox,
		model.GenreMultiCheckbox: WidgetCheckboxGroup,
		model.GenreRadio:         WidgetRadioGroup,
		model.GenreDropdown:      WidgetSelect,
		model.GenreHidden:        WidgetHidden,
		model.GenreCaptcha:       WidgetCaptcha,
		model.GenreUploadFile:    WidgetFileInput,
	}
}
