// Package submission validates raw submitted values against a form schema:
// per-genre coercion, validator chains, conditional requiredness, and captcha
// verification. Each field walks a small state machine and the whole
// submission either yields cleaned typed values or a per-field error map.
package submission

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-formflow/pkg/captcha"
	"github.com/goliatone/go-formflow/pkg/genre"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/validation"
)

// State tracks a field through validation.
type State string

const (
	StatePending    State = "pending"
	StateCoercing   State = "coercing"
	StateValidating State = "validating"
	StateAccepted   State = "accepted"
	StateRejected   State = "rejected"
)

// Default messages used when a field carries no configured message.
const (
	msgRequired       = "This field is required."
	msgInvalidChoice  = "Select a valid choice."
	msgCaptchaFailed  = "Captcha verification failed."
	msgCaptchaMissing = "Captcha token is required."
)

// FieldResult records the outcome for one field, in rendering order.
type FieldResult struct {
	Name  string
	State State
	Value any
	Error string
}

// FormValidationError carries every rejected field's message. It is the
// expected, user-facing failure mode; nothing is persisted when it occurs.
type FormValidationError struct {
	FieldErrors map[string]string
}

func (e *FormValidationError) Error() string {
	if len(e.FieldErrors) == 0 {
		return "submission: validation failed"
	}
	names := make([]string, 0, len(e.FieldErrors))
	for name := range e.FieldErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.FieldErrors[name]))
	}
	return "submission: " + strings.Join(parts, "; ")
}

// Option customises a Validator.
type Option func(*Validator)

// WithGenreRegistry injects a custom genre registry.
func WithGenreRegistry(reg *genre.Registry) Option {
	return func(v *Validator) {
		if reg != nil {
			v.genres = reg
		}
	}
}

// WithCaptcha injects the captcha verification collaborator. Without one,
// captcha fields reject every submission that carries them.
func WithCaptcha(verifier captcha.Verifier) Option {
	return func(v *Validator) {
		v.captcha = verifier
	}
}

// Validator validates whole submissions against a schema.
type Validator struct {
	genres  *genre.Registry
	captcha captcha.Verifier
}

// New constructs a Validator with the built-in genre registry.
func New(options ...Option) *Validator {
	v := &Validator{genres: genre.NewRegistry()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(v)
	}
	return v
}

// Result is a validated submission: cleaned typed values keyed by field name
// plus per-field outcomes in rendering order. Captcha fields verify but never
// appear in Cleaned.
type Result struct {
	Cleaned map[string]any
	Fields  []FieldResult
}

// Validate runs the full pipeline over raw submitted values. It returns a
// *FormValidationError when any field is rejected; the cleaned map is only
// meaningful on success.
func (v *Validator) Validate(ctx context.Context, schema model.Schema, raw map[string]any) (Result, error) {
	fields := schema.SortedFields()
	result := Result{
		Cleaned: make(map[string]any, len(fields)),
		Fields:  make([]FieldResult, 0, len(fields)),
	}
	fieldErrors := make(map[string]string)

	// First pass coerces every field so controllers are resolved from typed
	// values regardless of payload order.
	coerced := make(map[string]any, len(fields))
	for _, ff := range fields {
		field := ff.Field
		value, err := v.genres.Coerce(ctx, field.Genre, raw[field.Name], genre.CoerceContext{})
		if err != nil {
			return result, fmt.Errorf("submission: coerce %q: %w", field.Name, err)
		}
		coerced[field.Name] = value
	}

	for _, ff := range fields {
		field := ff.Field
		fr := FieldResult{Name: field.Name, State: StatePending}

		if field.Genre == model.GenreCaptcha {
			fr = v.verifyCaptcha(ctx, field, raw[field.Name])
			result.Fields = append(result.Fields, fr)
			if fr.State == StateRejected {
				fieldErrors[field.Name] = fr.Error
			}
			continue
		}

		fr.State = StateCoercing
		value := coerced[field.Name]

		required := v.effectiveRequired(schema, field, coerced)
		if model.IsEmptyValue(value) || isRemoval(value) {
			if required {
				fr.State = StateRejected
				fr.Error = msgRequired
				fieldErrors[field.Name] = fr.Error
			} else {
				fr.State = StateAccepted
				fr.Value = value
				result.Cleaned[field.Name] = value
			}
			result.Fields = append(result.Fields, fr)
			continue
		}

		if field.Genre.Selectable() {
			if !v.validChoice(field, value) {
				fr.State = StateRejected
				fr.Error = msgInvalidChoice
				fieldErrors[field.Name] = fr.Error
				result.Fields = append(result.Fields, fr)
				continue
			}
		}

		fr.State = StateValidating
		if msg, rejected := v.runCheckers(field, value); rejected {
			fr.State = StateRejected
			fr.Error = msg
			fieldErrors[field.Name] = msg
			result.Fields = append(result.Fields, fr)
			continue
		}

		fr.State = StateAccepted
		fr.Value = value
		result.Cleaned[field.Name] = value
		result.Fields = append(result.Fields, fr)
	}

	if len(fieldErrors) > 0 {
		return result, &FormValidationError{FieldErrors: fieldErrors}
	}
	return result, nil
}

// effectiveRequired resolves conditional requiredness: a dependent field is
// never required while its controller's value does not select it.
// isRemoval reports whether a coerced value is the upload-removal sentinel.
// It clears the stored value, so requiredness treats it like an empty input.
func isRemoval(value any) bool {
	_, ok := value.(genre.Removal)
	return ok
}

func (v *Validator) effectiveRequired(schema model.Schema, field model.Field, coerced map[string]any) bool {
	if field.DependsOn.IsZero() {
		return field.IsRequired
	}
	controller, ok := schema.ControllerOf(field)
	if !ok {
		return false
	}
	if !schema.DependencySelected(field, coerced[controller.Field.Name]) {
		return false
	}
	return field.IsRequired
}

// validChoice checks selected ids against the field's active option set.
func (v *Validator) validChoice(field model.Field, value any) bool {
	switch ids := value.(type) {
	case []int64:
		for _, id := range ids {
			if !field.HasOption(id) {
				return false
			}
		}
		return true
	default:
		id, ok := model.AsInt64(value)
		if !ok {
			return false
		}
		return field.HasOption(id)
	}
}

// runCheckers applies the field's active validators in attachment order;
// the first violation short-circuits.
func (v *Validator) runCheckers(field model.Field, value any) (string, bool) {
	checkers, err := validation.CompileAll(field.Validators)
	if err != nil {
		// Misconfigured validators reject the field rather than accepting
		// unvalidated input.
		return err.Error(), true
	}
	for _, checker := range checkers {
		if err := checker.Check(value); err != nil {
			return err.Error(), true
		}
	}
	return "", false
}

func (v *Validator) verifyCaptcha(ctx context.Context, field model.Field, raw any) FieldResult {
	fr := FieldResult{Name: field.Name, State: StateValidating}

	token, _ := raw.(string)
	if strings.TrimSpace(token) == "" {
		fr.State = StateRejected
		fr.Error = msgCaptchaMissing
		return fr
	}
	if v.captcha == nil {
		fr.State = StateRejected
		fr.Error = msgCaptchaFailed
		return fr
	}
	ok, err := v.captcha.Verify(ctx, token)
	if err != nil || !ok {
		fr.State = StateRejected
		fr.Error = msgCaptchaFailed
		return fr
	}
	fr.State = StateAccepted
	return fr
}
