package schemafile

import (
	"fmt"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/validation"
)

// Severity ranks a lint finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one lint finding, attributed to a field when applicable.
type Issue struct {
	Severity Severity
	Field    string
	Message  string
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: field %q: %s", i.Severity, i.Field, i.Message)
}

// Lint checks a document for configuration problems: malformed validator
// literals, duplicate field names, unknown genres, selectable fields without
// options, unresolvable dependency references, and upload fields missing
// their guard validators. Errors make the document unusable; warnings are
// advisory.
func Lint(doc *Document) []Issue {
	var issues []Issue
	report := func(severity Severity, field, format string, args ...any) {
		issues = append(issues, Issue{
			Severity: severity,
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if doc.Title == "" {
		report(SeverityError, "", "form title is required")
	}

	schema := doc.Schema()
	seen := make(map[string]bool, len(schema.Fields))
	fieldIDs := make(map[int64]bool, len(schema.Fields))
	optionIDs := make(map[int64]bool)

	for _, ff := range schema.Fields {
		fieldIDs[ff.Field.ID] = true
		for _, opt := range ff.Field.Options {
			optionIDs[opt.ID] = true
		}
	}

	for index, ff := range schema.Fields {
		field := ff.Field
		name := field.Name

		if seen[name] {
			report(SeverityError, name, "duplicate field name")
		}
		seen[name] = true

		if !field.Genre.Valid() {
			report(SeverityError, name, "unknown genre %q", field.Genre)
		}
		if field.Genre.Selectable() && len(field.Options) == 0 {
			report(SeverityError, name, "selectable genre %q has no options", field.Genre)
		}

		for _, def := range field.Validators {
			if _, err := validation.Parse(def.Kind, def.Value); err != nil {
				report(SeverityError, name, "validator %s: %v", def.Kind, err)
			}
		}

		if field.Genre == model.GenreUploadFile {
			if _, ok := field.Validator(validation.KindFileExtension); !ok {
				report(SeverityWarning, name, "upload field should carry a %s validator", validation.KindFileExtension)
			}
			if _, ok := doc.Fields[index].Validators[validation.KindFileSize]; !ok {
				report(SeverityWarning, name, "upload field has no %s validator; the %s MB default applies", validation.KindFileSize, defaultUploadSizeMB)
			}
		}

		if !field.DependsOn.IsZero() {
			switch field.DependsOn.Kind {
			case model.DependsOnField:
				if !fieldIDs[field.DependsOn.ID] {
					report(SeverityError, name, "depends on unknown field id %d", field.DependsOn.ID)
				}
			case model.DependsOnOption:
				if !optionIDs[field.DependsOn.ID] {
					report(SeverityError, name, "depends on unknown option id %d", field.DependsOn.ID)
				}
			default:
				report(SeverityError, name, "unknown dependency kind %q", field.DependsOn.Kind)
			}
		}
	}

	for _, api := range schema.APIs {
		if api.URL == "" {
			report(SeverityError, "", "api %q has no url", api.Title)
		}
		switch api.ExecuteTime {
		case model.PhasePreLoad, model.PhasePostLoad:
		default:
			report(SeverityError, "", "api %q: unknown execute_time %q", api.Title, api.ExecuteTime)
		}
	}

	return issues
}

// HasErrors reports whether any finding is severity error.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
