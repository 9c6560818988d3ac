// Package openapi exports form definitions as OpenAPI 3 documents so external
// clients can generate typed submission payloads for the HTTP boundary.
package openapi

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/validation"
)

// FieldSchema maps a single field to its OpenAPI property schema: the genre
// decides the base type, options become an enum, and attached validators
// become the matching constraints.
func FieldSchema(field model.Field) *openapi3.Schema {
	var schema *openapi3.Schema

	switch field.Genre {
	case model.GenreNumber:
		schema = openapi3.NewIntegerSchema()
	case model.GenreCheckbox:
		schema = openapi3.NewBoolSchema()
	case model.GenreMultiText:
		schema = openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	case model.GenreMultiCheckbox:
		items := openapi3.NewIntegerSchema()
		items.Enum = optionEnum(field)
		schema = openapi3.NewArraySchema().WithItems(items)
	case model.GenreDropdown, model.GenreRadio:
		schema = openapi3.NewIntegerSchema()
		schema.Enum = optionEnum(field)
	case model.GenreDate:
		schema = openapi3.NewStringSchema().WithFormat("date")
	case model.GenreTime:
		schema = openapi3.NewStringSchema().WithFormat("time")
	case model.GenreDatetime:
		schema = openapi3.NewStringSchema().WithFormat("date-time")
	case model.GenreEmail:
		schema = openapi3.NewStringSchema().WithFormat("email")
	case model.GenrePassword:
		schema = openapi3.NewStringSchema().WithFormat("password")
	case model.GenreUploadFile:
		schema = openapi3.NewStringSchema().WithFormat("binary")
	default:
		schema = openapi3.NewStringSchema()
	}

	schema.Title = field.Label
	schema.Description = field.HelpText
	if field.Default != "" {
		schema.Default = field.Default
	}
	if field.WriteOnly || field.Genre == model.GenrePassword || field.Genre == model.GenreCaptcha {
		schema.WriteOnly = true
	}
	if field.ReadOnly {
		schema.ReadOnly = true
	}

	applyValidators(schema, field)
	return schema
}

// FormSchema maps a form to the object schema of its submission payload.
// Captcha fields are included (clients must send the token) but flagged
// write-only since they never come back.
func FormSchema(schema model.Schema) *openapi3.Schema {
	object := openapi3.NewObjectSchema()
	object.Title = schema.Form.Title
	object.Description = schema.Form.SuccessMessage

	for _, ff := range schema.SortedFields() {
		field := ff.Field
		object.Properties[field.Name] = openapi3.NewSchemaRef("", FieldSchema(field))
		if field.IsRequired {
			object.Required = append(object.Required, field.Name)
		}
	}
	return object
}

// Document builds a complete OpenAPI description of the submission surface
// for the given forms.
func Document(title, version string, schemas ...model.Schema) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   title,
			Version: version,
		},
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{},
		},
		Paths: openapi3.NewPaths(),
	}

	for _, schema := range schemas {
		name := componentName(schema.Form)
		doc.Components.Schemas[name] = openapi3.NewSchemaRef("", FormSchema(schema))

		ref := "#/components/schemas/" + name
		operation := &openapi3.Operation{
			OperationID: "submit_" + name,
			Summary:     "Submit " + schema.Form.Title,
			RequestBody: &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().
					WithRequired(true).
					WithJSONSchemaRef(openapi3.NewSchemaRef(ref, nil)),
			},
			Responses: submitResponses(),
		}
		path := fmt.Sprintf("/forms/%d", schema.Form.ID)
		doc.Paths.Set(path, &openapi3.PathItem{Post: operation})
	}
	return doc
}

func submitResponses() *openapi3.Responses {
	responses := openapi3.NewResponses()
	responses.Set("201", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("response stored"),
	})
	responses.Set("400", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("validation failed, body carries field_errors"),
	})
	responses.Set("404", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("form not available"),
	})
	return responses
}

func optionEnum(field model.Field) []any {
	options := field.ActiveOptions()
	enum := make([]any, 0, len(options))
	for _, option := range options {
		enum = append(enum, option.ID)
	}
	return enum
}

func applyValidators(schema *openapi3.Schema, field model.Field) {
	for _, def := range field.Validators {
		if !def.IsActive {
			continue
		}
		parsed, err := validation.Parse(def.Kind, def.Value)
		if err != nil {
			continue
		}
		switch def.Kind {
		case validation.KindMaxLength:
			if n, ok := parsed.(int64); ok && n >= 0 {
				max := uint64(n)
				schema.MaxLength = &max
			}
		case validation.KindMinLength:
			if n, ok := parsed.(int64); ok && n >= 0 {
				schema.MinLength = uint64(n)
			}
		case validation.KindMaxValue:
			if n, ok := parsed.(int64); ok {
				max := float64(n)
				schema.Max = &max
			}
		case validation.KindMinValue:
			if n, ok := parsed.(int64); ok {
				min := float64(n)
				schema.Min = &min
			}
		case validation.KindRegex:
			schema.Pattern = def.Value
		}
	}
}

func componentName(form model.Form) string {
	if form.Slug != "" {
		return form.Slug
	}
	return model.Slugify(form.Title)
}
