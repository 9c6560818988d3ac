package apicall

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/flosch/pongo2/v6"
)

var formDataToken = regexp.MustCompile(`^\{\{\s*form_data\s*\}\}$`)

// Evaluate renders a {{token}} template against the submission context. Each
// context key is addressable by name; a template consisting solely of the
// form_data token expands to the whole context serialized as JSON.
func Evaluate(tmpl string, data map[string]any) (string, error) {
	trimmed := strings.TrimSpace(tmpl)
	if trimmed == "" {
		return "", nil
	}
	if formDataToken.MatchString(trimmed) {
		raw, err := json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("apicall: encode form data: %w", err)
		}
		return string(raw), nil
	}

	parsed, err := pongo2.FromString(tmpl)
	if err != nil {
		return "", fmt.Errorf("apicall: parse template: %w", err)
	}

	context := make(pongo2.Context, len(data)+1)
	for key, value := range data {
		context[key] = value
	}
	if _, taken := context["form_data"]; !taken {
		if raw, err := json.Marshal(data); err == nil {
			context["form_data"] = string(raw)
		}
	}

	out, err := parsed.Execute(context)
	if err != nil {
		return "", fmt.Errorf("apicall: execute template: %w", err)
	}
	return out, nil
}
