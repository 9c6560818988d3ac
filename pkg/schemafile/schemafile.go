// Package schemafile loads form definitions from YAML documents, the seeding
// format used by the CLI. A document describes one form with its fields,
// options, validators, and attached APIs; Load converts it into the runtime
// schema aggregate and Lint reports configuration problems before anything
// reaches storage.
package schemafile

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/validation"
)

// defaultUploadSizeMB caps upload fields that declare no file-size validator.
const defaultUploadSizeMB = "5"

// Document is the YAML shape of one form definition.
type Document struct {
	Title          string     `yaml:"title"`
	Slug           string     `yaml:"slug,omitempty"`
	Status         string     `yaml:"status,omitempty"`
	SubmitText     string     `yaml:"submit_text,omitempty"`
	RedirectURL    string     `yaml:"redirect_url,omitempty"`
	SuccessMessage string     `yaml:"success_message,omitempty"`
	Direction      string     `yaml:"direction,omitempty"`
	LimitTo        *int       `yaml:"limit_to,omitempty"`
	ValidFrom      *time.Time `yaml:"valid_from,omitempty"`
	ValidTo        *time.Time `yaml:"valid_to,omitempty"`
	IsEditable     bool       `yaml:"is_editable,omitempty"`

	Fields []FieldDoc `yaml:"fields"`
	APIs   []APIDoc   `yaml:"apis,omitempty"`
}

// FieldDoc is one field entry inside a Document.
type FieldDoc struct {
	ID          int64              `yaml:"id,omitempty"`
	Label       string             `yaml:"label"`
	Name        string             `yaml:"name,omitempty"`
	Genre       string             `yaml:"genre"`
	Required    bool               `yaml:"required,omitempty"`
	Placeholder string             `yaml:"placeholder,omitempty"`
	Default     string             `yaml:"default,omitempty"`
	HelpText    string             `yaml:"help_text,omitempty"`
	Position    string             `yaml:"position,omitempty"`
	Category    string             `yaml:"category,omitempty"`
	Weight      int                `yaml:"weight,omitempty"`
	DependsOn   *DependencyDoc     `yaml:"depends_on,omitempty"`
	Options     []OptionDoc        `yaml:"options,omitempty"`
	Validators  map[string]RuleDoc `yaml:"validators,omitempty"`
}

// DependencyDoc points a field at its controller.
type DependencyDoc struct {
	Kind string `yaml:"kind"`
	ID   int64  `yaml:"id"`
}

// OptionDoc is one selectable value.
type OptionDoc struct {
	ID   int64  `yaml:"id,omitempty"`
	Name string `yaml:"name"`
}

// RuleDoc is one validator attachment. The map key in FieldDoc.Validators is
// the validator kind, which enforces the one-per-kind constraint structurally.
type RuleDoc struct {
	Value   string `yaml:"value"`
	Message string `yaml:"message,omitempty"`
}

// UnmarshalYAML accepts either a bare literal or the {value, message} form.
func (r *RuleDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Value = node.Value
		return nil
	}
	type plain RuleDoc
	return node.Decode((*plain)(r))
}

// APIDoc is one attached external call.
type APIDoc struct {
	Title       string            `yaml:"title"`
	URL         string            `yaml:"url"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Method      string            `yaml:"method,omitempty"`
	Body        string            `yaml:"body,omitempty"`
	ExecuteTime string            `yaml:"execute_time"`
	Response    string            `yaml:"response,omitempty"`
	CacheBy     string            `yaml:"cache_by,omitempty"`
	Weight      int               `yaml:"weight,omitempty"`
}

// Load reads and parses a document from a file path.
func Load(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schemafile: open %q: %w", path, err)
	}
	defer file.Close()
	return LoadReader(file)
}

// LoadFS reads a document from an fs.FS entry.
func LoadFS(fsys fs.FS, name string) (*Document, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("schemafile: open %q: %w", name, err)
	}
	defer file.Close()
	return LoadReader(file)
}

// LoadReader parses a document from a stream.
func LoadReader(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("schemafile: read: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("schemafile: parse: %w", err)
	}
	return &doc, nil
}

// Schema converts the document into the runtime aggregate. Field names fall
// back to the slugified label; weights fall back to declaration order.
func (d *Document) Schema() model.Schema {
	status := model.FormStatus(d.Status)
	if d.Status == "" {
		status = model.StatusDraft
	}
	slug := d.Slug
	if slug == "" {
		slug = model.Slugify(d.Title)
	}

	schema := model.Schema{
		Form: model.Form{
			Title:          d.Title,
			Slug:           slug,
			Status:         status,
			SubmitText:     d.SubmitText,
			RedirectURL:    d.RedirectURL,
			SuccessMessage: d.SuccessMessage,
			Direction:      model.FormDirection(d.Direction),
			LimitTo:        d.LimitTo,
			ValidFrom:      d.ValidFrom,
			ValidTo:        d.ValidTo,
			IsEditable:     d.IsEditable,
		},
	}

	for index, fd := range d.Fields {
		name := fd.Name
		if name == "" {
			name = model.Slugify(fd.Label)
		}
		weight := fd.Weight
		if weight == 0 {
			weight = index + 1
		}
		position := model.FieldPosition(fd.Position)
		if fd.Position == "" {
			position = model.PositionInorder
		}

		field := model.Field{
			ID:          fd.ID,
			Label:       fd.Label,
			Name:        name,
			Genre:       model.FieldGenre(fd.Genre),
			IsRequired:  fd.Required,
			Placeholder: fd.Placeholder,
			Default:     fd.Default,
			HelpText:    fd.HelpText,
			IsActive:    true,
		}
		if fd.DependsOn != nil {
			field.DependsOn = model.DependencyRef{
				Kind: model.DependencyKind(fd.DependsOn.Kind),
				ID:   fd.DependsOn.ID,
			}
		}
		for optIndex, od := range fd.Options {
			field.Options = append(field.Options, model.Option{
				ID:       od.ID,
				Name:     od.Name,
				IsActive: true,
				Weight:   optIndex + 1,
			})
		}
		// Map iteration order is random; keep validator attachment order
		// stable since the first failing rule wins.
		for _, kind := range sortedKinds(fd.Validators) {
			rule := fd.Validators[kind]
			field.Validators = append(field.Validators, model.ValidatorDef{
				Kind:         kind,
				Value:        rule.Value,
				ErrorMessage: rule.Message,
				IsActive:     true,
			})
		}
		if field.Genre == model.GenreUploadFile {
			if _, ok := fd.Validators[validation.KindFileSize]; !ok {
				field.Validators = append(field.Validators, model.ValidatorDef{
					Kind:     validation.KindFileSize,
					Value:    defaultUploadSizeMB,
					IsActive: true,
				})
			}
		}

		ff := model.FormField{Field: field, Position: position, Weight: weight}
		if fd.Category != "" {
			ff.Category = &model.FieldCategory{Title: fd.Category, IsActive: true, Weight: weight}
		}
		schema.Fields = append(schema.Fields, ff)
	}

	for index, ad := range d.APIs {
		method := ad.Method
		if method == "" {
			method = "GET"
		}
		weight := ad.Weight
		if weight == 0 {
			weight = index + 1
		}
		schema.APIs = append(schema.APIs, model.FormAPI{
			Title:       ad.Title,
			URL:         ad.URL,
			Headers:     ad.Headers,
			Method:      method,
			Body:        ad.Body,
			ExecuteTime: model.ExecutePhase(ad.ExecuteTime),
			Response:    ad.Response,
			CacheBy:     model.CacheMethod(ad.CacheBy),
			IsActive:    true,
			Weight:      weight,
		})
	}
	return schema
}

func sortedKinds(rules map[string]RuleDoc) []string {
	kinds := make([]string, 0, len(rules))
	for kind := range rules {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
