package model

import (
	"time"
)

// FieldGenre is the closed enumeration of input kinds a Field can declare.
// The genre drives coercion, widget choice, and whether the field sources its
// values from an Option set.
type FieldGenre string

const (
	GenreText          FieldGenre = "text"
	GenreMultiText     FieldGenre = "multi_text"
	GenreTextArea      FieldGenre = "text_area"
	GenreNumber        FieldGenre = "number"
	GenreDate          FieldGenre = "date"
	GenreTime          FieldGenre = "time"
	GenreDatetime      FieldGenre = "datetime"
	GenreEmail         FieldGenre = "email"
	GenrePassword      FieldGenre = "password"
	GenreCheckbox      FieldGenre = "checkbox"
	GenreMultiCheckbox FieldGenre = "multi_checkbox"
	GenreRadio         FieldGenre = "radio"
	GenreDropdown      FieldGenre = "dropdown"
	GenreHidden        FieldGenre = "hidden"
	GenreCaptcha       FieldGenre = "captcha"
	GenreUploadFile    FieldGenre = "upload_file"
)

// Genres lists every known genre in declaration order.
func Genres() []FieldGenre {
	return []FieldGenre{
		GenreText, GenreMultiText, GenreTextArea, GenreNumber,
		GenreDate, GenreTime, GenreDatetime, GenreEmail, GenrePassword,
		GenreCheckbox, GenreMultiCheckbox, GenreRadio, GenreDropdown,
		GenreHidden, GenreCaptcha, GenreUploadFile,
	}
}

// Selectable reports whether the genre sources its values from an Option set.
func (g FieldGenre) Selectable() bool {
	switch g {
	case GenreDropdown, GenreRadio, GenreMultiCheckbox:
		return true
	default:
		return false
	}
}

// Valid reports whether g is a known genre.
func (g FieldGenre) Valid() bool {
	for _, known := range Genres() {
		if g == known {
			return true
		}
	}
	return false
}

// FormStatus is the publication state of a Form.
type FormStatus string

const (
	StatusDraft   FormStatus = "draft"
	StatusPending FormStatus = "pending"
	StatusPublish FormStatus = "publish"
	StatusSuspend FormStatus = "suspend"
)

// FormDirection is the text direction hint for rendered forms.
type FormDirection string

const (
	DirectionLTR FormDirection = "ltr"
	DirectionRTL FormDirection = "rtl"
)

// FieldPosition controls per-form layout of a field.
type FieldPosition string

const (
	PositionInline  FieldPosition = "inline"
	PositionInorder FieldPosition = "inorder"
	PositionBreak   FieldPosition = "break"
)

// ExecutePhase selects when an attached external API runs relative to the
// form lifecycle.
type ExecutePhase string

const (
	PhasePreLoad  ExecutePhase = "pre_load"
	PhasePostLoad ExecutePhase = "post_load"
)

// CacheMethod scopes a cached external-call result to a requester.
type CacheMethod string

const (
	CacheNone       CacheMethod = ""
	CacheSessionKey CacheMethod = "session_key"
	CacheUserID     CacheMethod = "user_id"
	CacheUserIP     CacheMethod = "user_ip"
)

// DependencyKind tags the variant held by a DependencyRef.
type DependencyKind string

const (
	DependsOnField  DependencyKind = "field"
	DependsOnOption DependencyKind = "option"
)

// DependencyRef is a weak back-reference from a dependent field to the field
// or option that controls it. The zero value means "no dependency"; there is
// no referential-integrity obligation beyond an existence check at evaluation
// time.
type DependencyRef struct {
	Kind DependencyKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	ID   int64          `json:"id,omitempty" yaml:"id,omitempty"`
}

// IsZero reports whether the reference points at nothing.
func (d DependencyRef) IsZero() bool {
	return d.Kind == "" || d.ID == 0
}

// Option is a selectable value shared by reference across fields. Display
// order comes from the weighted field association, surfaced here as Weight
// once the association is resolved.
type Option struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	Weight   int    `json:"weight"`
}

// ValidatorDef is a configured validation rule attached to a field. Value is
// a kind-specific literal; at most one validator of a given kind may be
// attached to a field.
type ValidatorDef struct {
	Kind         string `json:"kind"`
	Value        string `json:"value"`
	ErrorMessage string `json:"error_message,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// Field is the reusable declarative definition of one input. Name is globally
// unique and derived from Label via Slugify. Options and Validators hold the
// resolved active associations in display order.
type Field struct {
	ID          int64          `json:"id"`
	Label       string         `json:"label"`
	Name        string         `json:"name"`
	Genre       FieldGenre     `json:"genre"`
	IsRequired  bool           `json:"is_required"`
	Placeholder string         `json:"placeholder,omitempty"`
	Default     string         `json:"default,omitempty"`
	HelpText    string         `json:"help_text,omitempty"`
	IsActive    bool           `json:"is_active"`
	ReadOnly    bool           `json:"read_only,omitempty"`
	WriteOnly   bool           `json:"write_only,omitempty"`
	DependsOn   DependencyRef  `json:"depends_on,omitempty"`
	Options     []Option       `json:"options,omitempty"`
	Validators  []ValidatorDef `json:"validators,omitempty"`
}

// ActiveOptions filters the resolved option list to active entries, keeping
// association-weight order.
func (f Field) ActiveOptions() []Option {
	if len(f.Options) == 0 {
		return nil
	}
	out := make([]Option, 0, len(f.Options))
	for _, opt := range f.Options {
		if opt.IsActive {
			out = append(out, opt)
		}
	}
	return out
}

// HasOption reports whether id belongs to the field's active option set.
func (f Field) HasOption(id int64) bool {
	for _, opt := range f.ActiveOptions() {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// Validator returns the attached definition for kind, if present.
func (f Field) Validator(kind string) (ValidatorDef, bool) {
	for _, def := range f.Validators {
		if def.Kind == kind {
			return def, true
		}
	}
	return ValidatorDef{}, false
}

// FieldCategory groups fields for display. Categories form a tree through
// ParentID; ownership of members is by back-reference only.
type FieldCategory struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	IsActive bool   `json:"is_active"`
	ParentID int64  `json:"parent_id,omitempty"`
	Weight   int    `json:"weight"`
}

// FormField is the through-entity associating a field with a form. It carries
// per-form ordering and layout attributes; the same Field may appear on many
// forms with different weights and categories. Unique per (form, field).
type FormField struct {
	Field    Field          `json:"field"`
	Position FieldPosition  `json:"position"`
	Category *FieldCategory `json:"category,omitempty"`
	Weight   int            `json:"weight"`
}

// FormAPI configures one external call attached to a form. Execution order
// across a form's APIs follows Weight ascending.
type FormAPI struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Method      string            `json:"method"`
	Body        string            `json:"body,omitempty"`
	ExecuteTime ExecutePhase      `json:"execute_time"`
	Response    string            `json:"response,omitempty"`
	CacheBy     CacheMethod       `json:"cache_by,omitempty"`
	IsActive    bool              `json:"is_active"`
	Weight      int               `json:"weight"`
}

// Form is the administrator-composed container end users submit against.
type Form struct {
	ID             int64         `json:"id"`
	Title          string        `json:"title"`
	Slug           string        `json:"slug"`
	Status         FormStatus    `json:"status"`
	SubmitText     string        `json:"submit_text,omitempty"`
	RedirectURL    string        `json:"redirect_url,omitempty"`
	SuccessMessage string        `json:"success_message,omitempty"`
	Style          string        `json:"style,omitempty"`
	Direction      FormDirection `json:"direction,omitempty"`
	LimitTo        *int          `json:"limit_to,omitempty"`
	ValidFrom      *time.Time    `json:"valid_from,omitempty"`
	ValidTo        *time.Time    `json:"valid_to,omitempty"`
	IsEditable     bool          `json:"is_editable"`
}

// AcceptableAt reports whether the form currently accepts submissions:
// published, inside its validity window (open bounds unbounded), and under
// its submission cap. responses is the stored response count for the form.
func (f Form) AcceptableAt(now time.Time, responses int) bool {
	if f.Status != StatusPublish {
		return false
	}
	if f.ValidFrom != nil && now.Before(*f.ValidFrom) {
		return false
	}
	if f.ValidTo != nil && now.After(*f.ValidTo) {
		return false
	}
	if f.LimitTo != nil && responses >= *f.LimitTo {
		return false
	}
	return true
}
