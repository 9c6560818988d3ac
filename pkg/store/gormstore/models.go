package gormstore

import (
	"encoding/json"
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Row types mirror the relational shape: fields, options, categories, and API
// managers are independent tables shared by reference, with weighted through
// tables binding them to forms.

type formRow struct {
	ID             int64  `gorm:"primaryKey"`
	Title          string `gorm:"size:255;not null"`
	Slug           string `gorm:"size:255;uniqueIndex;not null"`
	Status         string `gorm:"size:32;index;not null"`
	SubmitText     string
	RedirectURL    string
	SuccessMessage string
	Style          string
	Direction      string `gorm:"size:8"`
	LimitTo        *int
	ValidFrom      *time.Time
	ValidTo        *time.Time
	IsEditable     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Fields []formFieldRow `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE"`
	APIs   []formAPIRow   `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE"`
}

func (formRow) TableName() string { return "forms" }

type fieldRow struct {
	ID            int64  `gorm:"primaryKey"`
	Label         string `gorm:"size:255;not null"`
	Name          string `gorm:"size:255;uniqueIndex;not null"`
	Genre         string `gorm:"size:32;not null"`
	IsRequired    bool
	Placeholder   string
	Default       string
	HelpText      string
	IsActive      bool `gorm:"index"`
	ReadOnly      bool
	WriteOnly     bool
	DependsOnKind string `gorm:"size:16"`
	DependsOnID   int64
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Options    []fieldOptionRow `gorm:"foreignKey:FieldID;constraint:OnDelete:CASCADE"`
	Validators []validatorRow   `gorm:"foreignKey:FieldID;constraint:OnDelete:CASCADE"`
}

func (fieldRow) TableName() string { return "fields" }

type optionRow struct {
	ID       int64  `gorm:"primaryKey"`
	Name     string `gorm:"size:255;not null"`
	IsActive bool
}

func (optionRow) TableName() string { return "options" }

// fieldOptionRow links a reusable option to a field with a display weight.
type fieldOptionRow struct {
	ID       int64 `gorm:"primaryKey"`
	FieldID  int64 `gorm:"uniqueIndex:idx_field_option"`
	OptionID int64 `gorm:"uniqueIndex:idx_field_option"`
	Weight   int

	Option optionRow `gorm:"foreignKey:OptionID"`
}

func (fieldOptionRow) TableName() string { return "field_options" }

type validatorRow struct {
	ID           int64  `gorm:"primaryKey"`
	FieldID      int64  `gorm:"uniqueIndex:idx_field_validator"`
	Kind         string `gorm:"size:32;uniqueIndex:idx_field_validator"`
	Value        string `gorm:"not null"`
	ErrorMessage string
	IsActive     bool
}

func (validatorRow) TableName() string { return "validators" }

type categoryRow struct {
	ID       int64  `gorm:"primaryKey"`
	Title    string `gorm:"size:255;uniqueIndex;not null"`
	IsActive bool
	ParentID *int64
	Weight   int
}

func (categoryRow) TableName() string { return "field_categories" }

// formFieldRow is the form↔field through table carrying per-form layout.
type formFieldRow struct {
	ID         int64  `gorm:"primaryKey"`
	FormID     int64  `gorm:"uniqueIndex:idx_form_field"`
	FieldID    int64  `gorm:"uniqueIndex:idx_form_field"`
	Position   string `gorm:"size:16"`
	CategoryID *int64
	Weight     int

	Field    fieldRow     `gorm:"foreignKey:FieldID"`
	Category *categoryRow `gorm:"foreignKey:CategoryID"`
}

func (formFieldRow) TableName() string { return "form_fields" }

type apiManagerRow struct {
	ID          int64  `gorm:"primaryKey"`
	Title       string `gorm:"size:255;not null"`
	URL         string `gorm:"not null"`
	Headers     string
	Method      string `gorm:"size:16"`
	Body        string
	ExecuteTime string `gorm:"size:16"`
	Response    string
	CacheBy     string `gorm:"size:16"`
	IsActive    bool
}

func (apiManagerRow) TableName() string { return "form_api_managers" }

// formAPIRow is the form↔API through table carrying execution order.
type formAPIRow struct {
	ID     int64 `gorm:"primaryKey"`
	FormID int64 `gorm:"uniqueIndex:idx_form_api"`
	APIID  int64 `gorm:"uniqueIndex:idx_form_api"`
	Weight int

	API apiManagerRow `gorm:"foreignKey:APIID"`
}

func (formAPIRow) TableName() string { return "form_api_throughs" }

type responseRow struct {
	ID          int64  `gorm:"primaryKey"`
	UniqueID    string `gorm:"size:36;uniqueIndex;not null"`
	FormID      int64  `gorm:"index;not null"`
	Data        []byte
	APIResponse []byte
	UserIP      string `gorm:"size:45"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (responseRow) TableName() string { return "form_responses" }

func allModels() []any {
	return []any{
		&formRow{}, &fieldRow{}, &optionRow{}, &fieldOptionRow{},
		&validatorRow{}, &categoryRow{}, &formFieldRow{},
		&apiManagerRow{}, &formAPIRow{}, &responseRow{},
	}
}

func (r formRow) toModel() model.Form {
	return model.Form{
		ID:             r.ID,
		Title:          r.Title,
		Slug:           r.Slug,
		Status:         model.FormStatus(r.Status),
		SubmitText:     r.SubmitText,
		RedirectURL:    r.RedirectURL,
		SuccessMessage: r.SuccessMessage,
		Style:          r.Style,
		Direction:      model.FormDirection(r.Direction),
		LimitTo:        r.LimitTo,
		ValidFrom:      r.ValidFrom,
		ValidTo:        r.ValidTo,
		IsEditable:     r.IsEditable,
	}
}

func (r fieldRow) toModel() model.Field {
	field := model.Field{
		ID:          r.ID,
		Label:       r.Label,
		Name:        r.Name,
		Genre:       model.FieldGenre(r.Genre),
		IsRequired:  r.IsRequired,
		Placeholder: r.Placeholder,
		Default:     r.Default,
		HelpText:    r.HelpText,
		IsActive:    r.IsActive,
		ReadOnly:    r.ReadOnly,
		WriteOnly:   r.WriteOnly,
	}
	if r.DependsOnKind != "" && r.DependsOnID != 0 {
		field.DependsOn = model.DependencyRef{
			Kind: model.DependencyKind(r.DependsOnKind),
			ID:   r.DependsOnID,
		}
	}
	for _, link := range r.Options {
		field.Options = append(field.Options, model.Option{
			ID:       link.Option.ID,
			Name:     link.Option.Name,
			IsActive: link.Option.IsActive,
			Weight:   link.Weight,
		})
	}
	for _, v := range r.Validators {
		field.Validators = append(field.Validators, model.ValidatorDef{
			Kind:         v.Kind,
			Value:        v.Value,
			ErrorMessage: v.ErrorMessage,
			IsActive:     v.IsActive,
		})
	}
	return field
}

func (r formFieldRow) toModel() model.FormField {
	ff := model.FormField{
		Field:    r.Field.toModel(),
		Position: model.FieldPosition(r.Position),
		Weight:   r.Weight,
	}
	if r.Category != nil {
		parent := int64(0)
		if r.Category.ParentID != nil {
			parent = *r.Category.ParentID
		}
		ff.Category = &model.FieldCategory{
			ID:       r.Category.ID,
			Title:    r.Category.Title,
			IsActive: r.Category.IsActive,
			ParentID: parent,
			Weight:   r.Category.Weight,
		}
	}
	return ff
}

func (r formAPIRow) toModel() model.FormAPI {
	api := model.FormAPI{
		ID:          r.API.ID,
		Title:       r.API.Title,
		URL:         r.API.URL,
		Method:      r.API.Method,
		Body:        r.API.Body,
		ExecuteTime: model.ExecutePhase(r.API.ExecuteTime),
		Response:    r.API.Response,
		CacheBy:     model.CacheMethod(r.API.CacheBy),
		IsActive:    r.API.IsActive,
		Weight:      r.Weight,
	}
	if r.API.Headers != "" {
		_ = json.Unmarshal([]byte(r.API.Headers), &api.Headers)
	}
	return api
}

func (r responseRow) toModel() (model.FormResponse, error) {
	response := model.FormResponse{
		ID:     r.ID,
		FormID: r.FormID,
		UserIP: r.UserIP,
	}
	uid, err := parseUUID(r.UniqueID)
	if err != nil {
		return model.FormResponse{}, err
	}
	response.UniqueID = uid
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &response.Data); err != nil {
			return model.FormResponse{}, err
		}
	}
	if len(r.APIResponse) > 0 {
		if err := json.Unmarshal(r.APIResponse, &response.APIResponse); err != nil {
			return model.FormResponse{}, err
		}
	}
	return response, nil
}
