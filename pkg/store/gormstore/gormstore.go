// Package gormstore implements the persistence repository on GORM, supporting
// SQLite for development and PostgreSQL for production deployments.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config holds the connection settings.
type Config struct {
	Driver Driver
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a Repository over a GORM connection.
type Store struct {
	db *gorm.DB
}

// Open connects, configures the pool, and migrates the schema.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("gormstore: unknown driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: connect: %w", err)
	}

	if cfg.MaxOpenConns > 0 || cfg.MaxIdleConns > 0 || cfg.ConnMaxLifetime > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("gormstore: configure pool: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	return NewWithDB(db)
}

// NewWithDB wraps an existing connection and migrates the schema. Used by
// tests with an in-memory SQLite database.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("gormstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

// FormByID loads a form with its field associations, options, validators,
// categories, and attached APIs resolved into a schema aggregate.
func (s *Store) FormByID(ctx context.Context, id int64) (model.Schema, error) {
	var row formRow
	err := s.preloadForm(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Schema{}, model.ErrNotAvailable
	}
	if err != nil {
		return model.Schema{}, fmt.Errorf("gormstore: load form: %w", err)
	}
	return rowToSchema(row), nil
}

// FormBySlug loads a form aggregate by its public slug.
func (s *Store) FormBySlug(ctx context.Context, slug string) (model.Schema, error) {
	var row formRow
	err := s.preloadForm(ctx).Where("slug = ?", slug).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Schema{}, model.ErrNotAvailable
	}
	if err != nil {
		return model.Schema{}, fmt.Errorf("gormstore: load form: %w", err)
	}
	return rowToSchema(row), nil
}

func (s *Store) preloadForm(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("weight ASC") }).
		Preload("Fields.Field").
		Preload("Fields.Field.Options", func(db *gorm.DB) *gorm.DB { return db.Order("weight ASC") }).
		Preload("Fields.Field.Options.Option").
		Preload("Fields.Field.Validators").
		Preload("Fields.Category").
		Preload("APIs", func(db *gorm.DB) *gorm.DB { return db.Order("weight ASC") }).
		Preload("APIs.API")
}

// PublishedForms lists forms in publish status. Window and limit filtering is
// the caller's concern.
func (s *Store) PublishedForms(ctx context.Context) ([]model.Form, error) {
	var rows []formRow
	err := s.db.WithContext(ctx).
		Where("status = ?", string(model.StatusPublish)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gormstore: list forms: %w", err)
	}
	out := make([]model.Form, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// ResponseCount counts stored responses for a form.
func (s *Store) ResponseCount(ctx context.Context, formID int64) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&responseRow{}).
		Where("form_id = ?", formID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gormstore: count responses: %w", err)
	}
	return int(count), nil
}

// ResponseByUniqueID fetches a response by its public unique id.
func (s *Store) ResponseByUniqueID(ctx context.Context, id uuid.UUID) (model.FormResponse, error) {
	var row responseRow
	err := s.db.WithContext(ctx).Where("unique_id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.FormResponse{}, model.ErrResponseNotFound
	}
	if err != nil {
		return model.FormResponse{}, fmt.Errorf("gormstore: load response: %w", err)
	}
	return row.toModel()
}

// CreateResponse inserts a new response and backfills its row id.
func (s *Store) CreateResponse(ctx context.Context, response *model.FormResponse) error {
	row, err := responseToRow(response)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("gormstore: create response: %w", err)
	}
	response.ID = row.ID
	return nil
}

// UpdateResponse rewrites the mutable columns of an existing response.
func (s *Store) UpdateResponse(ctx context.Context, response *model.FormResponse) error {
	row, err := responseToRow(response)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Model(&responseRow{}).
		Where("unique_id = ?", row.UniqueID).
		Updates(map[string]any{
			"data":         row.Data,
			"api_response": row.APIResponse,
			"user_ip":      row.UserIP,
		})
	if result.Error != nil {
		return fmt.Errorf("gormstore: update response: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrResponseNotFound
	}
	return nil
}

// CreateForm persists a schema aggregate, reusing existing fields, options,
// and categories by their unique names. Used by the seeding path.
func (s *Store) CreateForm(ctx context.Context, schema model.Schema) (int64, error) {
	var formID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		form := formRow{
			Title:          schema.Form.Title,
			Slug:           schema.Form.Slug,
			Status:         string(schema.Form.Status),
			SubmitText:     schema.Form.SubmitText,
			RedirectURL:    schema.Form.RedirectURL,
			SuccessMessage: schema.Form.SuccessMessage,
			Style:          schema.Form.Style,
			Direction:      string(schema.Form.Direction),
			LimitTo:        schema.Form.LimitTo,
			ValidFrom:      schema.Form.ValidFrom,
			ValidTo:        schema.Form.ValidTo,
			IsEditable:     schema.Form.IsEditable,
		}
		if form.Slug == "" {
			form.Slug = model.Slugify(form.Title)
		}
		if err := tx.Create(&form).Error; err != nil {
			return fmt.Errorf("create form: %w", err)
		}
		formID = form.ID

		for _, ff := range schema.Fields {
			fieldID, err := upsertField(tx, ff.Field)
			if err != nil {
				return err
			}
			link := formFieldRow{
				FormID:   form.ID,
				FieldID:  fieldID,
				Position: string(ff.Position),
				Weight:   ff.Weight,
			}
			if ff.Category != nil {
				categoryID, err := upsertCategory(tx, *ff.Category)
				if err != nil {
					return err
				}
				link.CategoryID = &categoryID
			}
			if err := tx.Create(&link).Error; err != nil {
				return fmt.Errorf("associate field %q: %w", ff.Field.Name, err)
			}
		}

		for _, api := range schema.APIs {
			headers := ""
			if len(api.Headers) > 0 {
				raw, err := json.Marshal(api.Headers)
				if err != nil {
					return fmt.Errorf("encode headers for %q: %w", api.Title, err)
				}
				headers = string(raw)
			}
			manager := apiManagerRow{
				Title:       api.Title,
				URL:         api.URL,
				Headers:     headers,
				Method:      api.Method,
				Body:        api.Body,
				ExecuteTime: string(api.ExecuteTime),
				Response:    api.Response,
				CacheBy:     string(api.CacheBy),
				IsActive:    api.IsActive,
			}
			if err := tx.Create(&manager).Error; err != nil {
				return fmt.Errorf("create api %q: %w", api.Title, err)
			}
			through := formAPIRow{FormID: form.ID, APIID: manager.ID, Weight: api.Weight}
			if err := tx.Create(&through).Error; err != nil {
				return fmt.Errorf("associate api %q: %w", api.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("gormstore: %w", err)
	}
	return formID, nil
}

func upsertField(tx *gorm.DB, field model.Field) (int64, error) {
	name := field.Name
	if name == "" {
		name = model.Slugify(field.Label)
	}
	row := fieldRow{
		Label:         field.Label,
		Name:          name,
		Genre:         string(field.Genre),
		IsRequired:    field.IsRequired,
		Placeholder:   field.Placeholder,
		Default:       field.Default,
		HelpText:      field.HelpText,
		IsActive:      field.IsActive,
		ReadOnly:      field.ReadOnly,
		WriteOnly:     field.WriteOnly,
		DependsOnKind: string(field.DependsOn.Kind),
		DependsOnID:   field.DependsOn.ID,
	}
	var existing fieldRow
	err := tx.Where("name = ?", name).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(&row).Error; err != nil {
			return 0, fmt.Errorf("create field %q: %w", name, err)
		}
	case err != nil:
		return 0, fmt.Errorf("lookup field %q: %w", name, err)
	default:
		row.ID = existing.ID
		if err := tx.Save(&row).Error; err != nil {
			return 0, fmt.Errorf("update field %q: %w", name, err)
		}
	}

	for index, opt := range field.Options {
		option := optionRow{Name: opt.Name, IsActive: opt.IsActive}
		if err := tx.Where(optionRow{Name: opt.Name}).FirstOrCreate(&option).Error; err != nil {
			return 0, fmt.Errorf("create option %q: %w", opt.Name, err)
		}
		weight := opt.Weight
		if weight == 0 {
			weight = index + 1
		}
		link := fieldOptionRow{FieldID: row.ID, OptionID: option.ID, Weight: weight}
		if err := tx.Where(fieldOptionRow{FieldID: row.ID, OptionID: option.ID}).
			FirstOrCreate(&link).Error; err != nil {
			return 0, fmt.Errorf("associate option %q: %w", opt.Name, err)
		}
	}

	for _, def := range field.Validators {
		validator := validatorRow{
			FieldID:      row.ID,
			Kind:         def.Kind,
			Value:        def.Value,
			ErrorMessage: def.ErrorMessage,
			IsActive:     def.IsActive,
		}
		if err := tx.Where(validatorRow{FieldID: row.ID, Kind: def.Kind}).
			Assign(validatorRow{Value: def.Value, ErrorMessage: def.ErrorMessage, IsActive: def.IsActive}).
			FirstOrCreate(&validator).Error; err != nil {
			return 0, fmt.Errorf("attach validator %q: %w", def.Kind, err)
		}
	}
	return row.ID, nil
}

func upsertCategory(tx *gorm.DB, category model.FieldCategory) (int64, error) {
	row := categoryRow{Title: category.Title, IsActive: category.IsActive, Weight: category.Weight}
	if category.ParentID != 0 {
		parent := category.ParentID
		row.ParentID = &parent
	}
	if err := tx.Where(categoryRow{Title: category.Title}).FirstOrCreate(&row).Error; err != nil {
		return 0, fmt.Errorf("create category %q: %w", category.Title, err)
	}
	return row.ID, nil
}

func rowToSchema(row formRow) model.Schema {
	schema := model.Schema{Form: row.toModel()}
	for _, link := range row.Fields {
		schema.Fields = append(schema.Fields, link.toModel())
	}
	sort.SliceStable(schema.Fields, func(i, j int) bool {
		return schema.Fields[i].Weight < schema.Fields[j].Weight
	})
	for _, link := range row.APIs {
		schema.APIs = append(schema.APIs, link.toModel())
	}
	return schema
}

func responseToRow(response *model.FormResponse) (responseRow, error) {
	row := responseRow{
		ID:       response.ID,
		UniqueID: response.UniqueID.String(),
		FormID:   response.FormID,
		UserIP:   response.UserIP,
	}
	data, err := json.Marshal(response.Data)
	if err != nil {
		return responseRow{}, fmt.Errorf("gormstore: encode data: %w", err)
	}
	row.Data = data
	if len(response.APIResponse) > 0 {
		apiData, err := json.Marshal(response.APIResponse)
		if err != nil {
			return responseRow{}, fmt.Errorf("gormstore: encode api response: %w", err)
		}
		row.APIResponse = apiData
	}
	return row, nil
}

func parseUUID(s string) (uuid.UUID, error) {
	uid, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("gormstore: parse unique id: %w", err)
	}
	return uid, nil
}
