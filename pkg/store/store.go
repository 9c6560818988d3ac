// Package store finalizes validated submissions into FormResponse records and
// gates form availability. It owns the create and partial-update lifecycles,
// including the external API phases and upload-file bookkeeping that happen at
// save time.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formflow/pkg/apicall"
	"github.com/goliatone/go-formflow/pkg/genre"
	"github.com/goliatone/go-formflow/pkg/model"
)

// Repository is the persistence collaborator. Implementations return
// model.ErrNotAvailable for unknown forms and model.ErrResponseNotFound for
// unknown responses.
type Repository interface {
	FormByID(ctx context.Context, id int64) (model.Schema, error)
	PublishedForms(ctx context.Context) ([]model.Form, error)
	ResponseCount(ctx context.Context, formID int64) (int, error)
	ResponseByUniqueID(ctx context.Context, id uuid.UUID) (model.FormResponse, error)
	CreateResponse(ctx context.Context, response *model.FormResponse) error
	UpdateResponse(ctx context.Context, response *model.FormResponse) error
}

// Store orchestrates response persistence around a Repository.
type Store struct {
	repo   Repository
	genres *genre.Registry
	files  genre.FileStore
	calls  *apicall.Orchestrator
	logger *slog.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

// Option configures a Store.
type Option func(*Store)

// WithGenreRegistry replaces the coercion registry used when data records are
// regenerated at save time.
func WithGenreRegistry(registry *genre.Registry) Option {
	return func(s *Store) {
		if registry != nil {
			s.genres = registry
		}
	}
}

// WithFileStore supplies the storage collaborator for upload_file fields.
// Without it, raw uploads pass through unstored.
func WithFileStore(files genre.FileStore) Option {
	return func(s *Store) {
		s.files = files
	}
}

// WithOrchestrator wires the external API phases into save.
func WithOrchestrator(calls *apicall.Orchestrator) Option {
	return func(s *Store) {
		s.calls = calls
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for availability checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store over a repository.
func New(repo Repository, options ...Option) *Store {
	s := &Store{
		repo:   repo,
		genres: genre.NewRegistry(),
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.New,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// AvailableSchema loads a form's schema and enforces the availability gate:
// published, inside its validity window, and under its submission cap. Every
// failure mode collapses to model.ErrNotAvailable.
func (s *Store) AvailableSchema(ctx context.Context, formID int64) (model.Schema, error) {
	schema, err := s.repo.FormByID(ctx, formID)
	if err != nil {
		return model.Schema{}, err
	}
	count, err := s.repo.ResponseCount(ctx, formID)
	if err != nil {
		return model.Schema{}, fmt.Errorf("store: count responses: %w", err)
	}
	if !schema.Form.AcceptableAt(s.now(), count) {
		return model.Schema{}, model.ErrNotAvailable
	}
	return schema, nil
}

// ValidForms lists the forms currently accepting submissions. The limit check
// is a best-effort count read, not a reservation.
func (s *Store) ValidForms(ctx context.Context) ([]model.Form, error) {
	published, err := s.repo.PublishedForms(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list forms: %w", err)
	}
	now := s.now()
	out := make([]model.Form, 0, len(published))
	for _, form := range published {
		count, err := s.repo.ResponseCount(ctx, form.ID)
		if err != nil {
			return nil, fmt.Errorf("store: count responses: %w", err)
		}
		if form.AcceptableAt(now, count) {
			out = append(out, form)
		}
	}
	return out, nil
}

// SchemaByID loads a form aggregate without the availability gate. Operations
// on existing responses use it so an exhausted or expired form can still have
// its responses read and edited.
func (s *Store) SchemaByID(ctx context.Context, formID int64) (model.Schema, error) {
	return s.repo.FormByID(ctx, formID)
}

// Response fetches a stored submission by its public unique id.
func (s *Store) Response(ctx context.Context, uniqueID uuid.UUID) (model.FormResponse, error) {
	return s.repo.ResponseByUniqueID(ctx, uniqueID)
}

// Save persists a new submission. Both API phases run against the validated
// payload; their records are stored only when at least one call produced
// output. Upload fields are stored to the file collaborator here, after
// validation accepted them.
func (s *Store) Save(ctx context.Context, schema model.Schema, cleaned map[string]any, requester apicall.Requester) (model.FormResponse, error) {
	records, err := s.runPhases(ctx, schema, requester, cleaned, model.PhasePreLoad, model.PhasePostLoad)
	if err != nil {
		return model.FormResponse{}, err
	}

	data, err := s.buildData(ctx, schema, cleaned, nil)
	if err != nil {
		return model.FormResponse{}, err
	}

	response := model.FormResponse{
		UniqueID: s.newID(),
		FormID:   schema.Form.ID,
		Data:     data,
		UserIP:   requester.UserIP,
	}
	if len(records) > 0 {
		response.APIResponse = records
	}

	if err := s.repo.CreateResponse(ctx, &response); err != nil {
		return model.FormResponse{}, fmt.Errorf("store: create response: %w", err)
	}
	s.logger.Info("store: response created",
		"form", schema.Form.ID, "response", response.UniqueID, "fields", len(data))
	return response, nil
}

// Update merges changed fields into an existing submission and regenerates its
// data array. The prior record is threaded through so replaced uploads delete
// their old files. API records are replaced only when the new post-load run
// produced output; otherwise the prior records are preserved. An empty change
// set leaves the response untouched.
func (s *Store) Update(ctx context.Context, schema model.Schema, changed map[string]any, uniqueID uuid.UUID, requester apicall.Requester) (model.FormResponse, error) {
	if !schema.Form.IsEditable {
		return model.FormResponse{}, model.ErrNotEditable
	}

	response, err := s.repo.ResponseByUniqueID(ctx, uniqueID)
	if err != nil {
		return model.FormResponse{}, err
	}
	if response.FormID != schema.Form.ID {
		return model.FormResponse{}, model.ErrResponseNotFound
	}

	merged := response.PureData()
	effective := 0
	for name, value := range changed {
		if _, ok := schema.FieldByName(name); !ok {
			continue
		}
		merged[name] = value
		effective++
	}
	if effective == 0 {
		return response, nil
	}

	records, err := s.runPhases(ctx, schema, requester, merged, model.PhasePostLoad)
	if err != nil {
		return model.FormResponse{}, err
	}

	data, err := s.buildData(ctx, schema, merged, &response)
	if err != nil {
		return model.FormResponse{}, err
	}

	response.Data = data
	if len(records) > 0 {
		response.APIResponse = records
	}
	if requester.UserIP != "" {
		response.UserIP = requester.UserIP
	}

	if err := s.repo.UpdateResponse(ctx, &response); err != nil {
		return model.FormResponse{}, fmt.Errorf("store: update response: %w", err)
	}
	s.logger.Info("store: response updated",
		"form", schema.Form.ID, "response", response.UniqueID, "changed", effective)
	return response, nil
}

func (s *Store) runPhases(ctx context.Context, schema model.Schema, requester apicall.Requester, payload map[string]any, phases ...model.ExecutePhase) ([]model.CallRecord, error) {
	if s.calls == nil {
		return nil, nil
	}
	var records []model.CallRecord
	for _, phase := range phases {
		phaseRecords, err := s.calls.Execute(ctx, schema, phase, requester, payload)
		if err != nil {
			return nil, fmt.Errorf("store: %s phase: %w", phase, err)
		}
		records = append(records, phaseRecords...)
	}
	return records, nil
}

// buildData assembles the ordered data array from the payload. Record order
// follows the form's rendering order regardless of payload key order, which
// is what makes positional re-association against rendered fields work.
// Captcha fields are never persisted.
func (s *Store) buildData(ctx context.Context, schema model.Schema, payload map[string]any, prior *model.FormResponse) ([]model.FieldRecord, error) {
	fields := schema.SortedFields()
	data := make([]model.FieldRecord, 0, len(fields))
	priorData := map[string]any{}
	if prior != nil {
		priorData = prior.PureData()
	}

	for _, ff := range fields {
		field := ff.Field
		if field.Genre == model.GenreCaptcha {
			continue
		}

		cc := genre.CoerceContext{Files: s.files}
		if ref, ok := genre.RefOf(priorData[field.Name]); ok {
			cc.Prior = &ref
		}

		value, err := s.genres.Coerce(ctx, field.Genre, payload[field.Name], cc)
		if err != nil {
			return nil, fmt.Errorf("store: field %q: %w", field.Name, err)
		}
		if _, ok := value.(genre.Removal); ok {
			// No file store wired; the cleared value is still cleared.
			value = nil
		}

		record := model.FieldRecord{
			ID:    field.ID,
			Name:  field.Name,
			Label: field.Label,
			Genre: field.Genre,
			Value: value,
		}
		if ff.Category != nil {
			record.Category = ff.Category.Title
		}
		if !field.DependsOn.IsZero() {
			dep := &model.DependsOnRecord{
				ID:   field.DependsOn.ID,
				Type: field.DependsOn.Kind,
			}
			if controller, ok := schema.ControllerOf(field); ok {
				dep.Value = payload[controller.Field.Name]
			}
			record.DependsOn = dep
		}
		data = append(data, record)
	}
	return data, nil
}
