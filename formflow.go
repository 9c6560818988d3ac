// Package formflow assembles the form engine: admin-defined forms built from
// reusable field definitions, rendered into field states, validated and
// coerced per genre, persisted as responses, with optional external API
// phases around save. The root package re-exports the common types and wires
// the pipeline so most callers never import the subpackages directly.
package formflow

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formflow/pkg/apicall"
	"github.com/goliatone/go-formflow/pkg/cache"
	"github.com/goliatone/go-formflow/pkg/captcha"
	"github.com/goliatone/go-formflow/pkg/genre"
	"github.com/goliatone/go-formflow/pkg/httpapi"
	"github.com/goliatone/go-formflow/pkg/metrics"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/store"
	"github.com/goliatone/go-formflow/pkg/submission"
)

// Schema is the fully resolved form aggregate handed to every pipeline stage.
type Schema = model.Schema

// Form is the administrative container of a composed form.
type Form = model.Form

// Field is a reusable field definition shared across forms.
type Field = model.Field

// FormResponse is one finalized submission.
type FormResponse = model.FormResponse

// FieldState is one field prepared for display.
type FieldState = render.FieldState

// Requester carries the caller identity used for per-call cache scoping.
type Requester = apicall.Requester

// Repository is the persistence seam; gormstore provides the SQL
// implementation.
type Repository = store.Repository

// Option configures an Engine.
type Option func(*Engine)

// WithCache backs external API call caching with the given store.
func WithCache(c cache.Store) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithFileStore supplies storage for upload_file values.
func WithFileStore(files genre.FileStore) Option {
	return func(e *Engine) {
		e.files = files
	}
}

// WithHTTPClient overrides the client used for external API calls.
func WithHTTPClient(client apicall.HTTPClient) Option {
	return func(e *Engine) {
		e.client = client
	}
}

// WithCaptchaVerifier enables captcha validation on submissions.
func WithCaptchaVerifier(verifier captcha.Verifier) Option {
	return func(e *Engine) {
		e.verifier = verifier
	}
}

// WithMetrics wires submission and call counters into the HTTP surface.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithCallTimeout bounds each external API call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.callTimeout = timeout
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine bundles the renderer, validator, call orchestrator and response
// store over a single repository.
type Engine struct {
	repo        Repository
	cache       cache.Store
	files       genre.FileStore
	client      apicall.HTTPClient
	verifier    captcha.Verifier
	metrics     *metrics.Metrics
	callTimeout time.Duration
	logger      *slog.Logger
	store       *store.Store
	renderer    *render.Renderer
	validator   *submission.Validator
	calls       *apicall.Orchestrator
}

// New wires an Engine over the repository.
func New(repo Repository, options ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(e)
	}

	callOptions := []apicall.Option{apicall.WithLogger(e.logger)}
	if e.cache != nil {
		callOptions = append(callOptions, apicall.WithCache(e.cache))
	}
	if e.client != nil {
		callOptions = append(callOptions, apicall.WithHTTPClient(e.client))
	}
	if e.metrics != nil {
		callOptions = append(callOptions, apicall.WithObserver(e.metrics))
	}
	if e.callTimeout > 0 {
		callOptions = append(callOptions, apicall.WithTimeout(e.callTimeout))
	}
	e.calls = apicall.New(callOptions...)

	validatorOptions := []submission.Option{}
	if e.verifier != nil {
		validatorOptions = append(validatorOptions, submission.WithCaptcha(e.verifier))
	}
	e.validator = submission.New(validatorOptions...)

	e.renderer = render.New()
	e.store = store.New(repo,
		store.WithFileStore(e.files),
		store.WithOrchestrator(e.calls),
		store.WithLogger(e.logger),
	)
	return e
}

// Forms lists the forms currently accepting submissions.
func (e *Engine) Forms(ctx context.Context) ([]Form, error) {
	return e.store.ValidForms(ctx)
}

// Schema loads a form's resolved schema, enforcing the availability gate.
func (e *Engine) Schema(ctx context.Context, formID int64) (Schema, error) {
	return e.store.AvailableSchema(ctx, formID)
}

// Render produces the display states for a schema, optionally prefilled from
// a prior response or in-progress values.
func (e *Engine) Render(ctx context.Context, schema Schema, prior *FormResponse, values map[string]any) ([]FieldState, error) {
	return e.renderer.Render(ctx, schema, prior, values)
}

// Submit validates the raw payload against the schema and persists a new
// response, running both external API phases.
func (e *Engine) Submit(ctx context.Context, schema Schema, raw map[string]any, requester Requester) (FormResponse, error) {
	result, err := e.validator.Validate(ctx, schema, raw)
	if err != nil {
		return FormResponse{}, err
	}
	return e.store.Save(ctx, schema, result.Cleaned, requester)
}

// Response loads a stored submission by its unique id.
func (e *Engine) Response(ctx context.Context, uniqueID uuid.UUID) (FormResponse, error) {
	return e.store.Response(ctx, uniqueID)
}

// Update merges validated changes into an existing response. The changed map
// must already hold coerced values, typically result.Cleaned filtered to the
// caller's keys.
func (e *Engine) Update(ctx context.Context, schema Schema, changed map[string]any, uniqueID uuid.UUID, requester Requester) (FormResponse, error) {
	return e.store.Update(ctx, schema, changed, uniqueID, requester)
}

// Validator exposes the configured submission validator for callers that need
// dry-run validation, such as the PATCH merge path.
func (e *Engine) Validator() *submission.Validator {
	return e.validator
}

// Store exposes the response store for callers composing their own surface.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Handler mounts the REST surface over the engine's components.
func (e *Engine) Handler() http.Handler {
	api := httpapi.New(e.store,
		httpapi.WithRenderer(e.renderer),
		httpapi.WithValidator(e.validator),
		httpapi.WithOrchestrator(e.calls),
		httpapi.WithMetrics(e.metrics),
		httpapi.WithLogger(e.logger),
	)
	return api.Routes()
}
