// Package httpapi exposes the REST boundary: list available forms, render and
// submit a form, and fetch or update a prior response by its unique id. Every
// "you cannot have this form" condition collapses to a plain 404 so draft and
// suspended forms cannot be enumerated by outsiders.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-formflow/pkg/apicall"
	"github.com/goliatone/go-formflow/pkg/metrics"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/store"
	"github.com/goliatone/go-formflow/pkg/submission"
)

// Option configures an API.
type Option func(*API)

// WithRenderer replaces the field-state renderer.
func WithRenderer(renderer *render.Renderer) Option {
	return func(a *API) {
		if renderer != nil {
			a.renderer = renderer
		}
	}
}

// WithValidator replaces the submission validator.
func WithValidator(validator *submission.Validator) Option {
	return func(a *API) {
		if validator != nil {
			a.validator = validator
		}
	}
}

// WithOrchestrator enables pre-load API fragments on form render.
func WithOrchestrator(calls *apicall.Orchestrator) Option {
	return func(a *API) {
		a.calls = calls
	}
}

// WithMetrics wires submission counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *API) {
		a.metrics = m
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// API bundles the handlers over a response store.
type API struct {
	store     *store.Store
	renderer  *render.Renderer
	validator *submission.Validator
	calls     *apicall.Orchestrator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New constructs the API surface.
func New(st *store.Store, options ...Option) *API {
	a := &API{
		store:     st,
		renderer:  render.New(),
		validator: submission.New(),
		logger:    slog.Default(),
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// Routes mounts the handlers on a fresh mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /forms/", a.handleListForms)
	mux.HandleFunc("GET /forms/{id}", a.handleGetForm)
	mux.HandleFunc("POST /forms/{id}", a.handleSubmitForm)
	mux.HandleFunc("GET /form-responses/{unique_id}", a.handleGetResponse)
	mux.HandleFunc("PATCH /form-responses/{unique_id}", a.handleUpdateResponse)
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}
	return mux
}

type formSummary struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

func (a *API) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := a.store.ValidForms(r.Context())
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	out := make([]formSummary, 0, len(forms))
	for _, form := range forms {
		out = append(out, formSummary{
			ID:     form.ID,
			Title:  form.Title,
			Slug:   form.Slug,
			Status: string(form.Status),
		})
	}
	a.writeJSON(w, http.StatusOK, out)
}

type formPayload struct {
	Form      model.Form          `json:"form"`
	Fields    []render.FieldState `json:"fields"`
	Fragments map[int64]string    `json:"api_fragments,omitempty"`
}

func (a *API) handleGetForm(w http.ResponseWriter, r *http.Request) {
	schema, ok := a.availableSchema(w, r)
	if !ok {
		return
	}

	states, err := a.renderer.Render(r.Context(), schema, nil, nil)
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	payload := formPayload{Form: schema.Form, Fields: states}
	if a.calls != nil {
		records, err := a.calls.Execute(r.Context(), schema, model.PhasePreLoad, a.requester(r), nil)
		if err != nil {
			a.serverError(w, r, err)
			return
		}
		if len(records) > 0 {
			payload.Fragments = a.calls.RenderResults(schema, records)
		}
	}
	a.writeJSON(w, http.StatusOK, payload)
}

func (a *API) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	schema, ok := a.availableSchema(w, r)
	if !ok {
		return
	}

	raw, ok := a.decodeBody(w, r)
	if !ok {
		return
	}

	result, err := a.validator.Validate(r.Context(), schema, raw)
	if err != nil {
		var verr *submission.FormValidationError
		if errors.As(err, &verr) {
			a.observe(schema.Form.ID, "rejected")
			a.writeJSON(w, http.StatusBadRequest, map[string]any{"field_errors": verr.FieldErrors})
			return
		}
		a.serverError(w, r, err)
		return
	}

	response, err := a.store.Save(r.Context(), schema, result.Cleaned, a.requester(r))
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	a.observe(schema.Form.ID, "accepted")
	a.logger.Info("httpapi: submission stored",
		"form", schema.Form.ID, "response", response.UniqueID, "ip", response.UserIP)
	a.writeJSON(w, http.StatusCreated, map[string]any{
		"unique_id":       response.UniqueID,
		"success_message": schema.Form.SuccessMessage,
		"redirect_url":    schema.Form.RedirectURL,
	})
}

func (a *API) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	uniqueID, ok := a.pathUUID(w, r)
	if !ok {
		return
	}
	response, err := a.store.Response(r.Context(), uniqueID)
	if err != nil {
		a.lookupError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, response)
}

func (a *API) handleUpdateResponse(w http.ResponseWriter, r *http.Request) {
	uniqueID, ok := a.pathUUID(w, r)
	if !ok {
		return
	}

	response, err := a.store.Response(r.Context(), uniqueID)
	if err != nil {
		a.lookupError(w, r, err)
		return
	}
	schema, err := a.store.SchemaByID(r.Context(), response.FormID)
	if err != nil {
		a.lookupError(w, r, err)
		return
	}

	raw, ok := a.decodeBody(w, r)
	if !ok {
		return
	}

	// Merge the partial payload over the stored values so cross-field
	// dependencies validate against the full picture. Captcha is a
	// create-time guard and is not re-demanded on edits.
	merged := response.PureData()
	for name, value := range raw {
		merged[name] = value
	}
	result, err := a.validator.Validate(r.Context(), withoutCaptcha(schema), merged)
	if err != nil {
		var verr *submission.FormValidationError
		if errors.As(err, &verr) {
			a.writeJSON(w, http.StatusBadRequest, map[string]any{"field_errors": verr.FieldErrors})
			return
		}
		a.serverError(w, r, err)
		return
	}

	changed := make(map[string]any, len(raw))
	for name := range raw {
		if value, ok := result.Cleaned[name]; ok {
			changed[name] = value
		}
	}

	updated, err := a.store.Update(r.Context(), schema, changed, uniqueID, a.requester(r))
	if err != nil {
		if errors.Is(err, model.ErrNotEditable) {
			a.writeJSON(w, http.StatusForbidden, map[string]any{"detail": "responses to this form cannot be edited"})
			return
		}
		a.lookupError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, updated)
}

func (a *API) availableSchema(w http.ResponseWriter, r *http.Request) (model.Schema, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		a.notFound(w)
		return model.Schema{}, false
	}
	schema, err := a.store.AvailableSchema(r.Context(), id)
	if err != nil {
		a.lookupError(w, r, err)
		return model.Schema{}, false
	}
	return schema, true
}

func (a *API) pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	uniqueID, err := uuid.Parse(r.PathValue("unique_id"))
	if err != nil {
		a.notFound(w)
		return uuid.Nil, false
	}
	return uniqueID, true
}

func (a *API) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "request body must be a JSON object"})
		return nil, false
	}
	return raw, true
}

// requester assembles the cache discriminators for the current request.
func (a *API) requester(r *http.Request) apicall.Requester {
	requester := apicall.Requester{
		UserID: r.Header.Get("X-User-ID"),
		UserIP: clientIP(r),
	}
	if cookie, err := r.Cookie("session_key"); err == nil {
		requester.SessionKey = cookie.Value
	} else {
		requester.SessionKey = r.Header.Get("X-Session-Key")
	}
	return requester
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the socket
// peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func withoutCaptcha(schema model.Schema) model.Schema {
	fields := make([]model.FormField, 0, len(schema.Fields))
	for _, ff := range schema.Fields {
		if ff.Field.Genre == model.GenreCaptcha {
			continue
		}
		fields = append(fields, ff)
	}
	schema.Fields = fields
	return schema
}

func (a *API) observe(formID int64, outcome string) {
	if a.metrics != nil {
		a.metrics.ObserveSubmission(formID, outcome)
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("httpapi: encode response", "error", err)
	}
}

func (a *API) notFound(w http.ResponseWriter) {
	a.writeJSON(w, http.StatusNotFound, map[string]any{"detail": "not found"})
}

func (a *API) lookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, model.ErrNotAvailable) || errors.Is(err, model.ErrResponseNotFound) {
		a.notFound(w)
		return
	}
	a.serverError(w, r, err)
}

func (a *API) serverError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("httpapi: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	a.writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "internal error"})
}
