// Package apicall executes the external HTTP calls attached to a form: the
// pre-load phase before rendering and the post-load phase after a successful
// submission. Calls run sequentially in weight order and are individually
// fault-isolated; only a dispatch-level failure aborts a phase.
package apicall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formflow/pkg/cache"
	"github.com/goliatone/go-formflow/pkg/model"
)

// HTTPClient issues outbound requests. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Requester carries the per-request discriminators used to scope cached call
// results.
type Requester struct {
	SessionKey string
	UserID     string
	UserIP     string
}

// Discriminator resolves the cache discriminator for a cache method. The
// second return is false when the method is unset or the requester lacks the
// corresponding value.
func (r Requester) Discriminator(method model.CacheMethod) (string, bool) {
	var value string
	switch method {
	case model.CacheSessionKey:
		value = r.SessionKey
	case model.CacheUserID:
		value = r.UserID
	case model.CacheUserIP:
		value = r.UserIP
	default:
		return "", false
	}
	return value, value != ""
}

// Orchestrator runs a form's attached APIs for one phase.
// Observer receives per-call instrumentation events. metrics.Metrics
// satisfies it.
type Observer interface {
	ObserveCall(phase, result string)
	ObserveCacheHit()
}

type Orchestrator struct {
	client    HTTPClient
	cache     cache.Store
	logger    *slog.Logger
	timeout   time.Duration
	sanitizer *bluemonday.Policy
	observer  Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient replaces the outbound HTTP client.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *Orchestrator) {
		if client != nil {
			o.client = client
		}
	}
}

// WithCache enables per-call result caching.
func WithCache(store cache.Store) Option {
	return func(o *Orchestrator) {
		o.cache = store
	}
}

// WithLogger sets the logger for call outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver wires call and cache-hit counters.
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// WithTimeout bounds each individual call.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// New creates an Orchestrator with a default 30s per-call timeout and no
// cache.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		client:    &http.Client{},
		logger:    slog.Default(),
		timeout:   30 * time.Second,
		sanitizer: bluemonday.UGCPolicy(),
	}
	for _, option := range options {
		option(o)
	}
	return o
}

// Execute runs every active API of the given phase in weight order against the
// submission context and returns one record per call. Transport and parse
// failures are captured inline as {"error": reason} results; an error return
// means dispatch itself failed and the remaining calls of the phase were
// skipped. Records collected before the failure are returned alongside it.
func (o *Orchestrator) Execute(ctx context.Context, schema model.Schema, phase model.ExecutePhase, requester Requester, formData map[string]any) ([]model.CallRecord, error) {
	apis := schema.PhaseAPIs(phase)
	if len(apis) == 0 {
		return nil, nil
	}

	records := make([]model.CallRecord, 0, len(apis))
	for _, api := range apis {
		key, cacheable := o.cacheKey(schema.Form.ID, phase, api, requester)
		if cacheable {
			if cached, ok := o.cache.Get(ctx, key); ok {
				var record model.CallRecord
				if err := json.Unmarshal(cached, &record); err == nil {
					o.logger.Debug("apicall: cache hit", "form", schema.Form.ID, "api", api.ID)
					o.observeCacheHit()
					records = append(records, record)
					continue
				}
			}
		}

		record, err := o.call(ctx, api, formData)
		if err != nil {
			o.observeCall(phase, "dispatch_error")
			return records, fmt.Errorf("apicall: %q: %w", api.Title, err)
		}
		o.observeCall(phase, callResult(record))
		records = append(records, record)

		if cacheable {
			if raw, err := json.Marshal(record); err == nil {
				o.cache.Set(ctx, key, raw)
			}
		}
	}
	return records, nil
}

func (o *Orchestrator) observeCall(phase model.ExecutePhase, result string) {
	if o.observer != nil {
		o.observer.ObserveCall(string(phase), result)
	}
}

func (o *Orchestrator) observeCacheHit() {
	if o.observer != nil {
		o.observer.ObserveCacheHit()
	}
}

// callResult labels a completed call for instrumentation: ok for a 2xx with
// parseable JSON, error for the inline-captured failures.
func callResult(record model.CallRecord) string {
	if record.StatusCode >= 200 && record.StatusCode < 300 {
		if result, ok := record.Result.(map[string]any); ok {
			if _, failed := result["error"]; failed {
				return "error"
			}
		}
		return "ok"
	}
	return "error"
}

// RenderResults maps each call record through its API's response template to
// produce user-facing fragments keyed by API id. Rendered output is run
// through an HTML sanitizer since templates interpolate remote data. Records
// whose API has no template, or whose template fails, are skipped.
func (o *Orchestrator) RenderResults(schema model.Schema, records []model.CallRecord) map[int64]string {
	out := make(map[int64]string, len(records))
	for _, record := range records {
		api, ok := apiByID(schema, record.API)
		if !ok || strings.TrimSpace(api.Response) == "" {
			continue
		}
		rendered, err := Evaluate(api.Response, resultContext(record))
		if err != nil {
			o.logger.Warn("apicall: response template failed", "api", api.ID, "error", err)
			continue
		}
		out[record.API] = o.sanitizer.Sanitize(rendered)
	}
	return out
}

func (o *Orchestrator) cacheKey(formID int64, phase model.ExecutePhase, api model.FormAPI, requester Requester) (string, bool) {
	if o.cache == nil {
		return "", false
	}
	discriminator, ok := requester.Discriminator(api.CacheBy)
	if !ok {
		return "", false
	}
	// The API id keeps two calls in the same phase from sharing a key.
	return fmt.Sprintf("formflow:call:%d:%s:%d:%s", formID, phase, api.ID, discriminator), true
}

func (o *Orchestrator) call(ctx context.Context, api model.FormAPI, formData map[string]any) (model.CallRecord, error) {
	url, err := Evaluate(api.URL, formData)
	if err != nil {
		return model.CallRecord{}, err
	}

	method := strings.ToUpper(strings.TrimSpace(api.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body string
	if method != http.MethodGet && api.Body != "" {
		if body, err = Evaluate(api.Body, formData); err != nil {
			return model.CallRecord{}, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, url, reader)
	if err != nil {
		return model.CallRecord{}, err
	}
	for name, value := range api.Headers {
		req.Header.Set(name, value)
	}
	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	record := model.CallRecord{
		API:    api.ID,
		URL:    url,
		Method: method,
		Body:   body,
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return model.CallRecord{}, err
	}
	defer resp.Body.Close()

	record.StatusCode = resp.StatusCode
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		record.Result = errorResult(fmt.Sprintf("reading response: %v", err))
		return record, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		record.Result = errorResult(fmt.Sprintf("unexpected status %d", resp.StatusCode))
		o.logger.Warn("apicall: non-2xx response", "api", api.ID, "status", resp.StatusCode)
		return record, nil
	}

	var result any
	if err := json.Unmarshal(payload, &result); err != nil {
		record.Result = errorResult("response body is not valid JSON")
		o.logger.Warn("apicall: non-JSON response", "api", api.ID)
		return record, nil
	}
	record.Result = result

	o.logger.Info("apicall: call completed", "api", api.ID, "status", resp.StatusCode)
	return record, nil
}

func errorResult(reason string) map[string]any {
	return map[string]any{"error": reason}
}

func apiByID(schema model.Schema, id int64) (model.FormAPI, bool) {
	for _, api := range schema.APIs {
		if api.ID == id {
			return api, true
		}
	}
	return model.FormAPI{}, false
}

// resultContext exposes the call result to the response template: map results
// are addressable by key, and everything is reachable under "result".
func resultContext(record model.CallRecord) map[string]any {
	context := map[string]any{"result": record.Result}
	if mapped, ok := record.Result.(map[string]any); ok {
		for key, value := range mapped {
			if _, taken := context[key]; !taken {
				context[key] = value
			}
		}
	}
	return context
}
