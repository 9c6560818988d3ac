package apicall

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/cache"
	"github.com/goliatone/go-formflow/pkg/model"
)

type stubCall struct {
	method string
	url    string
	body   string
}

type stubClient struct {
	calls   []stubCall
	status  int
	payload string
	err     error
}

func (s *stubClient) Do(req *http.Request) (*http.Response, error) {
	call := stubCall{method: req.Method, url: req.URL.String()}
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		call.body = string(raw)
	}
	s.calls = append(s.calls, call)
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(s.payload)),
		Header:     make(http.Header),
	}, nil
}

func testSchema(apis ...model.FormAPI) model.Schema {
	return model.Schema{
		Form: model.Form{ID: 7, Title: "Survey", Status: model.StatusPublish},
		APIs: apis,
	}
}

func TestEvaluate(t *testing.T) {
	data := map[string]any{"name": "ada", "code": int64(42)}

	out, err := Evaluate("https://api.example.com/users/{{ name }}?c={{ code }}", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "https://api.example.com/users/ada?c=42" {
		t.Fatalf("unexpected render %q", out)
	}
}

func TestEvaluateFormDataToken(t *testing.T) {
	data := map[string]any{"name": "ada"}

	out, err := Evaluate("{{ form_data }}", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("expected JSON output, got %q", out)
	}
	if diff := cmp.Diff(map[string]any{"name": "ada"}, decoded); diff != "" {
		t.Errorf("form_data mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteTemplatesURLAndBody(t *testing.T) {
	client := &stubClient{payload: `{"ok": true}`}
	o := New(WithHTTPClient(client))

	schema := testSchema(model.FormAPI{
		ID:          1,
		Title:       "notify",
		URL:         "https://hooks.example.com/{{ name }}",
		Method:      "post",
		Body:        `{"caller": "{{ name }}"}`,
		ExecuteTime: model.PhasePostLoad,
		IsActive:    true,
	})

	records, err := o.Execute(context.Background(), schema, model.PhasePostLoad, Requester{}, map[string]any{"name": "ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	call := client.calls[0]
	if call.method != "POST" {
		t.Errorf("expected POST, got %s", call.method)
	}
	if call.url != "https://hooks.example.com/ada" {
		t.Errorf("unexpected url %q", call.url)
	}
	if call.body != `{"caller": "ada"}` {
		t.Errorf("unexpected body %q", call.body)
	}

	record := records[0]
	if record.StatusCode != http.StatusOK {
		t.Errorf("unexpected status %d", record.StatusCode)
	}
	if diff := cmp.Diff(map[string]any{"ok": true}, record.Result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteWeightOrder(t *testing.T) {
	client := &stubClient{payload: `{}`}
	o := New(WithHTTPClient(client))

	schema := testSchema(
		model.FormAPI{ID: 2, URL: "https://example.com/second", ExecuteTime: model.PhasePreLoad, IsActive: true, Weight: 5},
		model.FormAPI{ID: 1, URL: "https://example.com/first", ExecuteTime: model.PhasePreLoad, IsActive: true, Weight: 1},
		model.FormAPI{ID: 3, URL: "https://example.com/skipped", ExecuteTime: model.PhasePreLoad, IsActive: false},
	)

	records, err := o.Execute(context.Background(), schema, model.PhasePreLoad, Requester{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].API != 1 || records[1].API != 2 {
		t.Errorf("expected weight order (1,2), got (%d,%d)", records[0].API, records[1].API)
	}
}

func TestExecuteCapturesFailuresInline(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
		reason  string
	}{
		{"non 2xx", http.StatusBadGateway, `{"ok":true}`, "unexpected status 502"},
		{"non json", http.StatusOK, `<html>oops</html>`, "response body is not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{status: tt.status, payload: tt.payload}
			o := New(WithHTTPClient(client))
			schema := testSchema(model.FormAPI{ID: 1, URL: "https://example.com", ExecuteTime: model.PhasePreLoad, IsActive: true})

			records, err := o.Execute(context.Background(), schema, model.PhasePreLoad, Requester{}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := map[string]any{"error": tt.reason}
			if diff := cmp.Diff(want, records[0].Result); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecuteDispatchFailureAbortsPhase(t *testing.T) {
	client := &stubClient{err: errors.New("dial tcp: connection refused")}
	o := New(WithHTTPClient(client))

	schema := testSchema(
		model.FormAPI{ID: 1, Title: "first", URL: "https://example.com/a", ExecuteTime: model.PhasePreLoad, IsActive: true, Weight: 1},
		model.FormAPI{ID: 2, Title: "second", URL: "https://example.com/b", ExecuteTime: model.PhasePreLoad, IsActive: true, Weight: 2},
	)

	records, err := o.Execute(context.Background(), schema, model.PhasePreLoad, Requester{}, nil)
	if err == nil {
		t.Fatal("expected dispatch error")
	}
	if len(records) != 0 {
		t.Fatalf("expected no records before failure, got %d", len(records))
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected phase abort after first call, got %d calls", len(client.calls))
	}
}

func TestExecuteCacheProperty(t *testing.T) {
	client := &stubClient{payload: `{"ok":true}`}
	o := New(WithHTTPClient(client), WithCache(cache.NewMemory(0)))

	schema := testSchema(model.FormAPI{
		ID:          1,
		URL:         "https://example.com",
		ExecuteTime: model.PhasePreLoad,
		CacheBy:     model.CacheSessionKey,
		IsActive:    true,
	})

	requester := Requester{SessionKey: "sess-a"}
	ctx := context.Background()

	if _, err := o.Execute(ctx, schema, model.PhasePreLoad, requester, nil); err != nil {
		t.Fatal(err)
	}
	records, err := o.Execute(ctx, schema, model.PhasePreLoad, requester, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected cached second run, got %d calls", len(client.calls))
	}
	if diff := cmp.Diff(map[string]any{"ok": true}, records[0].Result); diff != "" {
		t.Errorf("cached result mismatch (-want +got):\n%s", diff)
	}

	// A different discriminator must issue a fresh request.
	if _, err := o.Execute(ctx, schema, model.PhasePreLoad, Requester{SessionKey: "sess-b"}, nil); err != nil {
		t.Fatal(err)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected new call for new discriminator, got %d calls", len(client.calls))
	}
}

type stubObserver struct {
	calls     map[string]int
	cacheHits int
}

func newStubObserver() *stubObserver {
	return &stubObserver{calls: make(map[string]int)}
}

func (s *stubObserver) ObserveCall(phase, result string) { s.calls[phase+"/"+result]++ }
func (s *stubObserver) ObserveCacheHit()                 { s.cacheHits++ }

func TestExecuteReportsToObserver(t *testing.T) {
	ctx := context.Background()

	t.Run("ok and cache hit", func(t *testing.T) {
		client := &stubClient{payload: `{"ok":true}`}
		observer := newStubObserver()
		o := New(WithHTTPClient(client), WithCache(cache.NewMemory(0)), WithObserver(observer))

		schema := testSchema(model.FormAPI{
			ID: 1, URL: "https://example.com", ExecuteTime: model.PhasePreLoad,
			CacheBy: model.CacheSessionKey, IsActive: true,
		})
		requester := Requester{SessionKey: "sess-a"}

		if _, err := o.Execute(ctx, schema, model.PhasePreLoad, requester, nil); err != nil {
			t.Fatal(err)
		}
		if _, err := o.Execute(ctx, schema, model.PhasePreLoad, requester, nil); err != nil {
			t.Fatal(err)
		}
		if got := observer.calls["pre_load/ok"]; got != 1 {
			t.Errorf("expected one ok call, got %d (%v)", got, observer.calls)
		}
		if observer.cacheHits != 1 {
			t.Errorf("expected one cache hit, got %d", observer.cacheHits)
		}
	})

	t.Run("captured failure counts as error", func(t *testing.T) {
		client := &stubClient{status: http.StatusBadGateway, payload: `{}`}
		observer := newStubObserver()
		o := New(WithHTTPClient(client), WithObserver(observer))

		schema := testSchema(model.FormAPI{
			ID: 1, URL: "https://example.com", ExecuteTime: model.PhasePostLoad, IsActive: true,
		})
		if _, err := o.Execute(ctx, schema, model.PhasePostLoad, Requester{}, nil); err != nil {
			t.Fatal(err)
		}
		if got := observer.calls["post_load/error"]; got != 1 {
			t.Errorf("expected one error call, got %d (%v)", got, observer.calls)
		}
	})

	t.Run("dispatch failure", func(t *testing.T) {
		client := &stubClient{err: errors.New("connection refused")}
		observer := newStubObserver()
		o := New(WithHTTPClient(client), WithObserver(observer))

		schema := testSchema(model.FormAPI{
			ID: 1, URL: "https://example.com", ExecuteTime: model.PhasePostLoad, IsActive: true,
		})
		if _, err := o.Execute(ctx, schema, model.PhasePostLoad, Requester{}, nil); err == nil {
			t.Fatal("expected dispatch error")
		}
		if got := observer.calls["post_load/dispatch_error"]; got != 1 {
			t.Errorf("expected dispatch_error count, got %d (%v)", got, observer.calls)
		}
	})
}

func TestExecuteNoCacheWithoutDiscriminator(t *testing.T) {
	client := &stubClient{payload: `{}`}
	o := New(WithHTTPClient(client), WithCache(cache.NewMemory(0)))

	schema := testSchema(model.FormAPI{
		ID:          1,
		URL:         "https://example.com",
		ExecuteTime: model.PhasePreLoad,
		CacheBy:     model.CacheUserID,
		IsActive:    true,
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := o.Execute(ctx, schema, model.PhasePreLoad, Requester{}, nil); err != nil {
			t.Fatal(err)
		}
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected no caching for anonymous requester, got %d calls", len(client.calls))
	}
}

func TestRenderResults(t *testing.T) {
	o := New()
	schema := testSchema(
		model.FormAPI{ID: 1, Response: "<p>Hello {{ user }}</p><script>alert(1)</script>"},
		model.FormAPI{ID: 2},
	)
	records := []model.CallRecord{
		{API: 1, Result: map[string]any{"user": "ada"}},
		{API: 2, Result: map[string]any{"user": "bob"}},
	}

	rendered := o.RenderResults(schema, records)
	if got := rendered[1]; got != "<p>Hello ada</p>" {
		t.Errorf("unexpected fragment %q", got)
	}
	if _, ok := rendered[2]; ok {
		t.Error("expected no fragment for template-less api")
	}
}
