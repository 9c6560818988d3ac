package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/goliatone/go-formflow/pkg/genre"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/store"
)

type recordingFiles struct {
	stored  []genre.FileRef
	deleted []genre.FileRef
}

func (r *recordingFiles) Store(_ context.Context, upload genre.Upload) (genre.FileRef, error) {
	ref := genre.FileRef{Directory: "/media/" + upload.Name, URL: "http://files.local/" + upload.Name}
	r.stored = append(r.stored, ref)
	return ref, nil
}

func (r *recordingFiles) Delete(_ context.Context, ref genre.FileRef) error {
	r.deleted = append(r.deleted, ref)
	return nil
}

type fakeRepo struct {
	schemas   map[int64]model.Schema
	responses map[uuid.UUID]model.FormResponse
}

func newFakeRepo(schemas ...model.Schema) *fakeRepo {
	repo := &fakeRepo{
		schemas:   make(map[int64]model.Schema),
		responses: make(map[uuid.UUID]model.FormResponse),
	}
	for _, schema := range schemas {
		repo.schemas[schema.Form.ID] = schema
	}
	return repo
}

func (r *fakeRepo) FormByID(_ context.Context, id int64) (model.Schema, error) {
	schema, ok := r.schemas[id]
	if !ok {
		return model.Schema{}, model.ErrNotAvailable
	}
	return schema, nil
}

func (r *fakeRepo) PublishedForms(_ context.Context) ([]model.Form, error) {
	var out []model.Form
	for _, schema := range r.schemas {
		if schema.Form.Status == model.StatusPublish {
			out = append(out, schema.Form)
		}
	}
	return out, nil
}

func (r *fakeRepo) ResponseCount(_ context.Context, formID int64) (int, error) {
	count := 0
	for _, response := range r.responses {
		if response.FormID == formID {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) ResponseByUniqueID(_ context.Context, id uuid.UUID) (model.FormResponse, error) {
	response, ok := r.responses[id]
	if !ok {
		return model.FormResponse{}, model.ErrResponseNotFound
	}
	return response, nil
}

func (r *fakeRepo) CreateResponse(_ context.Context, response *model.FormResponse) error {
	response.ID = int64(len(r.responses) + 1)
	r.responses[response.UniqueID] = *response
	return nil
}

func (r *fakeRepo) UpdateResponse(_ context.Context, response *model.FormResponse) error {
	r.responses[response.UniqueID] = *response
	return nil
}

func apiSchema() model.Schema {
	return model.Schema{
		Form: model.Form{
			ID: 1, Title: "Contact", Slug: "contact", Status: model.StatusPublish,
			SuccessMessage: "Thanks!", IsEditable: true,
		},
		Fields: []model.FormField{
			{
				Field:  model.Field{ID: 1, Label: "Name", Name: "name", Genre: model.GenreText, IsRequired: true, IsActive: true},
				Weight: 1,
			},
			{
				Field:  model.Field{ID: 2, Label: "Age", Name: "age", Genre: model.GenreNumber, IsActive: true},
				Weight: 2,
			},
		},
	}
}

func newTestAPI(schemas ...model.Schema) (*API, *fakeRepo) {
	repo := newFakeRepo(schemas...)
	return New(store.New(repo)), repo
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	for name, values := range header {
		for _, value := range values {
			request.Header.Add(name, value)
		}
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestListForms(t *testing.T) {
	draft := apiSchema()
	draft.Form.ID = 2
	draft.Form.Status = model.StatusDraft
	api, _ := newTestAPI(apiSchema(), draft)

	recorder := doJSON(t, api.Routes(), "GET", "/forms/", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}

	var forms []map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &forms); err != nil {
		t.Fatal(err)
	}
	if len(forms) != 1 {
		t.Fatalf("expected only the published form, got %d", len(forms))
	}
	if forms[0]["slug"] != "contact" {
		t.Errorf("unexpected form %v", forms[0])
	}
}

func TestGetForm(t *testing.T) {
	api, _ := newTestAPI(apiSchema())

	recorder := doJSON(t, api.Routes(), "GET", "/forms/1", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}

	var payload struct {
		Form   model.Form       `json:"form"`
		Fields []map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Form.Title != "Contact" {
		t.Errorf("unexpected form %+v", payload.Form)
	}
	if len(payload.Fields) != 2 {
		t.Fatalf("expected 2 field states, got %d", len(payload.Fields))
	}
	if payload.Fields[0]["widget"] != "text-input" {
		t.Errorf("unexpected widget %v", payload.Fields[0]["widget"])
	}
}

func TestGetFormNotFound(t *testing.T) {
	api, _ := newTestAPI(apiSchema())

	for _, target := range []string{"/forms/99", "/forms/abc"} {
		recorder := doJSON(t, api.Routes(), "GET", target, "", nil)
		if recorder.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", target, recorder.Code)
		}
	}
}

func TestSubmitForm(t *testing.T) {
	api, repo := newTestAPI(apiSchema())

	header := http.Header{}
	header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	recorder := doJSON(t, api.Routes(), "POST", "/forms/1", `{"name": "Ada", "age": "36"}`, header)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}

	var body struct {
		UniqueID       uuid.UUID `json:"unique_id"`
		SuccessMessage string    `json:"success_message"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.SuccessMessage != "Thanks!" {
		t.Errorf("unexpected message %q", body.SuccessMessage)
	}

	stored := repo.responses[body.UniqueID]
	if stored.UserIP != "203.0.113.7" {
		t.Errorf("expected forwarded ip, got %q", stored.UserIP)
	}
	if stored.PureData()["age"] != int64(36) {
		t.Errorf("expected coerced age, got %v", stored.PureData()["age"])
	}
}

func TestSubmitFormValidationError(t *testing.T) {
	api, _ := newTestAPI(apiSchema())

	recorder := doJSON(t, api.Routes(), "POST", "/forms/1", `{"age": "36"}`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", recorder.Code)
	}

	var body struct {
		FieldErrors map[string]string `json:"field_errors"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body.FieldErrors["name"]; !ok {
		t.Errorf("expected error on name, got %v", body.FieldErrors)
	}
}

func TestSubmitFormBadBody(t *testing.T) {
	api, _ := newTestAPI(apiSchema())

	recorder := doJSON(t, api.Routes(), "POST", "/forms/1", `not json`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	api, _ := newTestAPI(apiSchema())
	routes := api.Routes()

	created := doJSON(t, routes, "POST", "/forms/1", `{"name": "Ada"}`, nil)
	if created.Code != http.StatusCreated {
		t.Fatalf("create failed: %s", created.Body.String())
	}
	var body struct {
		UniqueID uuid.UUID `json:"unique_id"`
	}
	if err := json.Unmarshal(created.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}

	fetched := doJSON(t, routes, "GET", "/form-responses/"+body.UniqueID.String(), "", nil)
	if fetched.Code != http.StatusOK {
		t.Fatalf("fetch failed with %d", fetched.Code)
	}

	patched := doJSON(t, routes, "PATCH", "/form-responses/"+body.UniqueID.String(), `{"name": "Grace"}`, nil)
	if patched.Code != http.StatusOK {
		t.Fatalf("patch failed with %d: %s", patched.Code, patched.Body.String())
	}
	var updated model.FormResponse
	if err := json.Unmarshal(patched.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.PureData()["name"] != "Grace" {
		t.Errorf("expected merged update, got %v", updated.PureData())
	}

	missing := doJSON(t, routes, "GET", "/form-responses/"+uuid.NewString(), "", nil)
	if missing.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown response, got %d", missing.Code)
	}
}

func TestUpdateFalseDeletesStoredUpload(t *testing.T) {
	schema := model.Schema{
		Form: model.Form{ID: 5, Title: "Docs", Slug: "docs", Status: model.StatusPublish, IsEditable: true},
		Fields: []model.FormField{
			{Field: model.Field{ID: 7, Label: "Resume", Name: "resume", Genre: model.GenreUploadFile, IsActive: true}, Weight: 1},
		},
	}
	repo := newFakeRepo(schema)
	files := &recordingFiles{}
	api := New(store.New(repo, store.WithFileStore(files)))
	routes := api.Routes()

	ref := genre.FileRef{Directory: "/media/cv.pdf", URL: "http://files.local/cv.pdf"}
	response := model.FormResponse{
		UniqueID: uuid.New(),
		FormID:   5,
		Data:     []model.FieldRecord{{ID: 7, Name: "resume", Genre: model.GenreUploadFile, Value: ref}},
	}
	repo.responses[response.UniqueID] = response

	recorder := doJSON(t, routes, "PATCH", "/form-responses/"+response.UniqueID.String(), `{"resume": false}`, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}

	if len(files.deleted) != 1 || files.deleted[0] != ref {
		t.Fatalf("expected stored file deleted, got %+v", files.deleted)
	}
	updated := repo.responses[response.UniqueID]
	if updated.PureData()["resume"] != nil {
		t.Errorf("expected cleared value, got %v", updated.PureData()["resume"])
	}
}

func TestUpdateNotEditable(t *testing.T) {
	schema := apiSchema()
	schema.Form.IsEditable = false
	api, repo := newTestAPI(schema)
	routes := api.Routes()

	response := model.FormResponse{
		UniqueID: uuid.New(),
		FormID:   1,
		Data:     []model.FieldRecord{{ID: 1, Name: "name", Genre: model.GenreText, Value: "Ada"}},
	}
	repo.responses[response.UniqueID] = response

	recorder := doJSON(t, routes, "PATCH", "/form-responses/"+response.UniqueID.String(), `{"name": "Grace"}`, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
}
