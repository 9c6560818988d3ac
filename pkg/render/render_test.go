package render_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/validation"
)

func testSchema() model.Schema {
	contact := &model.FieldCategory{ID: 1, Title: "Contact", IsActive: true, Weight: 1}
	return model.Schema{
		Form: model.Form{ID: 7, Title: "Signup", Slug: "signup", Status: model.StatusPublish},
		Fields: []model.FormField{
			{
				Field:  model.Field{ID: 1, Label: "Full Name", Name: "full_name", Genre: model.GenreText, IsRequired: true, IsActive: true},
				Weight: 1, Category: contact, Position: model.PositionBreak,
			},
			{
				Field: model.Field{
					ID: 2, Label: "Team Size", Name: "team_size", Genre: model.GenreNumber,
					IsActive: true, Default: "5",
					Validators: []model.ValidatorDef{{Kind: validation.KindMaxValue, Value: "100", IsActive: true}},
				},
				Weight: 2, Category: contact, Position: model.PositionBreak,
			},
			{
				Field: model.Field{
					ID: 3, Label: "Plan", Name: "plan", Genre: model.GenreDropdown, IsRequired: true, IsActive: true,
					Options: []model.Option{
						{ID: 10, Name: "Free", IsActive: true, Weight: 1},
						{ID: 11, Name: "Pro", IsActive: true, Weight: 2},
						{ID: 12, Name: "Legacy", IsActive: false, Weight: 3},
					},
				},
				Weight: 3, Position: model.PositionBreak,
			},
			{
				Field: model.Field{
					ID: 4, Label: "Company", Name: "company", Genre: model.GenreText, IsRequired: true, IsActive: true,
					DependsOn: model.DependencyRef{Kind: model.DependsOnOption, ID: 11},
				},
				Weight: 4, Position: model.PositionBreak,
			},
		},
	}
}

func TestRenderer_OutputLengthAndOrder(t *testing.T) {
	r := render.New()
	states, err := r.Render(context.Background(), testSchema(), nil, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	names := make([]string, 0, len(states))
	for _, st := range states {
		names = append(names, st.Field.Name)
	}
	want := []string{"full_name", "team_size", "plan", "company"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderer_WidgetsAndOptions(t *testing.T) {
	r := render.New()
	states, err := r.Render(context.Background(), testSchema(), nil, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if states[0].Widget != render.WidgetTextInput {
		t.Fatalf("text widget = %q", states[0].Widget)
	}
	if states[2].Widget != render.WidgetSelect {
		t.Fatalf("dropdown widget = %q", states[2].Widget)
	}
	if len(states[2].Options) != 2 {
		t.Fatalf("expected inactive option filtered, got %d options", len(states[2].Options))
	}
	if states[2].Options[0].Name != "Free" || states[2].Options[1].Name != "Pro" {
		t.Fatalf("option order: %+v", states[2].Options)
	}
}

func TestRenderer_DefaultCoercedToType(t *testing.T) {
	r := render.New()
	states, err := r.Render(context.Background(), testSchema(), nil, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got, want := states[1].Initial, int64(5); got != want {
		t.Fatalf("number default = %v (%T), want %v", got, got, want)
	}
}

func TestRenderer_DependentFieldState(t *testing.T) {
	r := render.New()
	schema := testSchema()

	t.Run("controller unset disables and demotes required", func(t *testing.T) {
		states, err := r.Render(context.Background(), schema, nil, nil)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		company := states[3]
		if !company.Disabled {
			t.Fatal("dependent field should start disabled")
		}
		if company.Required {
			t.Fatal("dependent field should not be required while controller is unset")
		}
	})

	t.Run("controller selecting enables and restores required", func(t *testing.T) {
		states, err := r.Render(context.Background(), schema, nil, map[string]any{"plan": int64(11)})
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		company := states[3]
		if company.Disabled {
			t.Fatal("dependent field should be enabled when selected")
		}
		if !company.Required {
			t.Fatal("dependent field should regain its own requiredness")
		}
	})

	t.Run("controller selecting other option keeps disabled", func(t *testing.T) {
		states, err := r.Render(context.Background(), schema, nil, map[string]any{"plan": int64(10)})
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if !states[3].Disabled {
			t.Fatal("dependent field should stay disabled for a non-selecting value")
		}
	})
}

func TestRenderer_EditModeUsesPriorValuesPositionally(t *testing.T) {
	r := render.New()
	schema := testSchema()
	prior := &model.FormResponse{Data: []model.FieldRecord{
		{ID: 1, Name: "full_name", Value: "Ada Lovelace"},
		{ID: 2, Name: "team_size", Value: int64(12)},
		{ID: 3, Name: "plan", Value: int64(11)},
		{ID: 4, Name: "company", Value: "Analytical Engines Ltd"},
	}}

	states, err := r.Render(context.Background(), schema, prior, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if states[0].Initial != "Ada Lovelace" {
		t.Fatalf("full_name initial = %v", states[0].Initial)
	}
	if states[1].Initial != int64(12) {
		t.Fatalf("team_size initial = %v", states[1].Initial)
	}
	if states[3].Disabled {
		t.Fatal("company should be enabled: prior plan selects it")
	}
	if states[3].Initial != "Analytical Engines Ltd" {
		t.Fatalf("company initial = %v", states[3].Initial)
	}
}

// Stored responses carry no record for captcha fields, so positional prior
// lookup shifts by one for every field sorted after a captcha. Kept to match
// how stored data has always been read back.
func TestRenderer_PriorValuesShiftAfterCaptcha(t *testing.T) {
	r := render.New()
	schema := model.Schema{
		Form: model.Form{ID: 9, Title: "Guarded", Slug: "guarded", Status: model.StatusPublish},
		Fields: []model.FormField{
			{
				Field:  model.Field{ID: 1, Label: "Name", Name: "name", Genre: model.GenreText, IsActive: true},
				Weight: 1, Position: model.PositionBreak,
			},
			{
				Field:  model.Field{ID: 2, Label: "Robot Check", Name: "robot_check", Genre: model.GenreCaptcha, IsActive: true},
				Weight: 2, Position: model.PositionBreak,
			},
			{
				Field:  model.Field{ID: 3, Label: "City", Name: "city", Genre: model.GenreText, IsActive: true},
				Weight: 3, Position: model.PositionBreak,
			},
		},
	}
	prior := &model.FormResponse{Data: []model.FieldRecord{
		{ID: 1, Name: "name", Value: "Ada"},
		{ID: 3, Name: "city", Value: "Paris"},
	}}

	states, err := r.Render(context.Background(), schema, prior, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if states[0].Initial != "Ada" {
		t.Fatalf("name initial = %v", states[0].Initial)
	}
	if states[1].Initial != "Paris" {
		t.Fatalf("captcha initial = %v, expected the shifted city value", states[1].Initial)
	}
	if states[2].Initial != nil {
		t.Fatalf("city initial = %v, expected nil past the end of prior data", states[2].Initial)
	}
}

func TestRenderer_MalformedValidatorSurfacesConfigError(t *testing.T) {
	r := render.New()
	schema := model.Schema{Fields: []model.FormField{{
		Field: model.Field{
			ID: 1, Name: "age", Genre: model.GenreNumber, IsActive: true,
			Validators: []model.ValidatorDef{{Kind: validation.KindMaxValue, Value: "lots", IsActive: true}},
		},
		Weight: 1,
	}}}

	if _, err := r.Render(context.Background(), schema, nil, nil); err == nil {
		t.Fatal("expected config error")
	}
}
