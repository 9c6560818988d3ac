package model

import "sort"

// Schema is the fully resolved aggregate for one form: the form row, its
// ordered field associations, and its attached external APIs. Repositories
// return it assembled so the render/validate pipeline never touches
// persistence directly.
type Schema struct {
	Form   Form        `json:"form"`
	Fields []FormField `json:"fields"`
	APIs   []FormAPI   `json:"apis,omitempty"`
}

// SortedFields returns the active field associations in rendering order:
// category weight ascending with uncategorised entries last, then association
// weight ascending. The returned slice is a copy.
func (s Schema) SortedFields() []FormField {
	out := make([]FormField, 0, len(s.Fields))
	for _, ff := range s.Fields {
		if !ff.Field.IsActive {
			continue
		}
		out = append(out, ff)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].Category, out[j].Category
		switch {
		case ci == nil && cj != nil:
			return false
		case ci != nil && cj == nil:
			return true
		case ci != nil && cj != nil && ci.Weight != cj.Weight:
			return ci.Weight < cj.Weight
		}
		return out[i].Weight < out[j].Weight
	})
	return out
}

// FieldByName looks up an active field association by field name.
func (s Schema) FieldByName(name string) (FormField, bool) {
	for _, ff := range s.Fields {
		if ff.Field.Name == name && ff.Field.IsActive {
			return ff, true
		}
	}
	return FormField{}, false
}

// FieldByID looks up an active field association by field id.
func (s Schema) FieldByID(id int64) (FormField, bool) {
	for _, ff := range s.Fields {
		if ff.Field.ID == id && ff.Field.IsActive {
			return ff, true
		}
	}
	return FormField{}, false
}

// PhaseAPIs returns the active APIs for a phase in weight-ascending order.
func (s Schema) PhaseAPIs(phase ExecutePhase) []FormAPI {
	out := make([]FormAPI, 0, len(s.APIs))
	for _, api := range s.APIs {
		if api.IsActive && api.ExecuteTime == phase {
			out = append(out, api)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight < out[j].Weight })
	return out
}

// ControllerOf resolves the field that controls a dependent field. For a
// field-kind reference it is the referenced field itself; for an option-kind
// reference it is the field whose option set contains the option. The second
// return is false when the field has no dependency or the controller cannot
// be found among the form's active fields.
func (s Schema) ControllerOf(f Field) (FormField, bool) {
	if f.DependsOn.IsZero() {
		return FormField{}, false
	}
	switch f.DependsOn.Kind {
	case DependsOnField:
		return s.FieldByID(f.DependsOn.ID)
	case DependsOnOption:
		for _, ff := range s.Fields {
			if !ff.Field.IsActive {
				continue
			}
			if ff.Field.HasOption(f.DependsOn.ID) {
				return ff, true
			}
		}
	}
	return FormField{}, false
}

// DependencySelected reports whether the controller's current value selects
// the dependent field f. Option references use a membership test for
// multi-valued controllers and an equality test otherwise; field references
// are satisfied by any non-empty controller value, except a boolean
// controller, whose false means unselected. Dependencies are one hop: the
// controller's own dependencies are never consulted.
func (s Schema) DependencySelected(f Field, controllerValue any) bool {
	if f.DependsOn.IsZero() {
		return true
	}
	switch f.DependsOn.Kind {
	case DependsOnOption:
		return valueSelectsOption(controllerValue, f.DependsOn.ID)
	case DependsOnField:
		if b, ok := controllerValue.(bool); ok {
			return b
		}
		return !IsEmptyValue(controllerValue)
	}
	return false
}

func valueSelectsOption(value any, optionID int64) bool {
	switch v := value.(type) {
	case nil:
		return false
	case []any:
		for _, item := range v {
			if valueSelectsOption(item, optionID) {
				return true
			}
		}
		return false
	case []int64:
		for _, item := range v {
			if item == optionID {
				return true
			}
		}
		return false
	default:
		id, ok := AsInt64(value)
		return ok && id == optionID
	}
}

// IsEmptyValue reports whether a submitted or coerced value counts as absent
// for requiredness checks. Explicit false (checkbox off) is a present value.
func IsEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []int64:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}
