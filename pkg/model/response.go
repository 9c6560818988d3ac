package model

import (
	"github.com/google/uuid"
)

// DependsOnRecord embeds the controlling reference in a stored field record,
// together with the controller's value at submission time.
type DependsOnRecord struct {
	ID    int64          `json:"id"`
	Type  DependencyKind `json:"type"`
	Value any            `json:"value,omitempty"`
}

// FieldRecord is one entry of a response's data array. Record order always
// matches the form's field rendering order, which enables positional
// re-association between data[i] and the i-th rendered field.
type FieldRecord struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Label     string           `json:"label"`
	Genre     FieldGenre       `json:"genre"`
	Category  string           `json:"category,omitempty"`
	Value     any              `json:"value"`
	DependsOn *DependsOnRecord `json:"depends_on"`
}

// CallRecord captures the outcome of one external API call as stored on a
// response.
type CallRecord struct {
	API        int64  `json:"api"`
	URL        string `json:"url"`
	Method     string `json:"method"`
	Body       string `json:"body,omitempty"`
	StatusCode int    `json:"response_status_code"`
	Result     any    `json:"result"`
}

// FormResponse is one finalized submission. Created once; mutable only
// through the update path, which merges changed fields into the PureData
// projection before regenerating Data.
type FormResponse struct {
	ID          int64         `json:"id"`
	UniqueID    uuid.UUID     `json:"unique_id"`
	FormID      int64         `json:"form_id"`
	Data        []FieldRecord `json:"data"`
	APIResponse []CallRecord  `json:"api_response,omitempty"`
	UserIP      string        `json:"user_ip,omitempty"`
}

// PureData projects the data array into a field-name keyed map of stored
// values.
func (r *FormResponse) PureData() map[string]any {
	result := make(map[string]any, len(r.Data))
	for _, rec := range r.Data {
		result[rec.Name] = rec.Value
	}
	return result
}

// ValueAt returns the stored value at a positional index, mirroring the
// data[i] ↔ fields[i] correlation used for edit-mode initial values. The
// second return is false when the index is out of range.
func (r *FormResponse) ValueAt(i int) (any, bool) {
	if r == nil || i < 0 || i >= len(r.Data) {
		return nil, false
	}
	return r.Data[i].Value, true
}
