package model

import "errors"

// ErrNotAvailable collapses every "you cannot have this form" outcome at the
// boundary: unknown id, not published, outside the validity window, or
// submission limit exhausted. The distinction is deliberately not surfaced so
// draft and suspended forms cannot be enumerated by outsiders.
var ErrNotAvailable = errors.New("formflow: form not available")

// ErrResponseNotFound indicates a response lookup by unique id failed.
var ErrResponseNotFound = errors.New("formflow: form response not found")

// ErrNotEditable indicates an update was attempted against a form whose
// responses are read-only.
var ErrNotEditable = errors.New("formflow: form responses are not editable")
