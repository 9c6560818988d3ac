// Package genre maps field genres to their coercion behaviour. Coercion is
// deliberately forgiving: malformed input degrades to a type-appropriate zero
// value or passes through untouched, it never fails. The only handler with a
// side effect is upload_file, which talks to the file-storage collaborator.
package genre

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
)

// CoerceContext carries collaborator handles into a coercion pass. A nil
// Files store makes upload_file coercion side-effect free: raw uploads pass
// through unchanged so validators can inspect them before anything is
// persisted.
type CoerceContext struct {
	// Files persists upload_file binaries. Nil disables storage.
	Files FileStore
	// Prior is the previously stored descriptor for the field being coerced,
	// supplied on re-submission so replaced or removed files can be deleted.
	Prior *FileRef
}

// Handler implements the two coercion contexts for one genre: Coerce produces
// the typed storage value, Display the string-ish form used for filtering and
// template substitution.
type Handler interface {
	Coerce(ctx context.Context, raw any, cc CoerceContext) (any, error)
	Display(raw any) any
}

// Registry dispatches genre tags to handlers. The zero registry is unusable;
// NewRegistry installs the built-in handler set.
type Registry struct {
	mu       sync.RWMutex
	handlers map[model.FieldGenre]Handler
}

// NewRegistry constructs a registry with every built-in genre registered.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[model.FieldGenre]Handler)}
	r.registerBuiltins()
	return r
}

// Register installs or replaces the handler for a genre.
func (r *Registry) Register(g model.FieldGenre, h Handler) {
	if r == nil || h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[g] = h
}

// Handler returns the handler registered for a genre.
func (r *Registry) Handler(g model.FieldGenre) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[g]
	return h, ok
}

// Coerce runs the storage coercion for a genre. Unknown genres degrade to
// text handling rather than failing.
func (r *Registry) Coerce(ctx context.Context, g model.FieldGenre, raw any, cc CoerceContext) (any, error) {
	h, ok := r.Handler(g)
	if !ok {
		h = textHandler{}
	}
	return h.Coerce(ctx, raw, cc)
}

// Display runs the display coercion for a genre, used where numeric-coded
// choices must behave as strings (regex filtering, template substitution).
func (r *Registry) Display(g model.FieldGenre, raw any) any {
	h, ok := r.Handler(g)
	if !ok {
		h = textHandler{}
	}
	return h.Display(raw)
}

func (r *Registry) registerBuiltins() {
	text := textHandler{}
	choice := choiceHandler{}

	r.handlers[model.GenreText] = text
	r.handlers[model.GenreTextArea] = text
	r.handlers[model.GenreEmail] = text
	r.handlers[model.GenrePassword] = text
	r.handlers[model.GenreHidden] = text
	r.handlers[model.GenreDate] = temporalHandler{layout: "2006-01-02"}
	r.handlers[model.GenreTime] = temporalHandler{layout: "15:04:05"}
	r.handlers[model.GenreDatetime] = temporalHandler{layout: time.RFC3339}
	r.handlers[model.GenreMultiText] = multiTextHandler{}
	r.handlers[model.GenreNumber] = numberHandler{}
	r.handlers[model.GenreDropdown] = choice
	r.handlers[model.GenreRadio] = choice
	r.handlers[model.GenreMultiCheckbox] = multiChoiceHandler{}
	r.handlers[model.GenreCheckbox] = checkboxHandler{}
	r.handlers[model.GenreCaptcha] = captchaHandler{}
	r.handlers[model.GenreUploadFile] = uploadHandler{}
}

// coerceString renders any scalar as its string form; nil and empty string
// collapse to nil.
func coerceString(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}

type textHandler struct{}

func (textHandler) Coerce(_ context.Context, raw any, _ CoerceContext) (any, error) {
	return coerceString(raw), nil
}

func (textHandler) Display(raw any) any { return coerceString(raw) }

type temporalHandler struct {
	layout string
}

func (h temporalHandler) Coerce(_ context.Context, raw any, _ CoerceContext) (any, error) {
	if t, ok := raw.(time.Time); ok {
		return t.Format(h.layout), nil
	}
	return coerceString(raw), nil
}

func (h temporalHandler) Display(raw any) any {
	v, _ := h.Coerce(context.Background(), raw, CoerceContext{})
	return v
}

type multiTextHandler struct{}

func (multiTextHandler) Coerce(_ context.Context, raw any, _ CoerceContext) (any, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case string:
		if v == "" {
			return []string{}, nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out, nil
	default:
		return []string{}, nil
	}
}

func (h multiTextHandler) Display(raw any) any {
	v, _ := h.Coerce(context.Background(), raw, CoerceContext{})
	return v
}

type numberHandler struct{}

func (numberHandler) Coerce(_ context.Context, raw any, _ CoerceContext) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
	}
	if n, ok := model.AsInt64(raw); ok {
		return n, nil
	}
	// Not numeric-looking: leave as-is so the validator chain can reject it.
	return coerceString(raw), nil
}

func (numberHandler) Display(raw any) any { return coerceString(raw) }

// choiceHandler covers dropdown and radio: stored values are the selected
// Option id as an integer, while display treats the code as a string.
type choiceHandler struct{}

func (choiceHandler) Coerce(ctx context.Context, raw any, cc CoerceContext) (any, error) {
	return numberHandler{}.Coerce(ctx, raw, cc)
}

func (choiceHandler) Display(raw any) any { return coerceString(raw) }

type multiChoiceHandler struct{}

func (multiChoiceHandler) Coerce(_ context.Context, raw any, _ CoerceContext) (any, error) {
	switch v := raw.(type) {
	case nil:
		return []int64{}, nil
	case string:
		if v == "" {
			return []int64{}, nil
		}
		if n, ok := model.AsInt64(v); ok {
			return []int64{n}, nil
		}
		return []int64{}, nil
	case []int64:
		return v, nil
	case []any:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			if n, ok := model.AsInt64(item); ok {
				out = append(out, n)
			}
		}
		return out, nil
	case []string:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			if n, ok := model.AsInt64(item); ok {
				out = append(out, n)
			}
		}
		return out, nil
	default:
		return []int64{}, nil
	}
}

func (multiChoiceHandler) Display(raw any) any {
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []int64:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return coerceString(raw)
	}
}

type checkboxHandler struct{}

func (checkboxHandler) Coerce(_ context.Context, raw any, _ CoerceContext) (any, error) {
	return Truthy(raw), nil
}

func (checkboxHandler) Display(raw any) any { return Truthy(raw) }

// Truthy interprets common checkbox submissions: booleans pass through,
// "on"/"true"/"1" mean checked, anything empty means unchecked.
func Truthy(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		switch v {
		case "", "0", "false", "off":
			return false
		default:
			return true
		}
	case int, int32, int64, float64:
		n, _ := model.AsFloat64(v)
		return n != 0
	default:
		return true
	}
}

// captchaHandler never persists a value: verification is a collaborator
// concern and the token is dropped after the check.
type captchaHandler struct{}

func (captchaHandler) Coerce(_ context.Context, _ any, _ CoerceContext) (any, error) {
	return nil, nil
}

func (captchaHandler) Display(_ any) any { return nil }
