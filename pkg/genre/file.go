package genre

import (
	"context"
	"io"
)

// FileRef locates a stored upload: the storage-side directory path and the
// absolute URL handed back to clients.
type FileRef struct {
	Directory string `json:"directory"`
	URL       string `json:"url"`
}

// Upload is a raw submitted file before storage.
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// FileStore is the external storage collaborator for upload_file fields.
type FileStore interface {
	Store(ctx context.Context, upload Upload) (FileRef, error)
	Delete(ctx context.Context, ref FileRef) error
}

// Removal is the coerced form of an explicit false submitted for an upload
// field when no FileStore is wired. Validation-time coercion runs without the
// store, so the sentinel carries the removal intent through to storage-time
// coercion, which performs the delete and collapses the value to nil.
type Removal struct{}

// uploadHandler is the only handler with a side effect. An already-structured
// descriptor (unchanged re-submission) short-circuits storage; an explicit
// false deletes the previously stored file, degrading to the Removal sentinel
// while no store is wired; a raw Upload is persisted when a store is
// available and passes through untouched otherwise.
type uploadHandler struct{}

func (uploadHandler) Coerce(ctx context.Context, raw any, cc CoerceContext) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case FileRef:
		return v, nil
	case *FileRef:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case map[string]any:
		if ref, ok := refFromMap(v); ok {
			return ref, nil
		}
		return nil, nil
	case bool:
		if v {
			return nil, nil
		}
		if cc.Files == nil {
			return Removal{}, nil
		}
		if cc.Prior != nil {
			if err := cc.Files.Delete(ctx, *cc.Prior); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case Removal:
		return uploadHandler{}.Coerce(ctx, false, cc)
	case Upload:
		if cc.Files == nil {
			return v, nil
		}
		if cc.Prior != nil {
			// Best effort: a replaced upload should not orphan the old file.
			_ = cc.Files.Delete(ctx, *cc.Prior)
		}
		return cc.Files.Store(ctx, v)
	case *Upload:
		if v == nil {
			return nil, nil
		}
		return uploadHandler{}.Coerce(ctx, *v, cc)
	default:
		return nil, nil
	}
}

func (uploadHandler) Display(raw any) any {
	switch v := raw.(type) {
	case FileRef:
		return v.URL
	case *FileRef:
		if v == nil {
			return nil
		}
		return v.URL
	case map[string]any:
		if ref, ok := refFromMap(v); ok {
			return ref.URL
		}
		return nil
	default:
		return nil
	}
}

func refFromMap(m map[string]any) (FileRef, bool) {
	dir, dirOK := m["directory"].(string)
	url, urlOK := m["url"].(string)
	if !dirOK && !urlOK {
		return FileRef{}, false
	}
	return FileRef{Directory: dir, URL: url}, true
}

// RefOf extracts a FileRef from a stored value, tolerating both the typed
// form and the JSON round-tripped map form.
func RefOf(value any) (FileRef, bool) {
	switch v := value.(type) {
	case FileRef:
		return v, true
	case *FileRef:
		if v == nil {
			return FileRef{}, false
		}
		return *v, true
	case map[string]any:
		return refFromMap(v)
	default:
		return FileRef{}, false
	}
}
