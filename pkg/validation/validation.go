// Package validation parses configured validator literals and compiles them
// into checkable rules. Configuration problems surface as ConfigError at
// compile time (administrator-facing); rule violations surface as RuleError
// carrying the configured user-facing message.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-formflow/pkg/genre"
	"github.com/goliatone/go-formflow/pkg/model"
)

// Validator kinds. A field carries at most one validator of a given kind.
const (
	KindMaxLength     = "max-length"
	KindMinLength     = "min-length"
	KindMaxValue      = "max-value"
	KindMinValue      = "min-value"
	KindRegex         = "regex"
	KindFileExtension = "file-extension"
	KindFileSize      = "file-size"
)

// Kinds lists every known validator kind.
func Kinds() []string {
	return []string{
		KindMaxLength, KindMinLength, KindMaxValue, KindMinValue,
		KindRegex, KindFileExtension, KindFileSize,
	}
}

// ConfigError reports a malformed validator literal. It is fatal and surfaced
// to administrators only.
type ConfigError struct {
	Kind   string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("validation: %s value %q: %s", e.Kind, e.Value, e.Reason)
}

// RuleError reports a violated rule with its user-facing message.
type RuleError struct {
	Kind    string
	Message string
}

func (e *RuleError) Error() string { return e.Message }

// Parse validates and converts a configured literal into its typed value:
// int64 for length/value bounds, int64 bytes for file-size (literal is float
// megabytes), []string for file-extension, *regexp.Regexp for regex.
func Parse(kind, literal string) (any, error) {
	switch kind {
	case KindMaxLength, KindMinLength, KindMaxValue, KindMinValue:
		n, err := strconv.ParseInt(strings.TrimSpace(literal), 10, 64)
		if err != nil {
			return nil, &ConfigError{Kind: kind, Value: literal, Reason: "integer required"}
		}
		return n, nil
	case KindFileSize:
		mb, err := strconv.ParseFloat(strings.TrimSpace(literal), 64)
		if err != nil {
			return nil, &ConfigError{Kind: kind, Value: literal, Reason: "megabytes required (integer or float)"}
		}
		return int64(mb * (1 << 20)), nil
	case KindFileExtension:
		trimmed := strings.TrimSpace(literal)
		if trimmed == "" {
			return nil, &ConfigError{Kind: kind, Value: literal, Reason: "extension list required"}
		}
		if !strings.Contains(trimmed, ",") && len(strings.Fields(trimmed)) > 1 {
			return nil, &ConfigError{Kind: kind, Value: literal, Reason: "separate values with commas, like: jpg,png"}
		}
		parts := strings.Split(trimmed, ",")
		exts := make([]string, 0, len(parts))
		for _, part := range parts {
			ext := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(part, ".")))
			if ext == "" {
				continue
			}
			exts = append(exts, ext)
		}
		if len(exts) == 0 {
			return nil, &ConfigError{Kind: kind, Value: literal, Reason: "extension list required"}
		}
		return exts, nil
	case KindRegex:
		// Compiled eagerly so malformed patterns fail at configuration time,
		// not on first submission.
		re, err := regexp.Compile(literal)
		if err != nil {
			return nil, &ConfigError{Kind: kind, Value: literal, Reason: err.Error()}
		}
		return re, nil
	default:
		return nil, &ConfigError{Kind: kind, Value: literal, Reason: "unknown validator kind"}
	}
}

// Checker is a compiled, checkable rule.
type Checker struct {
	kind    string
	value   any
	message string
}

// Kind reports the rule kind.
func (c Checker) Kind() string { return c.kind }

// Compile parses the literal and binds the user-facing message, falling back
// to a kind-specific default when the message is empty.
func Compile(kind, literal, message string) (Checker, error) {
	parsed, err := Parse(kind, literal)
	if err != nil {
		return Checker{}, err
	}
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = defaultMessage(kind, parsed)
	}
	return Checker{kind: kind, value: parsed, message: msg}, nil
}

// CompileAll compiles the active validator definitions attached to a field,
// preserving attachment order.
func CompileAll(defs []model.ValidatorDef) ([]Checker, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]Checker, 0, len(defs))
	for _, def := range defs {
		if !def.IsActive {
			continue
		}
		checker, err := Compile(def.Kind, def.Value, def.ErrorMessage)
		if err != nil {
			return nil, err
		}
		out = append(out, checker)
	}
	return out, nil
}

// Check tests a coerced candidate value against the rule. Nil candidates
// always pass: presence is the submission validator's concern, not the
// rule's.
func (c Checker) Check(candidate any) error {
	if candidate == nil {
		return nil
	}
	switch c.kind {
	case KindMaxLength:
		if length(candidate) > c.value.(int64) {
			return c.violation()
		}
	case KindMinLength:
		if length(candidate) < c.value.(int64) {
			return c.violation()
		}
	case KindMaxValue:
		if n, ok := model.AsFloat64(candidate); !ok || n > float64(c.value.(int64)) {
			return c.violation()
		}
	case KindMinValue:
		if n, ok := model.AsFloat64(candidate); !ok || n < float64(c.value.(int64)) {
			return c.violation()
		}
	case KindRegex:
		s, ok := candidate.(string)
		if !ok {
			s = fmt.Sprint(candidate)
		}
		if !c.value.(*regexp.Regexp).MatchString(s) {
			return c.violation()
		}
	case KindFileExtension:
		name, ok := fileName(candidate)
		if !ok {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(fileExt(name), "."))
		for _, allowed := range c.value.([]string) {
			if ext == allowed {
				return nil
			}
		}
		return c.violation()
	case KindFileSize:
		up, ok := candidate.(genre.Upload)
		if !ok {
			// Already-stored descriptors were sized at original upload time.
			return nil
		}
		if up.Size > c.value.(int64) {
			return c.violation()
		}
	}
	return nil
}

func (c Checker) violation() error {
	return &RuleError{Kind: c.kind, Message: c.message}
}

func length(candidate any) int64 {
	switch v := candidate.(type) {
	case string:
		return int64(utf8.RuneCountInString(v))
	case []any:
		return int64(len(v))
	case []string:
		return int64(len(v))
	case []int64:
		return int64(len(v))
	default:
		return int64(utf8.RuneCountInString(fmt.Sprint(v)))
	}
}

func fileName(candidate any) (string, bool) {
	switch v := candidate.(type) {
	case genre.Upload:
		return v.Name, true
	case genre.FileRef:
		return v.Directory, true
	default:
		if ref, ok := genre.RefOf(candidate); ok {
			return ref.Directory, true
		}
		return "", false
	}
}

func fileExt(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx:]
	}
	return ""
}

func defaultMessage(kind string, parsed any) string {
	switch kind {
	case KindMaxLength:
		return fmt.Sprintf("Ensure this value has at most %d characters.", parsed)
	case KindMinLength:
		return fmt.Sprintf("Ensure this value has at least %d characters.", parsed)
	case KindMaxValue:
		return fmt.Sprintf("Ensure this value is less than or equal to %d.", parsed)
	case KindMinValue:
		return fmt.Sprintf("Ensure this value is greater than or equal to %d.", parsed)
	case KindRegex:
		return "Enter a valid value."
	case KindFileExtension:
		return fmt.Sprintf("File extension not allowed. Allowed extensions: %s.", strings.Join(parsed.([]string), ", "))
	case KindFileSize:
		return fmt.Sprintf("The file size is more than limit (limited size: %d bytes).", parsed)
	default:
		return "Invalid value."
	}
}
