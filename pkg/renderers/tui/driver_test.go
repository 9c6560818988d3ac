package tui

import (
	"errors"
	"testing"

	"github.com/AlecAivazis/survey/v2"
)

// applyValidator resolves the ask options and runs the single registered
// validator against the answer, mirroring how survey invokes it.
func applyValidator(t *testing.T, opts []survey.AskOpt, answer interface{}) error {
	t.Helper()
	options := &survey.AskOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			t.Fatal(err)
		}
	}
	if len(options.Validators) != 1 {
		t.Fatalf("expected one validator, got %d", len(options.Validators))
	}
	return options.Validators[0](answer)
}

func TestAskOptionsNilValidator(t *testing.T) {
	if opts := askOptions(nil); opts != nil {
		t.Fatalf("expected no options, got %d", len(opts))
	}
}

func TestAskOptionsAdaptsStringValidator(t *testing.T) {
	var got string
	wantErr := errors.New("nope")
	opts := askOptions(func(s string) error {
		got = s
		return wantErr
	})
	if len(opts) != 1 {
		t.Fatalf("expected one ask option, got %d", len(opts))
	}

	// Exercise the adapted validator the way survey invokes it: with the
	// answer as interface{}.
	err := applyValidator(t, opts, "hello")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected validator error, got %v", err)
	}
	if got != "hello" {
		t.Fatalf("validator saw %q", got)
	}

	// Non-string answers degrade to the empty string rather than panicking.
	if err := applyValidator(t, opts, 42); !errors.Is(err, wantErr) {
		t.Fatalf("expected validator error, got %v", err)
	}
	if got != "" {
		t.Fatalf("validator saw %q for a non-string answer", got)
	}
}
