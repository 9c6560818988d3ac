// Package captcha defines the black-box verification collaborator used for
// captcha-genre fields.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier checks a submitted captcha token.
type Verifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// VerifierFunc adapts a function into a Verifier.
type VerifierFunc func(ctx context.Context, token string) (bool, error)

// Verify delegates to the underlying function.
func (fn VerifierFunc) Verify(ctx context.Context, token string) (bool, error) {
	return fn(ctx, token)
}

// AlwaysValid accepts every non-empty token. Intended for development and
// tests only.
func AlwaysValid() Verifier {
	return VerifierFunc(func(_ context.Context, token string) (bool, error) {
		return strings.TrimSpace(token) != "", nil
	})
}

// HTTPVerifier posts tokens to a reCAPTCHA-style siteverify endpoint.
type HTTPVerifier struct {
	VerifyURL string
	Secret    string
	Client    *http.Client
}

// Verify submits the token and reports the endpoint's success flag.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	client := v.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	form := url.Values{}
	form.Set("secret", v.Secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("captcha: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha: verify request: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("captcha: decode response: %w", err)
	}
	return payload.Success, nil
}
