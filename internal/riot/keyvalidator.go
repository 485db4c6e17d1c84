package riot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// LoL Status API, lightweight and served by every platform host
	statusEndpoint = "/lol/status/v4/platform-data"

	defaultValidationTimeout = 10 * time.Second
)

// PlatformStatus is the part of the status response we log
type PlatformStatus struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// KeyValidator validates Riot API keys by making a test request
type KeyValidator struct {
	httpClient *http.Client
	baseURL    string
}

// KeyValidatorOption configures a KeyValidator
type KeyValidatorOption func(*KeyValidator)

// WithBaseURL sets a custom base URL (useful for testing)
func WithBaseURL(url string) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.baseURL = url
	}
}

// WithValidationPlatform validates against the given platform host
func WithValidationPlatform(platform string) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.baseURL = platformBaseURL(platform)
	}
}

// WithTimeout sets a custom timeout for validation requests
func WithTimeout(timeout time.Duration) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.httpClient.Timeout = timeout
	}
}

// NewKeyValidator creates a new KeyValidator with the given options
func NewKeyValidator(opts ...KeyValidatorOption) *KeyValidator {
	v := &KeyValidator{
		httpClient: &http.Client{
			Timeout: defaultValidationTimeout,
		},
		baseURL: platformBaseURL(defaultPlatform),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// ValidateKey validates an API key by making a test request to the Riot API.
// Returns:
//   - (true, nil) if the key is valid
//   - (false, nil) if the key is invalid (401/403)
//   - (false, error) if there was a network/server error (key validity unknown)
func (v *KeyValidator) ValidateKey(ctx context.Context, apiKey string) (bool, error) {
	if apiKey == "" {
		return false, fmt.Errorf("API key cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+statusEndpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Riot-Token", apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var status PlatformStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err == nil && status.ID != "" {
			log.Printf("[Riot] API key accepted by %s (%s)", status.ID, status.Name)
		}
		return true, nil

	case http.StatusUnauthorized, http.StatusForbidden:
		return false, nil

	default:
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}
