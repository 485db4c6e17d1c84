package riot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestValidateKey tests the status code to validity mapping
func TestValidateKey(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantValid bool
		wantErr   bool
	}{
		{"valid key", http.StatusOK, `{"id":"EUW1","name":"EU West","locales":["en_GB"]}`, true, false},
		{"valid key, odd body", http.StatusOK, `not json`, true, false},
		{"expired key", http.StatusForbidden, `{"status":{"message":"Forbidden","status_code":403}}`, false, false},
		{"unauthorized", http.StatusUnauthorized, `{"status":{"message":"Unauthorized","status_code":401}}`, false, false},
		{"server error", http.StatusInternalServerError, `{}`, false, true},
		{"unavailable", http.StatusServiceUnavailable, ``, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != statusEndpoint {
					t.Errorf("Unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("X-Riot-Token") != "RGAPI-test-key" {
					t.Error("Expected X-Riot-Token header to be set")
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			valid, err := NewKeyValidator(WithBaseURL(server.URL)).ValidateKey(context.Background(), "RGAPI-test-key")
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", valid, tt.wantValid)
			}
		})
	}
}

// TestValidateKey_NetworkError tests that a dropped connection is an error, not an invalid key
func TestValidateKey_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer server.Close()

	valid, err := NewKeyValidator(WithBaseURL(server.URL)).ValidateKey(context.Background(), "RGAPI-test-key")
	if err == nil || valid {
		t.Errorf("Expected error and invalid key, got valid=%v err=%v", valid, err)
	}
}

// TestValidateKey_Timeout tests that a slow platform host yields an error
func TestValidateKey_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	validator := NewKeyValidator(WithBaseURL(server.URL), WithTimeout(50*time.Millisecond))
	valid, err := validator.ValidateKey(context.Background(), "RGAPI-test-key")
	if err == nil || valid {
		t.Errorf("Expected timeout error, got valid=%v err=%v", valid, err)
	}
}

// TestValidateKey_EmptyKey tests that no request is made without a key
func TestValidateKey_EmptyKey(t *testing.T) {
	valid, err := NewKeyValidator().ValidateKey(context.Background(), "")
	if err == nil || valid {
		t.Errorf("Expected error for empty key, got valid=%v err=%v", valid, err)
	}
}

// TestWithValidationPlatform tests that the platform selects the status host
func TestWithValidationPlatform(t *testing.T) {
	v := NewKeyValidator(WithValidationPlatform("NA1"))
	if v.baseURL != "https://na1.api.riotgames.com" {
		t.Errorf("baseURL = %s", v.baseURL)
	}
}
