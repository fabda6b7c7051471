package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidateULID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"valid uppercase", "01HZXC4E8PJT4N5W9M2K7Q3R6S", nil},
		{"valid lowercase", "01hzxc4e8pjt4n5w9m2k7q3r6s", nil},
		{"empty", "", ErrIDInvalid},
		{"too short", "01HZXC4E8PJT", ErrIDInvalid},
		{"too long", "01HZXC4E8PJT4N5W9M2K7Q3R6S0", ErrIDInvalid},
		{"excluded letter I", "01HZXC4E8PIT4N5W9M2K7Q3R6S", ErrIDInvalid},
		{"excluded letter O", "01HZXC4E8POT4N5W9M2K7Q3R6S", ErrIDInvalid},
		{"punctuation", "01HZXC4E8PJT4N5W9M2K7Q3R6!", ErrIDInvalid},
		{"path traversal", "../../../../etc/passwd-utf8", ErrIDInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateULID(tt.id); err != tt.wantErr {
				t.Errorf("ValidateULID(%q) = %v, want %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePagePath(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		wantErr error
	}{
		{"empty is no filter", "", nil},
		{"root", "/", nil},
		{"nested path", "/checkout/step-2", nil},
		{"missing leading slash", "checkout", ErrPagePathInvalid},
		{"embedded space", "/check out", ErrPagePathInvalid},
		{"control character", "/checkout\n", ErrPagePathInvalid},
		{"too long", "/" + strings.Repeat("a", MaxPagePathLength), ErrPagePathTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePagePath(tt.page); err != tt.wantErr {
				t.Errorf("ValidatePagePath(%q) = %v, want %v", tt.page, err, tt.wantErr)
			}
		})
	}
}

func TestRequireJSON(t *testing.T) {
	handler := RequireJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{"json post accepted", http.MethodPost, "application/json", `{}`, http.StatusOK},
		{"json with charset accepted", http.MethodPost, "application/json; charset=utf-8", `{}`, http.StatusOK},
		{"beacon text plain accepted", http.MethodPost, "text/plain", `{}`, http.StatusOK},
		{"form post rejected", http.MethodPost, "application/x-www-form-urlencoded", "a=b", http.StatusUnsupportedMediaType},
		{"get ignores content type", http.MethodGet, "text/html", "", http.StatusOK},
		{"empty body ignores content type", http.MethodPost, "text/html", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, "/api/v1/events", strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, "/api/v1/events", nil)
			}
			req.Header.Set("Content-Type", tt.contentType)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
