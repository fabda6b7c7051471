package middleware

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode"
)

// Validation limits.
const (
	// WebsiteIDLength is the exact length of a website or notification ID.
	WebsiteIDLength = 26

	// MaxPagePathLength caps the page query parameter on notification
	// fetches.
	MaxPagePathLength = 512
)

// Validation errors.
var (
	ErrIDInvalid       = errors.New("identifier is not a valid ULID")
	ErrPagePathTooLong = errors.New("page path exceeds maximum length")
	ErrPagePathInvalid = errors.New("page path is invalid")
	ErrNotJSON         = errors.New("request body must be JSON")
)

// ulidPattern matches the Crockford base32 alphabet used by ULIDs.
// I, L, O and U are excluded from the alphabet.
var ulidPattern = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Za-hjkmnp-tv-z]{26}$`)

// ValidateULID validates a path identifier (website ID, notification ID).
// IDs are ULIDs, so anything else can be refused before touching storage.
func ValidateULID(id string) error {
	if len(id) != WebsiteIDLength || !ulidPattern.MatchString(id) {
		return ErrIDInvalid
	}
	return nil
}

// ValidatePagePath validates the page query parameter sent by the widget
// when fetching notifications. It is a pathname, not a full URL.
func ValidatePagePath(page string) error {
	if page == "" {
		return nil // Empty means no page targeting filter.
	}

	if len(page) > MaxPagePathLength {
		return ErrPagePathTooLong
	}

	if !strings.HasPrefix(page, "/") {
		return ErrPagePathInvalid
	}

	for _, r := range page {
		if unicode.IsControl(r) || r == ' ' {
			return ErrPagePathInvalid
		}
	}

	return nil
}

// RequireJSON returns a middleware that rejects non-JSON bodies on
// mutating requests. GET and OPTIONS pass through untouched.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodOptions || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		ct := r.Header.Get("Content-Type")
		if mediaType := strings.TrimSpace(strings.Split(ct, ";")[0]); mediaType != "application/json" && mediaType != "text/plain" {
			// text/plain is accepted because sendBeacon style clients
			// cannot always set Content-Type on cross-origin posts.
			http.Error(w, `{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Request body must be JSON"}}`, http.StatusUnsupportedMediaType)
			return
		}

		next.ServeHTTP(w, r)
	})
}
