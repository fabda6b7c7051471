// Package widget renders the embeddable loader script.
package widget

import (
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

//go:embed widget.js
var script string

// Render produces the per-site loader script. The site's widget key,
// the API base URL and its display settings are substituted into the
// embedded template. Values are JSON-encoded before substitution so they
// cannot break out of the script context.
func Render(site *model.Website, baseURL string) string {
	settings, err := json.Marshal(site.Settings)
	if err != nil {
		settings = []byte("{}")
	}

	out := script
	out = strings.ReplaceAll(out, `"__API_KEY__"`, jsString(site.APIKey))
	out = strings.ReplaceAll(out, `"__BASE_URL__"`, jsString(strings.TrimSuffix(baseURL, "/")))
	out = strings.ReplaceAll(out, "__SETTINGS_JSON__", string(settings))
	return out
}

// jsString encodes a value as a JS string literal.
func jsString(value string) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return `""`
	}
	return string(encoded)
}
