package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// sanitizeText strips markup the policy disallows and returns plain text.
// bluemonday entity-encodes its output; stored values are served as JSON, so
// the entities are decoded again and "a < b" survives unchanged.
func sanitizeText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(value)))
}
