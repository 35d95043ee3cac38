package headers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ParseHeaders converts "Key: Value" strings into a map with canonical keys.
// Entries without a colon are skipped.
func ParseHeaders(h []string) map[string]string {
	m := make(map[string]string)
	for _, hdr := range h {
		key, value, ok := strings.Cut(hdr, ":")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		m[http.CanonicalHeaderKey(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return m
}

// ParseParams converts "key=value" strings into query parameters. Repeated
// keys accumulate values in order.
func ParseParams(p []string) (url.Values, error) {
	if len(p) == 0 {
		return nil, nil
	}
	values := make(url.Values)
	for _, kv := range p {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", kv)
		}
		values.Add(key, value)
	}
	return values, nil
}
