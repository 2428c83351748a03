package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// credentialParams are query parameters that carry credentials. They never
// become part of a cache key, so two callers using different API keys share
// cached responses and keys never leak into logs or persistent stores.
var credentialParams = map[string]struct{}{
	"key":     {},
	"apikey":  {},
	"api_key": {},
}

// Key identifies a cached response by request path and query parameters.
type Key struct {
	// Path is the request path (e.g. "/result").
	Path string

	// Params are the query parameters of the request.
	Params url.Values
}

// String generates a deterministic cache key string. Parameters are sorted
// by name, multi-valued parameters additionally by value, and credential
// parameters are excluded, so any two requests that differ only in
// parameter order or API key map to the same entry.
//
// Format: catalog:path:param1=val1:param2=val1,val2
//
// Example:
//
//	catalog:result:category=book:n=20:q=water
func (k Key) String() string {
	parts := []string{"catalog"}

	path := strings.Trim(k.Path, "/")
	if path != "" {
		parts = append(parts, path)
	}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			if _, secret := credentialParams[strings.ToLower(name)]; secret {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := append([]string(nil), k.Params[name]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
