package cache

import "net/url"

// SubKey derives a deterministic sub-key from a filter set.
//
// Filters are sorted by name and escaped, so equal sets always give the same
// key and different sets never collide. Empty values are dropped and an
// empty set gives "", which addresses the bare resource key.
func SubKey(filters map[string]string) string {
	v := url.Values{}
	for k, val := range filters {
		if val == "" {
			continue
		}
		v.Set(k, val)
	}
	return v.Encode()
}
