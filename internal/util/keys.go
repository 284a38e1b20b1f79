package util

import "strings"

// WithPrefix qualifies key with prefix unless it already carries it.
func WithPrefix(prefix, key string) string {
	if prefix == "" || strings.HasPrefix(key, prefix) {
		return key
	}
	return prefix + key
}

// StripPrefix returns key without prefix and whether the prefix was present.
func StripPrefix(prefix, key string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return key, false
	}
	return key[len(prefix):], true
}

// CacheKey maps a prefixed key onto the cache keyspace: every rune outside
// [A-Za-z0-9-_] becomes '_'. Distinct keys may collide; callers must keep
// the original key next to the cached value to tell them apart.
func CacheKey(prefixedKey string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, prefixedKey)
}
