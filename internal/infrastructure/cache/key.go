package cache

import "strings"

// sep is the ASCII unit separator; it never appears in stock codes, periods
// or provider names, so joined keys cannot collide.
const sep = "\x1f"

// Key builds a deterministic cache key from its parts.
func Key(parts ...string) string {
	return strings.Join(parts, sep)
}
