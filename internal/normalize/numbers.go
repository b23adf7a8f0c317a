package normalize

import (
	"strconv"
	"strings"
)

// Int parses a 32-bit integer token. Blank, malformed, or out-of-range values yield 0.
func Int(v string) int32 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}

// Int64 parses a 64-bit integer token. Blank, malformed, or out-of-range values yield 0.
func Int64(v string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
