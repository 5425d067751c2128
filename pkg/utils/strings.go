package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var wardCodePattern = regexp.MustCompile(`^[A-Z]{2}-[0-9A-Z]{2}-[0-9A-Z]{3,8}$`)

// NormalizeWardCode trims and upper-cases a ward code.
// e.g. " vn-01-00256 " -> "VN-01-00256"
func NormalizeWardCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidWardCode reports whether a normalized ward code matches the
// CC-PP-WWWWW taxonomy format.
func IsValidWardCode(code string) bool {
	return wardCodePattern.MatchString(code)
}

// ParseInt parses a string to int with a fallback default value
func ParseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}

// ParseInt64 parses a string to int64 with a fallback default value
func ParseInt64(s string, defaultVal int64) int64 {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defaultVal
	}
	return val
}
