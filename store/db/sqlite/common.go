package sqlite

import "strings"

// SQLite binds every argument with "?", so the position is ignored.
func placeholder(int) string {
	return "?"
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
