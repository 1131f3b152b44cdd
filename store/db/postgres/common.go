package postgres

import (
	"strconv"
	"strings"
)

// placeholder returns the n-th positional parameter, counting from 1.
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// placeholders returns "$1, $2, ..., $n" for an INSERT value list.
func placeholders(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		b.WriteString(placeholder(i))
	}
	return b.String()
}
