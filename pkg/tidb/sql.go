package tidb

import (
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// QuoteIdentifier escapes name for interpolation into SQL as an identifier,
// using backtick quoting.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdentifier(name)
	}
	return quoted
}

// IsReadOnlyStatement reports whether stmt starts with a statement kind
// that cannot modify data. It looks at the leading keyword only; callers
// that need a hard guarantee should rely on engine privileges instead.
func IsReadOnlyStatement(stmt string) bool {
	trimmed := strings.TrimSpace(stmt)
	for strings.HasPrefix(trimmed, "(") {
		trimmed = strings.TrimSpace(trimmed[1:])
	}
	word := trimmed
	if idx := strings.IndexFunc(trimmed, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '('
	}); idx >= 0 {
		word = trimmed[:idx]
	}
	switch strings.ToUpper(word) {
	case "SELECT", "SHOW", "DESC", "DESCRIBE", "EXPLAIN", "WITH", "TABLE":
		return true
	}
	return false
}
