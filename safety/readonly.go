package safety

import (
	"regexp"
	"strings"
)

var (
	lineCommentRegex  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRegex = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRegex   = regexp.MustCompile(`\s+`)
)

// readPrefixes are the statement heads accepted by the read-only
// validator.
var readPrefixes = []string{"SELECT", "EXPLAIN", "SHOW"}

// ValidateReadOnlyQuery checks that a statement is a read. Comments are
// stripped and whitespace collapsed before the prefix test; the allowed
// heads are SELECT, EXPLAIN, SHOW, and WITH. A WITH statement is only
// accepted when the statement after the CTE list itself starts with
// SELECT, EXPLAIN, or SHOW.
func ValidateReadOnlyQuery(sql string) Verdict {
	cleaned := normalize(sql)
	if cleaned == "" {
		return Verdict{
			Rule:    RuleNotReadOnly,
			Message: "empty query",
		}
	}

	upper := strings.ToUpper(cleaned)

	for _, prefix := range readPrefixes {
		if hasKeywordPrefix(upper, prefix) {
			return Verdict{Allowed: true}
		}
	}

	if hasKeywordPrefix(upper, "WITH") {
		if cteTailIsRead(upper) {
			return Verdict{Allowed: true}
		}
		return Verdict{
			Rule:    RuleNotReadOnly,
			Matched: "WITH",
			Message: "WITH statement must resolve to a SELECT, EXPLAIN, or SHOW",
		}
	}

	return Verdict{
		Rule:    RuleNotReadOnly,
		Matched: firstWord(upper),
		Message: "query must start with one of: SELECT, EXPLAIN, SHOW, WITH",
	}
}

// normalize strips comments and collapses runs of whitespace.
func normalize(sql string) string {
	sql = blockCommentRegex.ReplaceAllString(sql, " ")
	sql = lineCommentRegex.ReplaceAllString(sql, " ")
	sql = whitespaceRegex.ReplaceAllString(sql, " ")
	return strings.TrimSpace(sql)
}

// hasKeywordPrefix reports whether the statement starts with the keyword
// as a whole word.
func hasKeywordPrefix(upper, keyword string) bool {
	if !strings.HasPrefix(upper, keyword) {
		return false
	}
	rest := upper[len(keyword):]
	return rest == "" || !isWordChar(rest[0])
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func firstWord(upper string) string {
	for i := 0; i < len(upper); i++ {
		if !isWordChar(upper[i]) {
			return upper[:i]
		}
	}
	return upper
}

// cteTailIsRead scans past the CTE list of a WITH statement and checks
// the first statement-level keyword that follows. CTE bodies live inside
// parentheses, so the first depth-zero statement keyword after WITH is
// the statement the CTEs feed.
func cteTailIsRead(upper string) bool {
	depth := 0
	i := 0
	for i < len(upper) {
		c := upper[i]
		switch {
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			i++
		case depth == 0 && isWordChar(c):
			start := i
			for i < len(upper) && isWordChar(upper[i]) {
				i++
			}
			word := upper[start:i]
			switch word {
			case "WITH", "RECURSIVE", "AS", "MATERIALIZED", "NOT":
				// CTE list machinery, keep scanning.
			case "SELECT", "EXPLAIN", "SHOW":
				// First depth-zero statement keyword after the CTE list.
				return true
			case "INSERT", "UPDATE", "DELETE", "MERGE", "CREATE", "DROP", "ALTER", "TRUNCATE", "GRANT", "REVOKE", "COPY", "VALUES", "TABLE":
				return false
			default:
				// CTE name or column identifier.
			}
		default:
			i++
		}
	}
	return false
}
