package safety

import "regexp"

// MutatingPattern matches a statement whose leading keyword would modify
// the database.
type MutatingPattern struct {
	// Keyword is the canonical name reported on a match.
	Keyword string

	// Regex anchors on the start of the statement.
	Regex *regexp.Regexp
}

// InjectionPattern matches statement-splicing and tautology shapes.
type InjectionPattern struct {
	// Name is a stable identifier for the pattern.
	Name string

	// Regex is the compiled expression.
	Regex *regexp.Regexp

	// Description explains what this pattern detects.
	Description string
}

// mutatingPatterns is the ordered list of leading-keyword checks. The
// detector reports every keyword that matches, not just the first.
var mutatingPatterns = []*MutatingPattern{
	{"INSERT", regexp.MustCompile(`(?i)^\s*INSERT\s+`)},
	{"UPDATE", regexp.MustCompile(`(?i)^\s*UPDATE\s+`)},
	{"DELETE", regexp.MustCompile(`(?i)^\s*DELETE\s+`)},
	{"DROP", regexp.MustCompile(`(?i)^\s*DROP\s+`)},
	{"ALTER", regexp.MustCompile(`(?i)^\s*ALTER\s+`)},
	{"CREATE", regexp.MustCompile(`(?i)^\s*CREATE\s+`)},
	{"TRUNCATE", regexp.MustCompile(`(?i)^\s*TRUNCATE\s+`)},
	{"GRANT", regexp.MustCompile(`(?i)^\s*GRANT\s+`)},
	{"REVOKE", regexp.MustCompile(`(?i)^\s*REVOKE\s+`)},
	{"VACUUM", regexp.MustCompile(`(?i)^\s*VACUUM\s+`)},
	{"REINDEX", regexp.MustCompile(`(?i)^\s*REINDEX\s+`)},
	{"CLUSTER", regexp.MustCompile(`(?i)^\s*CLUSTER\s+`)},
	{"RESET", regexp.MustCompile(`(?i)^\s*RESET\s+`)},
	{"LOAD", regexp.MustCompile(`(?i)^\s*LOAD\s+`)},
	{"COPY TO", regexp.MustCompile(`(?i)^\s*COPY\s+.*\s+TO\s+`)},
}

// injectionPatterns runs regardless of the read-only flag. These are a
// defense-in-depth layer, not a substitute for parameterization.
var injectionPatterns = []*InjectionPattern{
	{
		Name:        "stacked_drop",
		Regex:       regexp.MustCompile(`(?i);\s*DROP\s+`),
		Description: "stacked DROP statement after a statement terminator",
	},
	{
		Name:        "stacked_delete",
		Regex:       regexp.MustCompile(`(?i);\s*DELETE\s+`),
		Description: "stacked DELETE statement after a statement terminator",
	},
	{
		Name:        "stacked_insert",
		Regex:       regexp.MustCompile(`(?i);\s*INSERT\s+`),
		Description: "stacked INSERT statement after a statement terminator",
	},
	{
		Name:        "stacked_update",
		Regex:       regexp.MustCompile(`(?i);\s*UPDATE\s+`),
		Description: "stacked UPDATE statement after a statement terminator",
	},
	{
		Name:        "stacked_alter",
		Regex:       regexp.MustCompile(`(?i);\s*ALTER\s+`),
		Description: "stacked ALTER statement after a statement terminator",
	},
	{
		Name:        "stacked_create",
		Regex:       regexp.MustCompile(`(?i);\s*CREATE\s+`),
		Description: "stacked CREATE statement after a statement terminator",
	},
	{
		Name:        "line_comment",
		Regex:       regexp.MustCompile(`--`),
		Description: "double-dash comment, commonly used to truncate a query",
	},
	{
		Name:        "block_comment",
		Regex:       regexp.MustCompile(`(?s)/\*.*\*/`),
		Description: "block comment embedded in the statement",
	},
	{
		Name:        "union_select",
		Regex:       regexp.MustCompile(`(?i)UNION\s+(ALL\s+)?SELECT`),
		Description: "UNION SELECT used to splice an extra result set",
	},
	{
		Name:        "or_numeric_tautology",
		Regex:       regexp.MustCompile(`(?i)OR\s+1\s*=\s*1`),
		Description: "always-true numeric comparison (OR 1=1)",
	},
	{
		Name:        "or_string_tautology",
		Regex:       regexp.MustCompile(`(?i)OR\s+['"][^'"]*['"]\s*=\s*['"][^'"]*['"]`),
		Description: "always-true string comparison (OR 'a'='a')",
	},
}
