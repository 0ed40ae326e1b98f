// Package safety inspects SQL statements before they reach a backend
// connector. It enforces read-only policy with a mutating-keyword
// detector, screens for injection-shaped input independent of the
// read-only flag, and validates explicit read-only entry points. Every
// check is total and side-effect-free: any input string produces a
// verdict, never an error.
package safety

import (
	"fmt"
	"strings"
)

// Rule identifies which check rejected a statement.
type Rule string

const (
	// RuleMutatingKeyword means the statement starts with a keyword that
	// would modify the database while the connection is read-only.
	RuleMutatingKeyword Rule = "mutating_keyword"

	// RuleInjectionRisk means the statement matched an injection pattern.
	// This rule applies regardless of the read-only flag.
	RuleInjectionRisk Rule = "injection_risk"

	// RuleNotReadOnly means an explicitly read-only entry point received a
	// statement that does not start with an allowed read prefix.
	RuleNotReadOnly Rule = "not_read_only"
)

// Verdict is the result of gating one statement. It is always fully
// populated: Allowed is false iff Rule is set.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Rule    Rule   `json:"rule,omitempty"`
	Matched string `json:"matched,omitempty"`
	Message string `json:"message,omitempty"`
}

// Err converts a rejecting verdict into an error. Allowed verdicts
// return nil.
func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}
	return &Violation{Verdict: v}
}

// Violation is the structured error carried by a gate rejection. It is
// machine-distinguishable by Rule and never wraps a backend error: a
// violation means no network call was made.
type Violation struct {
	Verdict
}

func (v *Violation) Error() string {
	return fmt.Sprintf("query rejected (%s): %s", v.Rule, v.Message)
}

// DetectMutatingKeywords returns every leading mutating keyword the
// statement matches.
func DetectMutatingKeywords(sql string) []string {
	var matches []string
	for _, p := range mutatingPatterns {
		if p.Regex.MatchString(sql) {
			matches = append(matches, p.Keyword)
		}
	}
	return matches
}

// Finding describes one injection-pattern match.
type Finding struct {
	Pattern     string `json:"pattern"`
	Matched     string `json:"matched"`
	Description string `json:"description"`
}

// CheckInjectionRisk scans the statement against the injection pattern
// table and reports every match.
func CheckInjectionRisk(sql string) []Finding {
	var findings []Finding
	for _, p := range injectionPatterns {
		if m := p.Regex.FindString(sql); m != "" {
			findings = append(findings, Finding{
				Pattern:     p.Name,
				Matched:     m,
				Description: p.Description,
			})
		}
	}
	return findings
}

// Gate bundles the detectors behind one entry point.
type Gate struct{}

// NewGate creates a Gate.
func NewGate() *Gate {
	return &Gate{}
}

// Check runs both detectors and returns a verdict. The mutating-keyword
// check rejects only when the connection is read-only; the injection
// check rejects unconditionally. Both always run so a verdict reflects
// the strongest applicable rule.
func (g *Gate) Check(sql string, readonly bool) Verdict {
	mutating := DetectMutatingKeywords(sql)
	findings := CheckInjectionRisk(sql)

	if readonly && len(mutating) > 0 {
		return Verdict{
			Rule:    RuleMutatingKeyword,
			Matched: strings.Join(mutating, ", "),
			Message: fmt.Sprintf("query contains mutating operations: %s", strings.Join(mutating, ", ")),
		}
	}

	if len(findings) > 0 {
		parts := make([]string, 0, len(findings))
		for _, f := range findings {
			parts = append(parts, f.Pattern)
		}
		return Verdict{
			Rule:    RuleInjectionRisk,
			Matched: findings[0].Matched,
			Message: fmt.Sprintf("query matches injection patterns: %s", strings.Join(parts, ", ")),
		}
	}

	return Verdict{Allowed: true}
}

// CheckReadOnlyQuery is the composite check for explicitly read-only
// execution entry points: both detectors plus the read-prefix validator.
func (g *Gate) CheckReadOnlyQuery(sql string) Verdict {
	if v := g.Check(sql, true); !v.Allowed {
		return v
	}
	return ValidateReadOnlyQuery(sql)
}
