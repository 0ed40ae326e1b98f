package safety

import (
	"errors"
	"strings"
	"testing"
)

func TestDetectMutatingKeywords(t *testing.T) {
	tests := []struct {
		sql  string
		want []string
	}{
		{"INSERT INTO t VALUES (1)", []string{"INSERT"}},
		{"  update t set x = 1", []string{"UPDATE"}},
		{"DELETE FROM t", []string{"DELETE"}},
		{"DROP TABLE t", []string{"DROP"}},
		{"TRUNCATE t", []string{"TRUNCATE"}},
		{"VACUUM FULL t", []string{"VACUUM"}},
		{"COPY t TO '/tmp/out.csv'", []string{"COPY TO"}},
		{"SELECT * FROM inserts", nil},
		{"SELECT delete_count FROM stats", nil},
		{"COPY t FROM '/tmp/in.csv'", nil},
	}

	for _, tt := range tests {
		got := DetectMutatingKeywords(tt.sql)
		if len(got) != len(tt.want) {
			t.Errorf("DetectMutatingKeywords(%q) = %v, want %v", tt.sql, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("DetectMutatingKeywords(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		}
	}
}

func TestCheckInjectionRisk(t *testing.T) {
	dirty := []string{
		"SELECT * FROM t; DROP TABLE t;",
		"SELECT * FROM t; delete from t",
		"SELECT * FROM t -- trailing comment",
		"SELECT /* hidden */ * FROM t",
		"SELECT * FROM t UNION SELECT username, password FROM pg_shadow",
		"SELECT * FROM t UNION ALL SELECT 1,2",
		"SELECT * FROM t WHERE x = 1 OR 1=1",
		"SELECT * FROM t WHERE x = '' OR 'a'='a'",
	}
	for _, sql := range dirty {
		if findings := CheckInjectionRisk(sql); len(findings) == 0 {
			t.Errorf("CheckInjectionRisk(%q) found nothing", sql)
		}
	}

	clean := []string{
		"SELECT * FROM users WHERE id = $1",
		"SELECT a, b FROM t ORDER BY a",
		"EXPLAIN SELECT 1",
	}
	for _, sql := range clean {
		if findings := CheckInjectionRisk(sql); len(findings) != 0 {
			t.Errorf("CheckInjectionRisk(%q) = %v, want none", sql, findings)
		}
	}
}

func TestGateMutatingRejectionRequiresReadOnly(t *testing.T) {
	g := NewGate()

	v := g.Check("DELETE FROM t", true)
	if v.Allowed {
		t.Fatal("mutating statement must be rejected on a read-only connection")
	}
	if v.Rule != RuleMutatingKeyword {
		t.Errorf("rule = %q, want %q", v.Rule, RuleMutatingKeyword)
	}

	v = g.Check("DELETE FROM t WHERE id = 1", false)
	if !v.Allowed {
		t.Errorf("mutating statement on a writable connection should pass the gate, got %+v", v)
	}
}

func TestGateInjectionRejectionIgnoresReadOnlyFlag(t *testing.T) {
	g := NewGate()

	for _, readonly := range []bool{true, false} {
		for _, sql := range []string{
			"SELECT * FROM t; DROP TABLE t;",
			"SELECT * FROM t UNION SELECT 1",
			"SELECT * FROM t WHERE x = 1 or 1 = 1",
		} {
			v := g.Check(sql, readonly)
			if v.Allowed {
				t.Errorf("Check(%q, readonly=%v) allowed an injection-shaped statement", sql, readonly)
			}
		}
	}
}

func TestGateVerdictIsTotal(t *testing.T) {
	g := NewGate()
	inputs := []string{"", "   ", "garbage input (((", strings.Repeat("a", 100000), "SELECT 1"}
	for _, sql := range inputs {
		v := g.Check(sql, true)
		if !v.Allowed && v.Rule == "" {
			t.Errorf("rejecting verdict for %q carries no rule", sql)
		}
	}
}

func TestVerdictErr(t *testing.T) {
	g := NewGate()

	if err := g.Check("SELECT 1", true).Err(); err != nil {
		t.Errorf("allowed verdict should have nil error, got %v", err)
	}

	err := g.Check("DROP TABLE t", true).Err()
	var violation *Violation
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want *Violation", err)
	}
	if violation.Rule != RuleMutatingKeyword {
		t.Errorf("rule = %q", violation.Rule)
	}
}

func TestCheckReadOnlyQueryComposite(t *testing.T) {
	g := NewGate()

	if v := g.CheckReadOnlyQuery("SELECT * FROM t"); !v.Allowed {
		t.Errorf("plain select rejected: %+v", v)
	}
	if v := g.CheckReadOnlyQuery("DELETE FROM t"); v.Rule != RuleMutatingKeyword {
		t.Errorf("rule = %q, want mutating_keyword", v.Rule)
	}
	if v := g.CheckReadOnlyQuery("CALL do_things()"); v.Rule != RuleNotReadOnly {
		t.Errorf("rule = %q, want not_read_only", v.Rule)
	}
}
