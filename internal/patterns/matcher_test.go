package patterns

import (
	"reflect"
	"testing"

	"github.com/quietloop/dbdump/internal/config"
)

func TestMatcher_ExactMatch(t *testing.T) {
	m := NewMatcher(config.ExcludeConfig{Exact: []string{"sessions", "cache"}})

	if !m.Matches("sessions") {
		t.Error("expected sessions to be excluded")
	}
	if m.Matches("users") {
		t.Error("did not expect users to be excluded")
	}
}

func TestMatcher_PatternMatch(t *testing.T) {
	m := NewMatcher(config.ExcludeConfig{Patterns: []string{"telescope_*", "pulse_*"}})

	for _, name := range []string{"telescope_entries", "pulse_aggregates"} {
		if !m.Matches(name) {
			t.Errorf("expected %s to match a pattern", name)
		}
	}
	if m.Matches("users") {
		t.Error("did not expect users to match any pattern")
	}
}

func TestMatcher_FilterIncludedAndExcluded(t *testing.T) {
	m := NewMatcher(config.ExcludeConfig{
		Exact:    []string{"audits"},
		Patterns: []string{"telescope_*"},
	})

	tables := []string{"users", "audits", "telescope_entries", "orders"}

	included := m.FilterIncluded(tables)
	wantIncluded := []string{"users", "orders"}
	if !reflect.DeepEqual(included, wantIncluded) {
		t.Errorf("FilterIncluded = %v, want %v", included, wantIncluded)
	}

	excluded := m.FilterTables(tables)
	wantExcluded := []string{"audits", "telescope_entries"}
	if !reflect.DeepEqual(excluded, wantExcluded) {
		t.Errorf("FilterTables = %v, want %v", excluded, wantExcluded)
	}
}

func TestMatcher_InvalidPatternFallsBackToContains(t *testing.T) {
	m := NewMatcher(config.ExcludeConfig{Patterns: []string{"[invalid"}})
	if m.Matches("anything") {
		t.Error("malformed pattern unexpectedly matched")
	}
}
