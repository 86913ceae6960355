package tests

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/ports"
)

// RuleSourceContractTest is a reusable test suite that verifies if an adapter complies with ports.RuleSource.
// Every rule in want must execute from an empty context without error.
func RuleSourceContractTest(t *testing.T, source ports.RuleSource, want []string) {
	t.Helper()

	// 1. Test Get (Success)
	t.Run("Get_Success", func(t *testing.T) {
		for _, id := range want {
			p, err := source.Get(id)
			if err != nil {
				t.Fatalf("unexpected error getting rule %s: %v", id, err)
			}
			if p.StartStep() == nil {
				t.Errorf("rule %s has no start step", id)
			}
			if _, err := p.Execute(context.Background(), nil); err != nil {
				t.Errorf("rule %s failed to execute: %v", id, err)
			}
		}
	})

	// 2. Test Get (NotFound)
	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := source.Get("non-existent-rule")
		if !errors.Is(err, domain.ErrRuleNotFound) {
			t.Errorf("expected ErrRuleNotFound for non-existent rule, got %v", err)
		}
	})

	// 3. Test IDs
	t.Run("IDs", func(t *testing.T) {
		ids := source.IDs()
		if !slices.IsSorted(ids) {
			t.Errorf("expected sorted ids, got %v", ids)
		}

		sorted := slices.Sorted(slices.Values(want))
		if !slices.Equal(ids, sorted) {
			t.Errorf("expected ids %v, got %v", sorted, ids)
		}
	})
}
