package observability_test

import (
	"errors"
	"testing"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/dsl"
	"github.com/aretw0/ruleflow/pkg/pipeline"
)

// orderRule builds start -> check -> end where check fails when ctx["fail"] is set.
func orderRule(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	b := dsl.New("order")
	start, end := b.Start(), b.End()
	check := b.Single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		if data["fail"] == true {
			done.Fail(errors.New("rejected"))
			return
		}
		data["checked"] = true
		done.Default()
	})).Name("check")
	start.Go(check)
	check.Go(end)

	p, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return p
}
