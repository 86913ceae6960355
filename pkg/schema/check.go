package schema

import (
	"fmt"
	"slices"

	"github.com/aretw0/ruleflow/pkg/definition"
	"github.com/aretw0/ruleflow/pkg/domain"
)

// Check applies the semantic rules of a description and reports every
// violation:
//
//   - step ids are unique within their scope;
//   - connections target a step of the same scope, leave from a declared
//     out-port and enter a declared in-port;
//   - an out-port carries at most one connection;
//   - composites name a startId and an endId among their own steps;
//   - only composites own steps, startId or endId.
func Check(def *definition.Definition) error {
	if def == nil {
		return &ValidationError{Key: "/", Reason: "description is empty"}
	}
	var errs []error
	checkScope("/steps", def.Steps, &errs)
	return aggregate(errs)
}

func checkScope(base string, steps []definition.StepDef, errs *[]error) {
	fail := func(key, format string, args ...any) {
		*errs = append(*errs, &ValidationError{Key: key, Reason: fmt.Sprintf(format, args...)})
	}

	index := make(map[domain.StepID]*definition.StepDef, len(steps))
	for i := range steps {
		step := &steps[i]
		at := fmt.Sprintf("%s/%d", base, i)

		if step.ID == "" {
			fail(at+"/id", "step id is required")
		} else if _, dup := index[step.ID]; dup {
			fail(at+"/id", "duplicate step identifier: %s", step.ID)
		} else {
			index[step.ID] = step
		}

		if !step.Type.Valid() {
			fail(at+"/type", "unknown step type %q", step.Type)
		}

		if !step.IsComposite() {
			if len(step.Steps) > 0 || step.StartID != "" || step.EndID != "" {
				fail(at, "only composite steps own steps, startId or endId")
			}
			continue
		}

		children := make(map[domain.StepID]bool, len(step.Steps))
		for _, child := range step.Steps {
			children[child.ID] = true
		}
		switch {
		case step.StartID == "":
			fail(at+"/startId", "required for composite steps")
		case !children[step.StartID]:
			fail(at+"/startId", "unknown step in composite: %s", step.StartID)
		}
		switch {
		case step.EndID == "":
			fail(at+"/endId", "required for composite steps")
		case !children[step.EndID]:
			fail(at+"/endId", "unknown step in composite: %s", step.EndID)
		}

		checkScope(at+"/steps", step.Steps, errs)
	}

	for i := range steps {
		step := &steps[i]
		outPorts := OutPorts(step)
		used := make(map[string]bool, len(step.Connect))

		for j, conn := range step.Connect {
			at := fmt.Sprintf("%s/%d/connect/%d", base, i, j)

			src := portOrDefault(conn.SrcOutPort)
			if !slices.Contains(outPorts, src) {
				fail(at+"/srcOutPort", "out port %q is not declared on step %s", src, step.ID)
			}
			if used[src] {
				fail(at+"/srcOutPort", "out port %q is already connected", src)
			}
			used[src] = true

			target, ok := index[conn.StepID]
			if !ok {
				fail(at+"/stepId", "unknown step: %s", conn.StepID)
				continue
			}
			dst := portOrDefault(conn.DstInPort)
			if !slices.Contains(InPorts(target), dst) {
				fail(at+"/dstInPort", "in port %q is not declared on step %s", dst, target.ID)
			}
		}
	}
}

// InPorts lists the in-ports a described step will have once built. A
// composite exposes the in-ports of its start step plus its own.
func InPorts(step *definition.StepDef) []string {
	ports := []string{domain.DefaultPort}
	if step.IsComposite() {
		if start := child(step, step.StartID); start != nil {
			ports = append(ports, InPorts(start)...)
		}
	}
	return compact(append(ports, step.Ports.In...))
}

// OutPorts lists the out-ports a described step will have once built. A
// composite exposes the out-ports of its end step plus its own.
func OutPorts(step *definition.StepDef) []string {
	ports := []string{domain.DefaultPort}
	if step.IsComposite() {
		if end := child(step, step.EndID); end != nil {
			ports = append(ports, OutPorts(end)...)
		}
	}
	return compact(append(ports, step.Ports.Out...))
}

func child(step *definition.StepDef, id domain.StepID) *definition.StepDef {
	if id == "" {
		return nil
	}
	for i := range step.Steps {
		if step.Steps[i].ID == id {
			return &step.Steps[i]
		}
	}
	return nil
}

func compact(ports []string) []string {
	out := ports[:0]
	for _, p := range ports {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func portOrDefault(port string) string {
	if port == "" {
		return domain.DefaultPort
	}
	return port
}
