package validator

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/dominikbraun/graph"
)

var (
	ErrNoStart     = errors.New("no start step")
	ErrNoEnd       = errors.New("start step cannot reach an end")
	ErrDangling    = errors.New("connection to unknown step")
	ErrUnreachable = errors.New("step is unreachable")
	ErrNoBoundary  = errors.New("composite boundary not set")
)

// scope is one level of the graph: the pipeline or a composite sub-graph.
type scope struct {
	path  string
	steps map[domain.StepID]*domain.Step
	start *domain.Step
	// end is the exit boundary of a composite. At the top level any end step
	// counts.
	end     *domain.Step
	errStep *domain.Step
}

// Validate checks the structure of p and of every composite inside it:
// a start step exists, connections point at steps of the same scope, the
// start step reaches an end and every step is reachable from the start or
// the error step. All problems are returned joined.
func Validate(p *pipeline.Pipeline) error {
	top := scope{
		path:    p.Name(),
		steps:   make(map[domain.StepID]*domain.Step),
		start:   p.StartStep(),
		errStep: p.ErrorStep(),
	}
	for _, s := range p.Steps() {
		top.steps[s.ID()] = s
	}

	var errs []error
	check(top, &errs)
	if len(errs) > 0 {
		return fmt.Errorf("found %d problems: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func check(sc scope, errs *[]error) {
	fail := func(err error, format string, args ...any) {
		*errs = append(*errs, fmt.Errorf("%s: %w: %s", sc.path, err, fmt.Sprintf(format, args...)))
	}

	g, err := build(sc, fail)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", sc.path, err))
		return
	}

	if sc.start == nil {
		fail(ErrNoStart, "%d steps", len(sc.steps))
	} else {
		visited := reach(g, sc.start.ID())
		if sc.errStep != nil {
			for id := range reach(g, sc.errStep.ID()) {
				visited[id] = true
			}
		}

		if !reachesEnd(g, sc) {
			fail(ErrNoEnd, "from %s", sc.start.ID())
		}
		for _, id := range sortedIDs(sc.steps) {
			if !visited[id] {
				fail(ErrUnreachable, "%s", sc.steps[id])
			}
		}
	}

	for _, id := range sortedIDs(sc.steps) {
		c, ok := domain.AsComposite(sc.steps[id])
		if !ok {
			continue
		}
		inner := scope{
			path:  sc.path + "/" + string(id),
			steps: c.StepMap(),
			start: c.StartStep(),
			end:   c.EndStep(),
		}
		if inner.start == nil || inner.end == nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", inner.path, ErrNoBoundary))
			continue
		}
		check(inner, errs)
	}
}

// build mirrors one scope into a directed graph keyed by step id. Dangling
// connections are reported and left out.
func build(sc scope, fail func(error, string, ...any)) (graph.Graph[domain.StepID, *domain.Step], error) {
	g := graph.New(func(s *domain.Step) domain.StepID { return s.ID() }, graph.Directed())
	for _, id := range sortedIDs(sc.steps) {
		if err := g.AddVertex(sc.steps[id]); err != nil {
			return nil, err
		}
	}
	for _, id := range sortedIDs(sc.steps) {
		for _, conn := range sc.steps[id].Connections() {
			if _, ok := sc.steps[conn.StepID]; !ok {
				fail(ErrDangling, "%s -> %s", id, conn.StepID)
				continue
			}
			err := g.AddEdge(id, conn.StepID)
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, err
			}
		}
	}
	return g, nil
}

func reach(g graph.Graph[domain.StepID, *domain.Step], from domain.StepID) map[domain.StepID]bool {
	visited := make(map[domain.StepID]bool)
	_ = graph.BFS(g, from, func(id domain.StepID) bool {
		visited[id] = true
		return false
	})
	return visited
}

func reachesEnd(g graph.Graph[domain.StepID, *domain.Step], sc scope) bool {
	found := false
	_ = graph.BFS(g, sc.start.ID(), func(id domain.StepID) bool {
		if sc.end != nil {
			found = id == sc.end.ID()
		} else {
			found = sc.steps[id].Type() == domain.StepTypeEnd
		}
		return found
	})
	return found
}

func sortedIDs(steps map[domain.StepID]*domain.Step) []domain.StepID {
	return slices.SortedFunc(maps.Keys(steps), domain.StepID.Compare)
}

// Report formats the problems of err one per line, for the CLI.
func Report(err error) string {
	var lines []string
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			lines = append(lines, "- "+e.Error())
		}
		return strings.Join(lines, "\n")
	}
	return "- " + err.Error()
}
