package domain

import (
	"strconv"
	"strings"
	"sync"
)

// StepID identifies a step within its owning scope (a pipeline or a composite).
// Integer ids are stored in their decimal form, see IntID.
type StepID string

// IntID returns the StepID of an integer identifier.
func IntID(n int) StepID {
	return StepID(strconv.Itoa(n))
}

func (id StepID) String() string {
	return string(id)
}

// Compare orders ids numerically when both are integers and lexically otherwise.
// Integer ids sort before non-integer ones. Equal numbers written differently
// ("01", "1") fall back to the lexical order.
func (id StepID) Compare(other StepID) int {
	a, aErr := strconv.Atoi(string(id))
	b, bErr := strconv.Atoi(string(other))
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(string(id), string(other))
}

// IDGenerator hands out fresh step ids for one graph-construction context.
// Ids passed explicitly through Options are reserved so the generator never
// produces them. Safe for concurrent use.
type IDGenerator struct {
	mu   sync.Mutex
	last int
	used map[StepID]struct{}
}

// NewIDGenerator creates a generator whose first id is "1".
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{used: make(map[StepID]struct{})}
}

// Next returns an id that was neither generated nor reserved before.
func (g *IDGenerator) Next() StepID {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		g.last++
		id := IntID(g.last)
		if _, taken := g.used[id]; taken {
			continue
		}
		g.used[id] = struct{}{}
		return id
	}
}

// Reserve marks id as used.
func (g *IDGenerator) Reserve(id StepID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.used[id] = struct{}{}
}
