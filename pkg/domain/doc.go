/*
Package domain contains the step graph model of the Ruleflow engine.

It defines the nodes of an execution graph and the way they are wired,
without any knowledge of how a graph is traversed. Traversal lives in
package pipeline; this package is kept free of I/O so that the same model can
be built in code (package dsl), compiled from a description (package
compiler) or inspected by presentation layers.

# Key Entities

  - Step: a node with an id, a type tag, in/out ports, static props, an
    optional handler and at most one outgoing connection per out-port.
  - Composite: a step that owns a private sub-graph with its own start and
    end boundary steps.
  - Handler: one of four explicit call conventions, selected when the handler
    is built (OnContext, OnInPort, OnProps, OnError).
  - Done: the one-shot completion signal handed to every handler.
  - IDGenerator: the id source of one graph-construction context.
  - RunRecord: the persisted trace of one execution.

# Ports

Every step has a "default" in-port and a "default" out-port, both enabled.
Extra ports are declared at construction or added later, and any port can
be disabled. A connection is keyed by its source out-port: connecting the
same out-port twice replaces the first connection.

	ids := domain.NewIDGenerator()
	start, _ := domain.NewStart(domain.Options{IDs: ids})
	check, _ := domain.NewSingle(domain.Options{
		IDs:   ids,
		Ports: domain.PortOptions{Out: []string{"approved", "rejected"}},
		Handler: domain.OnContext(func(data domain.Context, done *domain.Done) {
			if data["amount"].(float64) > 100 {
				done.Next("rejected")
				return
			}
			done.Next("approved")
		}),
	})
	_ = start.ConnectTo(check, "", "")
*/
package domain
