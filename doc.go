/*
Package ruleflow is a graph-based step execution engine: a rule is a directed
graph of steps connected through named ports, and executing it walks the
graph from its start step, calling one handler per step with a shared
context, until an end step is reached.

It keeps the graph (Logic) apart from the data threaded through one
execution (Context) and from the code that does the work (Handlers), so the
same rule can be run from Go code, the ruleflow CLI, an HTTP server or an
MCP agent.

# Concept

Each step has in-ports and out-ports. A handler receives the port the step
was entered through and chooses exactly one out-port to leave through, or
fails. Failures travel along the "error" out-port when it is connected, then
to the pipeline error step, and otherwise end the execution with a
domain.ExecutorError. Composite steps wrap a private sub-graph between two
boundary steps.

# Key Features

  - Declarative rules: YAML or JSON descriptions, checked against a JSON schema before they compile.
  - Go DSL: the dsl package builds the same graphs in code.
  - Named handlers: a registry maps handler names to Go functions, with built-ins such as set and route.
  - Observability: pipeline and step events feed a debug logger, Prometheus metrics and run records.

# Usage

Compile a description with LoadFile or Parse and execute the returned
pipeline:

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/ruleflow"
		"github.com/aretw0/ruleflow/pkg/domain"
	)

	func main() {
		p, err := ruleflow.LoadFile("rules/approve-order.yaml",
			ruleflow.WithHandler("notify", domain.OnContext(func(data domain.Context, done *domain.Done) {
				fmt.Println("order", data["id"], "needs review")
				done.Default()
			})),
		)
		if err != nil {
			log.Fatal(err)
		}

		result, err := p.Execute(context.Background(), domain.Context{"id": 42, "price": 30, "quantity": 5})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(result["status"])
	}

# Description files

	name: approve-order
	steps:
	  - {id: 1, type: start, connect: [{stepId: 2}]}
	  - id: 2
	    type: single
	    handler: route
	    ports: {out: [review]}
	    props:
	      routes: [{when: "ctx.price * ctx.quantity > 100", port: review}]
	    connect:
	      - {stepId: 3, srcOutPort: review}
	      - {stepId: 4}
	  - {id: 3, type: single, handler: notify, connect: [{stepId: 4}]}
	  - {id: 4, type: end}

Run "ruleflow schema" for the full JSON schema of the format.
*/
package ruleflow
