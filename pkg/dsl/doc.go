/*
Package dsl provides a Go DSL for programmatically constructing step graphs.

It is the in-code counterpart of a YAML or JSON rule description: a fluent
builder that owns the id generator of the graph, records steps and their
connections, and wires the live pipeline on Build. Steps may reference each
other before they are fully configured; connections are resolved when the
graph is built, in the same order the compiler uses (construct, fill
composites, connect, add).

Example usage:

	b := dsl.New("greeting")

	start := b.Start()
	end := b.End()
	greet := b.Single(domain.OnContext(func(data domain.Context, done *domain.Done) {
		data["message"] = "hello " + data["name"].(string)
		done.Default()
	}))

	start.Go(greet)
	greet.Go(end)

	p, err := b.Build()
	if err != nil {
		return err
	}
	result, err := p.Execute(ctx, domain.Context{"name": "ada"})
*/
package dsl
