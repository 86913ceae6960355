/*
Package pipeline executes step graphs.

A Pipeline holds the top-level steps of a graph. Every call to Execute
creates a fresh Executor which walks the graph from the start step, one step
at a time, until an end step is reached:

  - start and error steps follow their default connection;
  - end steps stop the walk;
  - composite steps walk their private sub-graph, which must stop on the
    composite's end step;
  - single steps check the in-port, call the handler, check the resulting
    out-port and follow its connection.

A failing step continues on its "error" out-port when it is declared and
connected. Otherwise the failure ends the walk and, when the pipeline has an
error step, the executor starts a second walk there with the failure in
flight. Failures that are not handled come back as *domain.ExecutorError.

Observers subscribe with AddListener. An ExecutionListener receives every
new Executor in ExecuteStart and may subscribe a StepListener to it.
*/
package pipeline
