/*
Package observability provides tools for monitoring rule executions.

All of them are listeners on the event stream of a pipeline:

  - Debug logs every execution and step event at debug level.
  - Metrics exports run and step counters and run durations to Prometheus.
  - Recorder turns one execution into a domain.RunRecord and persists it.

Listeners are attached to a pipeline, which reports every execution to them.
Step-level events are obtained by subscribing to the fresh executor handed
to ExecuteStart, and the subscription ends with ExecuteEnd.
*/
package observability
