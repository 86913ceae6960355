/*
Package ports defines the driven ports (interfaces) around the rule engine.

These interfaces decouple the adapters (HTTP, MCP, CLI) from the concrete
sources of rules and the backends that keep run records.

# Key Interfaces

  - RuleSource: resolves rule ids to executable pipelines (e.g., the catalog).
  - Watchable: a source that signals when its rules were reloaded.
  - RunStore: persists and loads run records (e.g., memory, Redis).

RunStoreContract is the shared test suite every RunStore implementation runs.
*/
package ports
