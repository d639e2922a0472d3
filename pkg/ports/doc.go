/*
Package ports defines the driven ports (interfaces) of the stategraph engine.

These interfaces decouple graph nodes and hosts from external implementations,
so the same graphs run against live services, fixed tables or test doubles.

# Key Interfaces

  - Generator: produces the next assistant message of a conversation (e.g., Gemini).
  - QuoteSource: fetches a market quote for a ticker symbol.
  - RunStore: persists state snapshots for multi-turn sessions.
  - DistributedLocker: serializes access to one session across replicas.
*/
package ports
