/*
Package domain contains the core data model of the stategraph executor.

It defines the typed state threaded through every node, the merge rules applied
after each step, the chat message record used by the tool-call loop, the run
result, and the error taxonomy shared by the builder and the executor. This
package is kept pure and free of I/O so it can be reused by every adapter.

# Key Entities

  - Schema: the declared fields of a graph's state (kind, merge policy, default).
  - State: an immutable snapshot of field values. Nodes read it, never mutate it.
  - Partial: the fields a node changed; folded into State by Merge.
  - Message: an entry of the append-only conversation field.
  - Result: the outcome of one run (final state, visited path, status transitions).
*/
package domain
