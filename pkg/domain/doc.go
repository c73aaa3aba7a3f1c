/*
Package domain contains the core value types of the Theatre trace-tree engine.

It defines the charm state snapshot, events and their classification, the
edge labels (EventSpec), evaluation outputs and failures, delta transforms and
the persisted scene description. The package holds no I/O; the engine and its
adapters live in internal/ and pkg/adapters.

# Key Entities

  - State: an immutable snapshot of what a charm can observe (containers, relations, secrets...).
  - Event / EventSpec: the hook fired along an edge, plus the arguments used to complete it.
  - Output: the result of evaluating one node. Exactly one of State or Failure is set.
  - Failure: an evaluation error captured as data, classified by FailureKind.
  - Delta: a named pure transform producing a derived branch.
  - SceneSpec: node and edge identity as persisted across save/reload.
*/
package domain
