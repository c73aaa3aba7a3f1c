/*
Package ports defines the driven ports (interfaces) of the Theatre engine.

These interfaces decouple the trace-tree core from the charm runtime, the
storage backends and the configuration sources.

# Key Interfaces

  - ExecutionContext / ContextFactory: the opaque charm transition function, one context per call.
  - SceneStore: persists scene descriptions (node/edge identity and custom values).
  - MountLoader / Watchable: reads the situation mount configuration and signals changes.
  - DistributedLocker: coordinates concurrent access to a scene across replicas.
*/
package ports
