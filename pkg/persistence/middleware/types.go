// Package middleware wraps scene stores to protect what they persist.
// Custom node values are full charm states and may carry secret contents
// or credentials in config; these middlewares encrypt or redact them.
package middleware

import "github.com/aretw0/theatre/pkg/ports"

// Middleware allows wrapping a SceneStore to add behavior.
type Middleware func(ports.SceneStore) ports.SceneStore

// Chain applies middlewares so that the first one sees calls first.
func Chain(store ports.SceneStore, mws ...Middleware) ports.SceneStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
