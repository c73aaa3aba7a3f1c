/*
Package observability turns scene lifecycle hooks into Prometheus metrics
and structured log records.

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LoggingHooks(logger))
	scene, _ := theatre.New(repo, theatre.WithLifecycleHooks(hooks))
*/
package observability
