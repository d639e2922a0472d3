/*
Package observability turns run lifecycle events into logs, metrics and traces.

Every helper produces either domain.LifecycleHooks or a graph.Middleware, so it
can be attached to an Engine without changing node code:

	metrics := observability.NewMetrics()
	eng, _ := stategraph.New(g,
		stategraph.WithLifecycleHooks(metrics.Hooks().Merge(observability.LogHooks(logger))),
		stategraph.WithMiddleware(observability.Tracing(otel.Tracer("stategraph"))),
	)
*/
package observability
