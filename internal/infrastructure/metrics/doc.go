// Package metrics exposes TrainLink's Prometheus metrics: registry size and
// changes, throttle commands and listeners, and HTTP request counts.
//
// Metrics implements loco.Observer, so registry changes are counted by
// attaching it to the registry:
//
//	m := metrics.New(registry)
//	registry.AddObserver(m)
//	router.Handle("/metrics", m.Handler())
package metrics
