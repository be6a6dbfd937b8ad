/*
Package observability provides lifecycle hooks for monitoring Lattice sessions.

Metrics exports Prometheus counters and histograms for mutations, renders and
saves. LogHooks writes the same events to a structured logger. Both return
domain.LifecycleHooks and can be combined with LifecycleHooks.Merge.
*/
package observability
