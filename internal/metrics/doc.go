// Package metrics exports worker pool statistics to Prometheus.
//
// One Metrics value owns a set of labelled collectors; every pool that
// shares it is told apart by the "pool" label. The same calls also feed
// in-process counters so callers without a scraper can read a Snapshot.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//
//	m.RecordSubmitted("demo")
//	m.RecordCompleted("demo", 3*time.Millisecond)
//
//	snap := m.Snapshot("demo")
//	fmt.Printf("completed=%d avg=%v\n", snap.Completed, snap.AverageDuration)
//
// Serve reg with promhttp.HandlerFor to expose the collectors.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package metrics
