// Package metrics provides the observability hooks of the poll loop.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	d := daemon.New(deps) // NoopRecorder unless deps.Recorder is set
//
// When metrics.listen is configured, the run command swaps in a
// PrometheusRecorder and serves it with Serve.
package metrics
