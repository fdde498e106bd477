// Package metrics provides build metrics for assetbuilder.
//
// Components receive a Recorder through their options. NoopRecorder is the
// default and does nothing, so metrics never need nil checks at call sites.
// The serve command injects a PrometheusRecorder backed by its own registry
// and exposes it on /metrics through HTTPHandler:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	opts := build.Options{Recorder: rec}
//	mux.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
