// Package metrics counts what the wiring pipeline does, for batch runs and
// long-lived hosts alike.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry so several recorders can coexist in one
// process. A nil *Recorder ignores every call.
type Recorder struct {
	registry *prometheus.Registry

	// Classifications counts classifier outcomes
	Classifications *prometheus.CounterVec
	// ChannelsWired counts channels routed into a shader
	ChannelsWired *prometheus.CounterVec
	// TexturesSkipped counts textures left out, by reason
	TexturesSkipped *prometheus.CounterVec
	// Operations counts applied plan operations by kind and result
	Operations *prometheus.CounterVec
	// Graphs counts batch documents by status
	Graphs *prometheus.CounterVec
	// GraphSeconds tracks per-document processing time
	GraphSeconds prometheus.Histogram
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pbrwire_classifications_total",
				Help: "Texture names classified, by outcome",
			},
			[]string{"outcome"},
		),
		ChannelsWired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pbrwire_channels_wired_total",
				Help: "Channels routed into a target shader",
			},
			[]string{"channel"},
		),
		TexturesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pbrwire_textures_skipped_total",
				Help: "Textures left unwired, by reason",
			},
			[]string{"reason"},
		),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pbrwire_operations_total",
				Help: "Graph operations applied, by kind and result",
			},
			[]string{"kind", "result"},
		),
		Graphs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pbrwire_graphs_total",
				Help: "Graph documents processed by batch runs, by status",
			},
			[]string{"status"},
		),
		GraphSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pbrwire_graph_seconds",
			Help:    "Time spent wiring one graph document",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	r.registry.MustRegister(
		r.Classifications,
		r.ChannelsWired,
		r.TexturesSkipped,
		r.Operations,
		r.Graphs,
		r.GraphSeconds,
	)
	return r
}

// Registry exposes the private registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveClassification(outcome string) {
	if r == nil {
		return
	}
	r.Classifications.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveWired(channel string) {
	if r == nil {
		return
	}
	r.ChannelsWired.WithLabelValues(channel).Inc()
}

func (r *Recorder) ObserveSkip(reason string) {
	if r == nil {
		return
	}
	r.TexturesSkipped.WithLabelValues(reason).Inc()
}

// ObserveOp satisfies mutate.Observer.
func (r *Recorder) ObserveOp(kind string, ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.Operations.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) ObserveGraph(status string, seconds float64) {
	if r == nil {
		return
	}
	r.Graphs.WithLabelValues(status).Inc()
	r.GraphSeconds.Observe(seconds)
}

// WriteTextfile writes all metrics in the text exposition format, the way
// node_exporter's textfile collector expects them.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
