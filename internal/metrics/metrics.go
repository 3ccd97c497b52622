// Package metrics exposes prometheus.Collector wrappers around the
// reactor's Stats counters and per-worker session-table gauges (spec
// §4.L). Registration is optional; when enabled, the encoded output is
// served by a handler registered through the ordinary EndpointRegistry
// rather than a second net/http mux, per SPEC_FULL.md §4.L.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourusername/reactord/internal/reactor"
)

// Collector adapts a *reactor.Server's Stats and per-worker session
// counts to prometheus.Collector, the way the ecosystem's client_golang
// collectors wrap an arbitrary counter source.
type Collector struct {
	server *reactor.Server

	totalConnections  *prometheus.Desc
	activeConnections *prometheus.Desc
	totalRequests     *prometheus.Desc
	bytesRead         *prometheus.Desc
	bytesWritten      *prometheus.Desc
	connectionErrors  *prometheus.Desc
	requestErrors     *prometheus.Desc
	sessionTableSize  *prometheus.Desc
	reaperEvictions   *prometheus.Desc
}

// NewCollector wraps server's stats for prometheus registration.
func NewCollector(server *reactor.Server) *Collector {
	return &Collector{
		server:            server,
		totalConnections:  prometheus.NewDesc("reactord_connections_total", "Total accepted connections.", nil, nil),
		activeConnections: prometheus.NewDesc("reactord_connections_active", "Currently open connections.", nil, nil),
		totalRequests:     prometheus.NewDesc("reactord_requests_total", "Total requests dispatched.", nil, nil),
		bytesRead:         prometheus.NewDesc("reactord_bytes_read_total", "Total bytes read from sockets.", nil, nil),
		bytesWritten:      prometheus.NewDesc("reactord_bytes_written_total", "Total bytes written to sockets.", nil, nil),
		connectionErrors:  prometheus.NewDesc("reactord_connection_errors_total", "Total connection-level errors.", nil, nil),
		requestErrors:     prometheus.NewDesc("reactord_request_errors_total", "Total request-level errors.", nil, nil),
		sessionTableSize:  prometheus.NewDesc("reactord_worker_session_table_size", "Live sessions per worker.", []string{"worker_id"}, nil),
		reaperEvictions:   prometheus.NewDesc("reactord_reaper_evictions_total", "Total connections closed by the idle reaper.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConnections
	ch <- c.activeConnections
	ch <- c.totalRequests
	ch <- c.bytesRead
	ch <- c.bytesWritten
	ch <- c.connectionErrors
	ch <- c.requestErrors
	ch <- c.sessionTableSize
	ch <- c.reaperEvictions
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.server.Stats()

	ch <- prometheus.MustNewConstMetric(c.totalConnections, prometheus.CounterValue, float64(s.TotalConnections.Load()))
	ch <- prometheus.MustNewConstMetric(c.activeConnections, prometheus.GaugeValue, float64(s.ActiveConnections.Load()))
	ch <- prometheus.MustNewConstMetric(c.totalRequests, prometheus.CounterValue, float64(s.TotalRequests.Load()))
	ch <- prometheus.MustNewConstMetric(c.bytesRead, prometheus.CounterValue, float64(s.BytesRead.Load()))
	ch <- prometheus.MustNewConstMetric(c.bytesWritten, prometheus.CounterValue, float64(s.BytesWritten.Load()))
	ch <- prometheus.MustNewConstMetric(c.connectionErrors, prometheus.CounterValue, float64(s.ConnectionErrors.Load()))
	ch <- prometheus.MustNewConstMetric(c.requestErrors, prometheus.CounterValue, float64(s.RequestErrors.Load()))
	ch <- prometheus.MustNewConstMetric(c.reaperEvictions, prometheus.CounterValue, float64(s.ReaperEvictions.Load()))

	for id, n := range c.server.SessionCounts() {
		ch <- prometheus.MustNewConstMetric(c.sessionTableSize, prometheus.GaugeValue, float64(n), fmt.Sprintf("%d", id))
	}
}

// Registry bundles a prometheus.Registry with this collector registered,
// and knows how to render itself as the plain Prometheus text exposition
// format by hand, since pulling in promhttp would mean importing
// net/http — the very package this server exists to replace.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates a Registry with c already registered.
func NewRegistry(c *Collector) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return &Registry{reg: reg}
}

// Encode gathers every registered metric family and renders it in the
// text exposition format (the "# HELP" / "# TYPE" / sample-line shape
// promhttp would otherwise produce).
func (r *Registry) Encode() ([]byte, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return nil, err
	}

	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})

	var b strings.Builder
	for _, mf := range families {
		fmt.Fprintf(&b, "# HELP %s %s\n", mf.GetName(), mf.GetHelp())
		fmt.Fprintf(&b, "# TYPE %s %s\n", mf.GetName(), strings.ToLower(mf.GetType().String()))
		for _, m := range mf.GetMetric() {
			writeSample(&b, mf.GetName(), m)
		}
	}
	return []byte(b.String()), nil
}

func writeSample(b *strings.Builder, name string, m *dto.Metric) {
	labels := ""
	if len(m.GetLabel()) > 0 {
		parts := make([]string, 0, len(m.GetLabel()))
		for _, lp := range m.GetLabel() {
			parts = append(parts, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
		}
		labels = "{" + strings.Join(parts, ",") + "}"
	}

	var value float64
	switch {
	case m.Counter != nil:
		value = m.GetCounter().GetValue()
	case m.Gauge != nil:
		value = m.GetGauge().GetValue()
	}
	fmt.Fprintf(b, "%s%s %g\n", name, labels, value)
}
