package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "capconv"

// exporter exposes a Collector to a Prometheus registry.  Values are read
// at gather time, so one registry can be written repeatedly during a
// long watch run.
type exporter struct {
	c *Collector

	files     *prometheus.Desc
	started   *prometheus.Desc
	active    *prometheus.Desc
	peak      *prometheus.Desc
	rows      *prometheus.Desc
	dropped   *prometheus.Desc
	nulled    *prometheus.Desc
	bytesRead *prometheus.Desc
	duration  *prometheus.Desc
	lastRun   *prometheus.Desc
}

func newExporter(c *Collector, runID string) *exporter {
	labels := prometheus.Labels{"run_id": runID}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, labels)
	}
	return &exporter{
		c:         c,
		files:     desc("files_total", "Capture files by outcome.", "status"),
		started:   desc("files_started_total", "Conversion tasks started."),
		active:    desc("dissectors_active", "Dissector processes currently running."),
		peak:      desc("dissectors_peak", "Highest number of concurrent dissector processes."),
		rows:      desc("rows_written_total", "Rows written to artifacts."),
		dropped:   desc("lines_dropped_total", "Malformed dissector lines dropped."),
		nulled:    desc("fields_nulled_total", "Field values nulled by failed coercion."),
		bytesRead: desc("dissector_bytes_read_total", "Bytes read from dissector output."),
		duration:  desc("run_duration_seconds", "Wall time since the run started."),
		lastRun:   desc("last_run_timestamp_seconds", "Unix time the metrics were written."),
	}
}

func (e *exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		e.files, e.started, e.active, e.peak, e.rows,
		e.dropped, e.nulled, e.bytesRead, e.duration, e.lastRun,
	} {
		ch <- d
	}
}

func (e *exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.c.Snapshot()
	counter := func(d *prometheus.Desc, v int64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), lv...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter(e.files, s.FilesSucceeded, "succeeded")
	counter(e.files, s.FilesFailed, "failed")
	counter(e.files, s.FilesSkipped, "skipped")
	counter(e.started, s.FilesStarted)
	gauge(e.active, float64(s.ActiveDissectors))
	gauge(e.peak, float64(s.PeakDissectors))
	counter(e.rows, s.RowsWritten)
	counter(e.dropped, s.LinesDropped)
	counter(e.nulled, s.FieldsNulled)
	counter(e.bytesRead, s.BytesRead)
	gauge(e.duration, e.c.Elapsed().Seconds())
	gauge(e.lastRun, float64(time.Now().Unix()))
}

// Registry returns a Prometheus registry exposing c, labelled with runID.
func (c *Collector) Registry(runID string) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newExporter(c, runID))
	return reg
}

// WriteTextfile writes c in the Prometheus text format to path for the
// node_exporter textfile collector.  The file is replaced atomically.
func (c *Collector) WriteTextfile(path, runID string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.Registry(runID))
}
