package client

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"io"
	"time"
)

// clientStats holds the metrics of one client connection. Counters are exported
// in Prometheus format with a conn label, latency and work rate are kept as
// go-metrics timer and meter for in-process consumers like the perf command.
type clientStats struct {
	set *metrics.Set

	requestsSent      *metrics.Counter
	responsesOK       *metrics.Counter
	responsesFailed   *metrics.Counter
	requestsRejected  *metrics.Counter
	requestsCancelled *metrics.Counter
	requestsExpired   *metrics.Counter
	lateReplies       *metrics.Counter
	workReceived      *metrics.Counter
	protocolErrors    *metrics.Counter
	transportErrors   *metrics.Counter

	latency  gometrics.Timer
	workRate gometrics.Meter
}

func newClientStats(connID string, pending func() int) *clientStats {
	set := metrics.NewSet()
	name := func(metric string) string {
		return fmt.Sprintf(`taskfire_client_%s{conn=%q}`, metric, connID)
	}

	s := &clientStats{
		set:               set,
		requestsSent:      set.NewCounter(name("requests_sent_total")),
		responsesOK:       set.NewCounter(name("responses_ok_total")),
		responsesFailed:   set.NewCounter(name("responses_failed_total")),
		requestsRejected:  set.NewCounter(name("requests_rejected_total")),
		requestsCancelled: set.NewCounter(name("requests_cancelled_total")),
		requestsExpired:   set.NewCounter(name("requests_expired_total")),
		lateReplies:       set.NewCounter(name("late_replies_total")),
		workReceived:      set.NewCounter(name("work_received_total")),
		protocolErrors:    set.NewCounter(name("protocol_errors_total")),
		transportErrors:   set.NewCounter(name("transport_errors_total")),
		latency:           gometrics.NewTimer(),
		workRate:          gometrics.NewMeter(),
	}
	set.NewGauge(name("pending_requests"), func() float64 { return float64(pending()) })
	return s
}

// stop detaches the go-metrics meters from their ticker
func (s *clientStats) stop() {
	s.latency.Stop()
	s.workRate.Stop()
}

// LatencySnapshot summarizes the round trip times of settled requests and the
// rate of received work
type LatencySnapshot struct {
	Count     int64
	Min       time.Duration
	Max       time.Duration
	Mean      time.Duration
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Rate1     float64 // replies per second, one minute moving average
	WorkCount int64
	WorkRate1 float64 // work envelopes per second, one minute moving average
}

func (s *clientStats) snapshot() LatencySnapshot {
	t := s.latency.Snapshot()
	w := s.workRate.Snapshot()
	ps := t.Percentiles([]float64{0.5, 0.95, 0.99})

	return LatencySnapshot{
		Count:     t.Count(),
		Min:       time.Duration(t.Min()),
		Max:       time.Duration(t.Max()),
		Mean:      time.Duration(t.Mean()),
		P50:       time.Duration(ps[0]),
		P95:       time.Duration(ps[1]),
		P99:       time.Duration(ps[2]),
		Rate1:     t.Rate1(),
		WorkCount: w.Count(),
		WorkRate1: w.Rate1(),
	}
}

func (s *clientStats) writePrometheus(w io.Writer) {
	s.set.WritePrometheus(w)
}
