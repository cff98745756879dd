package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	lanesActive    prometheus.Gauge
	lanePending    *prometheus.GaugeVec
	lanesSpawned   prometheus.Counter
	lanesRetired   prometheus.Counter
	itemsSubmitted prometheus.Counter
	itemsCompleted *prometheus.CounterVec
	itemDuration   prometheus.Histogram
	waitTotal      *prometheus.CounterVec
	commandsTotal  *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			lanesActive: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "bglane_lanes_active",
					Help: "Lanes currently registered (accepting work or draining).",
				},
			),
			lanePending: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "bglane_lane_pending",
					Help: "Pending work items by lane.",
				},
				[]string{"lane"},
			),
			lanesSpawned: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "bglane_lanes_spawned_total",
					Help: "Total lanes spawned.",
				},
			),
			lanesRetired: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "bglane_lanes_retired_total",
					Help: "Total lanes whose worker terminated after draining.",
				},
			),
			itemsSubmitted: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "bglane_items_submitted_total",
					Help: "Total work items accepted by a lane.",
				},
			),
			itemsCompleted: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "bglane_items_completed_total",
					Help: "Total work items finished by status.",
				},
				[]string{"status"},
			),
			itemDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "bglane_item_duration_seconds",
					Help:    "Work item execution duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			waitTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "bglane_wait_total",
					Help: "Wait-for-drain calls by result.",
				},
				[]string{"result"},
			),
			commandsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "bglane_commands_total",
					Help: "Control commands handled by the session, by command and status.",
				},
				[]string{"command", "status"},
			),
		}

		prometheus.MustRegister(
			m.lanesActive,
			m.lanePending,
			m.lanesSpawned,
			m.lanesRetired,
			m.itemsSubmitted,
			m.itemsCompleted,
			m.itemDuration,
			m.waitTotal,
			m.commandsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func laneLabel(laneID int) string {
	return strconv.Itoa(laneID)
}

func RecordLaneSpawned(laneID int, active int) {
	m := getMetrics()
	m.lanesSpawned.Inc()
	m.lanesActive.Set(float64(active))
	m.lanePending.WithLabelValues(laneLabel(laneID)).Set(0)
}

// RecordLaneRetired drops the per-lane series so retired lanes do not accumulate.
func RecordLaneRetired(laneID int, active int) {
	m := getMetrics()
	m.lanesRetired.Inc()
	m.lanesActive.Set(float64(active))
	m.lanePending.DeleteLabelValues(laneLabel(laneID))
}

func RecordSubmit(laneID int, pending int) {
	m := getMetrics()
	m.itemsSubmitted.Inc()
	m.lanePending.WithLabelValues(laneLabel(laneID)).Set(float64(pending))
}

func RecordCompletion(laneID int, duration time.Duration, success bool, pending int) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.itemsCompleted.WithLabelValues(status).Inc()
	m.itemDuration.Observe(duration.Seconds())
	m.lanePending.WithLabelValues(laneLabel(laneID)).Set(float64(pending))
}

func RecordWait(result string) {
	getMetrics().waitTotal.WithLabelValues(result).Inc()
}

func RecordCommand(command string, success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().commandsTotal.WithLabelValues(command, status).Inc()
}
