package appstats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/config"
)

var (
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "in_requests",
		Help:      "Number of requests received by the recorder",
	},
		[]string{
			"method",
		})

	InvalidRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "invalid_requests",
		Help:      "Number of invalid requests",
	})

	Responses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "out_responses",
		Help:      "Number of responses from the recorder",
	},
		[]string{
			"method",
		})

	ActiveRecordings = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "recorder",
		Name:      "active_recordings",
		Help:      "Current number of active recordings",
	})

	RecordingErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "recording_errors_total",
		Help:      "Total number of recordings that ended in an error state",
	})

	RecordingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "recorder",
		Name:      "recording_duration_seconds",
		Help:      "Recording duration in seconds",
		Buckets:   []float64{5, 15, 60, 300, 900, 1800, 3600, 7200},
	})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "recorder",
		Name:      "request_duration_ms",
		Help:      "Request handling duration in milliseconds",
		Buckets:   []float64{5, 10, 50, 100, 500, 1000, 5000, 10000, 40000},
	},
		[]string{
			"method",
		})

	ComponentHealth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "recorder",
		Name:      "component_health",
		Help:      "Health of external components (1 healthy, 0 unhealthy)",
	},
		[]string{
			"component",
		})
)

func Init() {
	prometheus.MustRegister(Requests)
	prometheus.MustRegister(InvalidRequests)
	prometheus.MustRegister(Responses)
	prometheus.MustRegister(ActiveRecordings)
	prometheus.MustRegister(RecordingErrors)
	prometheus.MustRegister(RecordingDuration)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ComponentHealth)
}

func ServePromMetrics(cfg config.Prometheus) {
	if !cfg.Enable {
		return
	}

	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(cfg.ListenAddress, nil); err != nil {
			log.Errorf("failed to start metrics server: %s", err)
		}
	}()

	log.Infof("Prometheus metrics exported on %s", cfg.ListenAddress)
}

func OnServerRequest(method string, valid bool) {
	if valid {
		Requests.WithLabelValues(method).Inc()
	} else {
		InvalidRequests.Inc()
	}
}

func OnServerResponse(method string) {
	Responses.WithLabelValues(method).Inc()
}

func ObserveRequestDuration(method string, d time.Duration) {
	RequestDuration.WithLabelValues(method).
		Observe(float64(d) / float64(time.Millisecond))
}

func OnRecordingStarted() {
	ActiveRecordings.Inc()
}

func OnRecordingStopped(elapsed time.Duration) {
	ActiveRecordings.Dec()
	RecordingDuration.Observe(elapsed.Seconds())
}

func OnRecordingError() {
	RecordingErrors.Inc()
}

func SetComponentHealth(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	ComponentHealth.WithLabelValues(component).Set(v)
}
