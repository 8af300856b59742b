package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the webhook,
// the conversation flows and outbound messaging.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	messagesIn      *prometheus.CounterVec
	messagesOut     prometheus.Counter
	bookings        *prometheus.CounterVec
	reminders       *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	messagesIn := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsapp_messages_received_total",
		Help: "Inbound WhatsApp messages by resolved identity kind",
	}, []string{"identity"})

	messagesOut := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whatsapp_messages_sent_total",
		Help: "Outbound WhatsApp messages queued",
	})

	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lesson_bookings_total",
		Help: "Booking attempts by outcome",
	}, []string{"outcome"})

	reminders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lesson_reminders_total",
		Help: "Reminders queued by kind",
	}, []string{"kind"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, messagesIn, messagesOut, bookings, reminders, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		messagesIn:      messagesIn,
		messagesOut:     messagesOut,
		bookings:        bookings,
		reminders:       reminders,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// CountInbound records one inbound message for the resolved identity kind.
func (m *MetricsService) CountInbound(identity string) {
	if m == nil {
		return
	}
	m.messagesIn.WithLabelValues(identity).Inc()
}

// CountOutbound records one queued outbound message.
func (m *MetricsService) CountOutbound() {
	if m == nil {
		return
	}
	m.messagesOut.Inc()
}

// CountBooking records a booking attempt outcome, such as "booked" or
// "slot_taken".
func (m *MetricsService) CountBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

// CountReminder records a queued reminder by kind.
func (m *MetricsService) CountReminder(kind string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(kind).Inc()
}
