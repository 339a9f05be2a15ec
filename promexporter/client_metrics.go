package promexporter

import (
	"sync"

	"github.com/pior/respkv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// StatsSource is implemented by *respkv.Client.
type StatsSource interface {
	Stats() respkv.Stats
	CircuitBreakerStates() map[string]gobreaker.State
}

// ClientMetrics holds all client-related Prometheus metrics
type ClientMetrics struct {
	// Operations, as seen by the caller
	opsTotal *prometheus.CounterVec

	// Client stats
	sessions            prometheus.Gauge
	connections         prometheus.Gauge
	connects            prometheus.Counter
	connectErrors       prometheus.Counter
	commands            prometheus.Counter
	sendErrors          prometheus.Counter
	receiveErrors       prometheus.Counter
	healthChecks        prometheus.Counter
	healthCheckFailures prometheus.Counter
	replacements        prometheus.Counter

	// Circuit Breaker
	circuitState       *prometheus.GaugeVec
	circuitTransitions *prometheus.CounterVec

	mu   sync.Mutex
	last respkv.Stats
}

// NewClientMetrics creates and registers all client metrics
func NewClientMetrics(registerer prometheus.Registerer) *ClientMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}

	m := &ClientMetrics{
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "respkv_operations_total",
				Help: "Total number of operations run by the caller",
			},
			[]string{"status"}, // success, failed
		),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "respkv_sessions",
			Help: "Sessions currently open",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "respkv_connections",
			Help: "Connections currently open",
		}),
		connects:            counter("respkv_connects_total", "Successful connects and reconnects"),
		connectErrors:       counter("respkv_connect_errors_total", "Failed resolves, connects and reconnects"),
		commands:            counter("respkv_commands_total", "Commands sent"),
		sendErrors:          counter("respkv_send_errors_total", "Failed sends"),
		receiveErrors:       counter("respkv_receive_errors_total", "Failed receives"),
		healthChecks:        counter("respkv_health_checks_total", "ECHO health checks run"),
		healthCheckFailures: counter("respkv_health_check_failures_total", "Health checks that did not round trip"),
		replacements:        counter("respkv_replacements_total", "Connections replaced after a failed health check"),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "respkv_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"server"},
		),
		circuitTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "respkv_circuit_breaker_transitions_total",
				Help: "Total circuit breaker state transitions",
			},
			[]string{"server", "from", "to"},
		),
	}

	registerer.MustRegister(
		m.opsTotal,
		m.sessions,
		m.connections,
		m.connects,
		m.connectErrors,
		m.commands,
		m.sendErrors,
		m.receiveErrors,
		m.healthChecks,
		m.healthCheckFailures,
		m.replacements,
		m.circuitState,
		m.circuitTransitions,
	)

	return m
}

// RecordOperation records an operation result
func (m *ClientMetrics) RecordOperation(success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.opsTotal.WithLabelValues(status).Inc()
}

// RecordCircuitBreakerTransition records a state change. It fits
// gobreaker.Settings.OnStateChange.
func (m *ClientMetrics) RecordCircuitBreakerTransition(server string, from, to gobreaker.State) {
	m.circuitTransitions.WithLabelValues(server, from.String(), to.String()).Inc()
	m.circuitState.WithLabelValues(server).Set(CircuitStateValue(to))
}

// Observe copies the current client stats into the metrics. Lifetime counters
// advance by the difference with the previous observation.
func (m *ClientMetrics) Observe(src StatsSource) {
	stats := src.Stats()

	m.mu.Lock()
	last := m.last
	m.last = stats
	m.mu.Unlock()

	m.sessions.Set(float64(stats.Sessions))
	m.connections.Set(float64(stats.Connections))

	addDelta(m.connects, stats.Connects, last.Connects)
	addDelta(m.connectErrors, stats.ConnectErrors, last.ConnectErrors)
	addDelta(m.commands, stats.Commands, last.Commands)
	addDelta(m.sendErrors, stats.SendErrors, last.SendErrors)
	addDelta(m.receiveErrors, stats.ReceiveErrors, last.ReceiveErrors)
	addDelta(m.healthChecks, stats.HealthChecks, last.HealthChecks)
	addDelta(m.healthCheckFailures, stats.HealthCheckFailures, last.HealthCheckFailures)
	addDelta(m.replacements, stats.Replacements, last.Replacements)

	for server, state := range src.CircuitBreakerStates() {
		m.circuitState.WithLabelValues(server).Set(CircuitStateValue(state))
	}
}

func addDelta(c prometheus.Counter, current, previous uint64) {
	if current > previous {
		c.Add(float64(current - previous))
	}
}

// CircuitStateValue maps a breaker state to the value of the state gauge.
func CircuitStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
