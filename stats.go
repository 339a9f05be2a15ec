package respkv

import "sync/atomic"

// Stats contains statistics about a Client.
// All counters are lifetime totals except Sessions and Connections.
type Stats struct {
	Sessions    int64 // Sessions currently open
	Connections int64 // Connections currently open

	Connects            uint64 // Successful connects and reconnects
	ConnectErrors       uint64 // Failed resolves, connects and reconnects
	Commands            uint64 // Commands sent
	SendErrors          uint64 // Failed sends
	ReceiveErrors       uint64 // Failed receives
	HealthChecks        uint64 // ECHO health checks run
	HealthCheckFailures uint64 // Health checks that did not round trip
	Replacements        uint64 // Connections replaced after a failed health check
}

// statsCollector provides internal methods for updating client stats.
type statsCollector struct {
	sessions    atomic.Int64
	connections atomic.Int64

	connects            atomic.Uint64
	connectErrors       atomic.Uint64
	commands            atomic.Uint64
	sendErrors          atomic.Uint64
	receiveErrors       atomic.Uint64
	healthChecks        atomic.Uint64
	healthCheckFailures atomic.Uint64
	replacements        atomic.Uint64
}

func (c *statsCollector) recordSessionOpen() { c.sessions.Add(1) }
func (c *statsCollector) recordSessionClose() { c.sessions.Add(-1) }

func (c *statsCollector) recordConnect() {
	c.connects.Add(1)
	c.connections.Add(1)
}

func (c *statsCollector) recordReconnect() { c.connects.Add(1) }
func (c *statsCollector) recordConnectError() { c.connectErrors.Add(1) }
func (c *statsCollector) recordDisconnect() { c.connections.Add(-1) }
func (c *statsCollector) recordCommand() { c.commands.Add(1) }
func (c *statsCollector) recordSendError() { c.sendErrors.Add(1) }
func (c *statsCollector) recordReceiveError() { c.receiveErrors.Add(1) }
func (c *statsCollector) recordHealthCheck() { c.healthChecks.Add(1) }
func (c *statsCollector) recordCheckFailure() { c.healthCheckFailures.Add(1) }
func (c *statsCollector) recordReplacement() { c.replacements.Add(1) }

func (c *statsCollector) snapshot() Stats {
	return Stats{
		Sessions:            c.sessions.Load(),
		Connections:         c.connections.Load(),
		Connects:            c.connects.Load(),
		ConnectErrors:       c.connectErrors.Load(),
		Commands:            c.commands.Load(),
		SendErrors:          c.sendErrors.Load(),
		ReceiveErrors:       c.receiveErrors.Load(),
		HealthChecks:        c.healthChecks.Load(),
		HealthCheckFailures: c.healthCheckFailures.Load(),
		Replacements:        c.replacements.Load(),
	}
}
