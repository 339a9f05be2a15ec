package respkv

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards connection attempts to one server.
// *gobreaker.CircuitBreaker[TransportConn] implements it.
//
// While the breaker is open, connecting fails fast with a *ConnectionError
// wrapping gobreaker.ErrOpenState, including the reconnect attempted by a
// failed health check.
type CircuitBreaker interface {
	Execute(req func() (TransportConn, error)) (TransportConn, error)
	State() gobreaker.State
	Counts() gobreaker.Counts
}

var _ CircuitBreaker = (*gobreaker.CircuitBreaker[TransportConn])(nil)

// NewGoBreaker creates a circuit breaker from gobreaker settings, for use in
// Config.NewCircuitBreaker.
func NewGoBreaker(settings gobreaker.Settings) CircuitBreaker {
	return gobreaker.NewCircuitBreaker[TransportConn](settings)
}

// NewGobreakerConfig returns a function that creates circuit breakers for servers.
// The breaker opens when at least 3 connection attempts were made in the
// interval and 60% of them failed.
func NewGobreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return NewGoBreaker(settings)
	}
}
