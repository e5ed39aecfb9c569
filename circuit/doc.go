/*
Package circuit implements circuit breaker functionality for the proxy.

The circuit breakers are always assigned to backend hosts, so that the
outcome of requests to one host never affects the circuit breaker
behavior of another host. The registry object ensures synchronized access
to the active breakers and releases the idle ones.

A breaker opens when the proxy couldn't connect to a backend or received
a >=500 status code at least N times in a row, where N is the Failures
setting of the breaker. When open, the proxy returns 503 - Service
Unavailable response during the configured timeout. After this timeout,
the breaker goes into half-open state, where it expects that M number of
requests succeed. If any of the requests during the half-open state
fails, the breaker goes back to open state. If all succeed, it goes to
closed state again.

Settings with an empty host are the defaults, settings with a host
override the defaults for that host. A breaker with Failures <= 0 is
disabled, and the registry returns nil for it.

The breakers are implemented with github.com/sony/gobreaker.
*/
package circuit
