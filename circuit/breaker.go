package circuit

import (
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings contains the settings for individual circuit breakers.
type BreakerSettings struct {
	Host             string        `yaml:"host"`
	Failures         int           `yaml:"failures"`
	Timeout          time.Duration `yaml:"timeout"`
	HalfOpenRequests int           `yaml:"half-open-requests"`
	IdleTTL          time.Duration `yaml:"idle-ttl"`
}

// Breaker represents a single circuit breaker for a particular set of settings.
//
// Use the Get() method of the Registry to request fully initialized breakers.
type Breaker struct {
	settings BreakerSettings
	ts       time.Time
	gb       *gobreaker.TwoStepCircuitBreaker
}

func (to BreakerSettings) mergeSettings(from BreakerSettings) BreakerSettings {
	if to.Failures == 0 {
		to.Failures = from.Failures
	}

	if to.Timeout == 0 {
		to.Timeout = from.Timeout
	}

	if to.HalfOpenRequests == 0 {
		to.HalfOpenRequests = from.HalfOpenRequests
	}

	if to.IdleTTL == 0 {
		to.IdleTTL = from.IdleTTL
	}

	return to
}

// String returns the string representation of a particular set of settings.
//
//lint:ignore ST1016 "s" makes sense here and mergeSettings has "to"
func (s BreakerSettings) String() string {
	if s.Failures <= 0 {
		return "disabled"
	}

	var ss []string
	if s.Host != "" {
		ss = append(ss, "host="+s.Host)
	}

	ss = append(ss, "failures="+strconv.Itoa(s.Failures))

	if s.Timeout > 0 {
		ss = append(ss, "timeout="+s.Timeout.String())
	}

	if s.HalfOpenRequests > 0 {
		ss = append(ss, "half-open-requests="+strconv.Itoa(s.HalfOpenRequests))
	}

	if s.IdleTTL > 0 {
		ss = append(ss, "idle-ttl="+s.IdleTTL.String())
	}

	return strings.Join(ss, ",")
}

func newBreaker(s BreakerSettings) *Breaker {
	failures := uint32(s.Failures)
	return &Breaker{
		settings: s,
		gb: gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
			Name:        s.Host,
			MaxRequests: uint32(s.HalfOpenRequests),
			Timeout:     s.Timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
		}),
	}
}

// Allow returns true if the breaker is in the closed state and a callback function for reporting the outcome of
// the operation. The callback expects true values if the outcome of the request was successful. Allow doesn't
// return a callback function when the state is open.
func (b *Breaker) Allow() (func(bool), bool) {
	done, err := b.gb.Allow()

	// this error can only indicate that the breaker is not closed
	if err != nil {
		return nil, false
	}

	return done, true
}

// Closed tells whether the breaker lets the requests through.
func (b *Breaker) Closed() bool {
	return b.gb.State() == gobreaker.StateClosed
}

func (b *Breaker) idle(now time.Time) bool {
	return now.Sub(b.ts) > b.settings.IdleTTL
}
