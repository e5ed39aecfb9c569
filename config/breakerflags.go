package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/hubmirror/circuit"
)

const breakerUsage = `set global or host specific circuit breakers, e.g. -breaker host=github.com,failures=5,timeout=10s
	possible breaker properties:
	host: the backend host for which the breaker applies, when empty, the breaker is global
	failures: the number of consecutive failures that opens the breaker, 0 disables it
	timeout: duration string or milliseconds while the breaker stays open
	half-open-requests: the number of requests allowed in half-open state
	idle-ttl: duration string or milliseconds after which an idle breaker is dropped`

type breakerFlags []circuit.BreakerSettings

var errInvalidBreakerConfig = errors.New("invalid breaker config")

func (b *breakerFlags) String() string {
	s := make([]string, len(*b))
	for i, bi := range *b {
		s[i] = bi.String()
	}

	return strings.Join(s, "\n")
}

func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	return time.ParseDuration(v)
}

func (b *breakerFlags) Set(value string) error {
	var s circuit.BreakerSettings

	for vi := range strings.SplitSeq(value, ",") {
		k, v, found := strings.Cut(vi, "=")
		if !found {
			return errInvalidBreakerConfig
		}

		var err error
		switch k {
		case "host":
			s.Host = v
		case "failures":
			s.Failures, err = strconv.Atoi(v)
		case "timeout":
			s.Timeout, err = parseDuration(v)
		case "half-open-requests":
			s.HalfOpenRequests, err = strconv.Atoi(v)
		case "idle-ttl":
			s.IdleTTL, err = parseDuration(v)
		default:
			return errInvalidBreakerConfig
		}

		if err != nil {
			return err
		}
	}

	*b = append(*b, s)
	return nil
}

// UnmarshalYAML accepts a single breaker or a list of them. It replaces
// the breakers set earlier.
func (b *breakerFlags) UnmarshalYAML(unmarshal func(any) error) error {
	var list []circuit.BreakerSettings
	if err := unmarshal(&list); err == nil {
		*b = list
		return nil
	}

	var s circuit.BreakerSettings
	if err := unmarshal(&s); err != nil {
		return err
	}

	*b = breakerFlags{s}
	return nil
}
