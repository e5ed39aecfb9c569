package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/google/go-cmp/cmp"
	"github.com/zalando/hubmirror/circuit"
)

func Test_breakerFlags_String(t *testing.T) {
	tests := []struct {
		name string
		b    *breakerFlags
		want string
	}{
		{
			name: "host breaker",
			b: &breakerFlags{
				circuit.BreakerSettings{
					Host:             "github.com",
					Failures:         5,
					Timeout:          3 * time.Second,
					HalfOpenRequests: 3,
					IdleTTL:          5 * time.Second,
				},
			},
			want: "host=github.com,failures=5,timeout=3s,half-open-requests=3,idle-ttl=5s",
		},
		{
			name: "global and disabled",
			b: &breakerFlags{
				{Failures: 10},
				{Host: "raw.githubusercontent.com"},
			},
			want: "failures=10\ndisabled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.String(); got != tt.want {
				t.Errorf("breakerFlags.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_breakerFlags_Set(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		wantErr   bool
		errString string
		want      circuit.BreakerSettings
	}{
		{
			name:    "breaker settings",
			args:    "host=github.com,failures=5,timeout=3s,half-open-requests=3,idle-ttl=5s",
			wantErr: false,
			want: circuit.BreakerSettings{
				Host:             "github.com",
				Failures:         5,
				Timeout:          3 * time.Second,
				HalfOpenRequests: 3,
				IdleTTL:          5 * time.Second,
			},
		},
		{
			name:    "global breaker",
			args:    "failures=2",
			wantErr: false,
			want:    circuit.BreakerSettings{Failures: 2},
		},
		{
			name:    "durations in milliseconds",
			args:    "failures=2,timeout=1500,idle-ttl=60000",
			wantErr: false,
			want: circuit.BreakerSettings{
				Failures: 2,
				Timeout:  1500 * time.Millisecond,
				IdleTTL:  time.Minute,
			},
		},
		{
			name:      "invalid idle-ttl",
			args:      "host=github.com,timeout=3s,half-open-requests=3,idle-ttl=5as",
			wantErr:   true,
			errString: `time: unknown unit "as" in duration "5as"`,
		},
		{
			name:      "invalid half-open",
			args:      "host=github.com,timeout=3s,half-open-requests=a,idle-ttl=5s",
			wantErr:   true,
			errString: `strconv.Atoi: parsing "a": invalid syntax`,
		},
		{
			name:      "invalid timeout",
			args:      "host=github.com,timeout=3n,half-open-requests=3,idle-ttl=5s",
			wantErr:   true,
			errString: `time: unknown unit "n" in duration "3n"`,
		},
		{
			name:      "invalid failures",
			args:      "host=github.com,failures=n",
			wantErr:   true,
			errString: `strconv.Atoi: parsing "n": invalid syntax`,
		},
		{
			name:      "unknown key",
			args:      "failures=1,foo=bar",
			wantErr:   true,
			errString: errInvalidBreakerConfig.Error(),
		},
		{
			name:      "missing value",
			args:      "failures",
			wantErr:   true,
			errString: errInvalidBreakerConfig.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp := &breakerFlags{}

			err := bp.Set(tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("breakerFlags.Set() error = %v, wantErr %v", err, tt.wantErr)
			}

			if !tt.wantErr {
				b := *bp
				if len(b) != 1 {
					t.Errorf("Failed to have breaker created: %d != 1", len(b))
				}

				if cmp.Equal(b[0], tt.want) == false {
					t.Errorf("breakerFlags.Set() got v, want v, %v", cmp.Diff(b[0], tt.want))
				}
			} else if tt.errString != err.Error() {
				t.Errorf("Failed to get error string want: %v, got: %v", tt.errString, err)
			}
		})
	}
}

func Test_breakerFlags_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		yml     string
		wantErr bool
		want    circuit.BreakerSettings
	}{
		{
			name: "breaker settings",
			yml: `host: github.com
failures: 5
timeout: 3s
half-open-requests: 3
idle-ttl: 5s`,
			wantErr: false,
			want: circuit.BreakerSettings{
				Host:             "github.com",
				Failures:         5,
				Timeout:          3 * time.Second,
				HalfOpenRequests: 3,
				IdleTTL:          5 * time.Second,
			},
		},
		{
			name: "wrong failures",
			yml: `host: github.com
failures: many`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp := &breakerFlags{}

			if err := yaml.Unmarshal([]byte(tt.yml), bp); (err != nil) != tt.wantErr {
				t.Errorf("breakerFlags.UnmarshalYAML() error = %v, wantErr %v", err, tt.wantErr)
			}

			if !tt.wantErr {
				b := *bp
				if len(b) != 1 {
					t.Errorf("Failed to have breaker created: %d != 1", len(b))
				}

				if cmp.Equal(b[0], tt.want) == false {
					t.Errorf("breakerFlags.UnmarshalYAML() got v, want v, %v", cmp.Diff(b[0], tt.want))
				}
			}
		})
	}
}
