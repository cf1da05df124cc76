/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-usagekit/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfgData string
		wantCfg *Config
		wantErr string
	}{
		{
			name: "default values",
			wantCfg: &Config{
				Alg:     AlgQuota,
				Rate:    Rate{100, time.Minute},
				MaxKeys: DefaultMaxKeys,
				Backlog: BacklogConfig{Timeout: config.TimeDuration(DefaultBacklogTimeout)},
			},
		},
		{
			name: "custom values",
			cfgData: `
admission:
  alg: TOKEN_BUCKET
  rate: 10/s
  burst: 20
  maxKeys: 5
  backlog:
    limit: 3
    timeout: 1s
`,
			wantCfg: &Config{
				Alg:     AlgTokenBucket,
				Rate:    Rate{10, time.Second},
				Burst:   20,
				MaxKeys: 5,
				Backlog: BacklogConfig{Limit: 3, Timeout: config.TimeDuration(time.Second)},
			},
		},
		{
			name:    "unknown algorithm",
			cfgData: "admission:\n  alg: fixed_window\n",
			wantErr: `admission.alg: unknown value "fixed_window", should be one of [quota sliding_window leaky_bucket token_bucket]`,
		},
		{
			name:    "invalid rate",
			cfgData: "admission:\n  rate: 10/day\n",
			wantErr: `admission.rate: incorrect format for rate "10/day", should be N/(s|m|h|<duration>), for example 10/s, 100/m, 50/5s`,
		},
		{
			name:    "zero count is not allowed for leaky bucket",
			cfgData: "admission:\n  alg: leaky_bucket\n  rate: 0/s\n",
			wantErr: "admission.rate: count must be positive for leaky_bucket algorithm",
		},
		{
			name:    "negative max keys",
			cfgData: "admission:\n  maxKeys: -1\n",
			wantErr: "admission.maxKeys: must not be negative",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("")
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.wantCfg.keyPrefix = cfg.keyPrefix
			require.Equal(t, tt.wantCfg, cfg)
		})
	}
}

func TestNew(t *testing.T) {
	for _, alg := range []string{AlgQuota, AlgSlidingWindow, AlgLeakyBucket, AlgTokenBucket} {
		alg := alg
		t.Run(alg, func(t *testing.T) {
			cfg := NewConfig("")
			cfg.Alg = alg
			cfg.Rate = Rate{Count: 1, Duration: time.Minute}
			cfg.MaxKeys = 10
			limiter, err := New(cfg, Opts{})
			require.NoError(t, err)

			allow, _, err := limiter.Allow(context.Background(), "key")
			require.NoError(t, err)
			require.True(t, allow)

			allow, retryAfter, err := limiter.Allow(context.Background(), "key")
			require.NoError(t, err)
			require.False(t, allow)
			require.Greater(t, retryAfter, time.Duration(0))
		})
	}

	_, err := New(&Config{Alg: "unknown"}, Opts{})
	require.EqualError(t, err, `unknown admission algorithm "unknown"`)

	_, err = New(&Config{Alg: AlgQuota, Rate: Rate{1, time.Second}, MaxKeys: -1}, Opts{})
	require.EqualError(t, err, "new quota limiter: max keys should not be negative, got -1")
}
