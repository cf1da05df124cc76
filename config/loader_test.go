/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testWindowConfig struct {
	Budget   uint64
	Duration time.Duration
	Mode     string
}

func (c *testWindowConfig) KeyPrefix() string {
	return "window"
}

func (c *testWindowConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("budget", 10)
	dp.SetDefault("duration", "5s")
	dp.SetDefault("mode", "strict")
}

func (c *testWindowConfig) Set(dp DataProvider) (err error) {
	if c.Budget, err = dp.GetUint64("budget"); err != nil {
		return err
	}
	if c.Duration, err = dp.GetDuration("duration"); err != nil {
		return err
	}
	if c.Mode, err = dp.GetStringFromSet("mode", []string{"strict", "lenient"}, true); err != nil {
		return err
	}
	return nil
}

type testServerConfig struct {
	Address string
}

func (c *testServerConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("server.address", ":8080")
}

func (c *testServerConfig) Set(dp DataProvider) (err error) {
	c.Address, err = dp.GetString("server.address")
	return err
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		windowCfg, serverCfg := &testWindowConfig{}, &testServerConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, windowCfg, serverCfg)
		require.NoError(t, err)
		require.Equal(t, uint64(10), windowCfg.Budget)
		require.Equal(t, 5*time.Second, windowCfg.Duration)
		require.Equal(t, "strict", windowCfg.Mode)
		require.Equal(t, ":8080", serverCfg.Address)
	})

	t.Run("yaml with key prefix", func(t *testing.T) {
		const cfgData = `
window:
  budget: 100
  duration: 1m
  mode: LENIENT
server:
  address: ":9090"
`
		windowCfg, serverCfg := &testWindowConfig{}, &testServerConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(cfgData), DataTypeYAML, windowCfg, serverCfg)
		require.NoError(t, err)
		require.Equal(t, uint64(100), windowCfg.Budget)
		require.Equal(t, time.Minute, windowCfg.Duration)
		require.Equal(t, "lenient", windowCfg.Mode)
		require.Equal(t, ":9090", serverCfg.Address)
	})

	t.Run("negative budget", func(t *testing.T) {
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"window":{"budget":-1}}`), DataTypeJSON, &testWindowConfig{})
		require.EqualError(t, err, "window.budget: negative value is not allowed: -1")
	})

	t.Run("unknown value from set", func(t *testing.T) {
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"window":{"mode":"fuzzy"}}`), DataTypeJSON, &testWindowConfig{})
		require.EqualError(t, err, `window.mode: unknown value "fuzzy", should be one of [strict lenient]`)
	})
}

func TestLoader_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"window":{"budget":7}}`), 0o600))

	windowCfg := &testWindowConfig{}
	require.NoError(t, NewLoader(NewViperAdapter()).LoadFromFile(path, DataTypeJSON, windowCfg))
	require.Equal(t, uint64(7), windowCfg.Budget)

	err := NewLoader(NewViperAdapter()).LoadFromFile(filepath.Join(t.TempDir(), "missing.json"), DataTypeJSON, windowCfg)
	require.Error(t, err)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("USAGEKIT_WINDOW_BUDGET", "42")
	t.Setenv("USAGEKIT_WINDOW_DURATION", "2s")

	windowCfg := &testWindowConfig{}
	require.NoError(t, NewDefaultLoader("usagekit").Load(windowCfg))
	require.Equal(t, uint64(42), windowCfg.Budget)
	require.Equal(t, 2*time.Second, windowCfg.Duration)
}
