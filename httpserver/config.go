/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"fmt"
	"time"

	"github.com/acronis/go-usagekit/config"
)

const cfgDefaultKeyPrefix = "server"

const (
	cfgKeyServerAddress              = "address"
	cfgKeyServerTimeoutsWrite        = "timeouts.write"
	cfgKeyServerTimeoutsRead         = "timeouts.read"
	cfgKeyServerTimeoutsReadHeader   = "timeouts.readHeader"
	cfgKeyServerTimeoutsIdle         = "timeouts.idle"
	cfgKeyServerTimeoutsShutdown     = "timeouts.shutdown"
	cfgKeyServerLogExcludedEndpoints = "log.excludedEndpoints"
)

const (
	defaultServerAddress            = ":8080"
	defaultServerTimeoutsWrite      = time.Minute
	defaultServerTimeoutsRead       = time.Second * 15
	defaultServerTimeoutsReadHeader = time.Second * 10
	defaultServerTimeoutsIdle       = time.Minute
	defaultServerTimeoutsShutdown   = time.Second * 5
)

// Config represents a set of configuration parameters for Server.
type Config struct {
	Address  string         `mapstructure:"address" yaml:"address" json:"address"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// TimeoutsConfig represents a set of configuration parameters for Server relating to timeouts.
type TimeoutsConfig struct {
	Write      config.TimeDuration `mapstructure:"write" yaml:"write" json:"write"`
	Read       config.TimeDuration `mapstructure:"read" yaml:"read" json:"read"`
	ReadHeader config.TimeDuration `mapstructure:"readHeader" yaml:"readHeader" json:"readHeader"`
	Idle       config.TimeDuration `mapstructure:"idle" yaml:"idle" json:"idle"`
	Shutdown   config.TimeDuration `mapstructure:"shutdown" yaml:"shutdown" json:"shutdown"`
}

// LogConfig represents a set of configuration parameters for Server relating to logging.
type LogConfig struct {
	// ExcludedEndpoints are URL paths for which successfully completed requests are not logged.
	ExcludedEndpoints []string `mapstructure:"excludedEndpoints" yaml:"excludedEndpoints" json:"excludedEndpoints"`
}

// NewConfig creates a new instance of the Config.
// If keyPrefix is empty, "server" is used.
func NewConfig(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Address: defaultServerAddress,
		Timeouts: TimeoutsConfig{
			Write:      config.TimeDuration(defaultServerTimeoutsWrite),
			Read:       config.TimeDuration(defaultServerTimeoutsRead),
			ReadHeader: config.TimeDuration(defaultServerTimeoutsReadHeader),
			Idle:       config.TimeDuration(defaultServerTimeoutsIdle),
			Shutdown:   config.TimeDuration(defaultServerTimeoutsShutdown),
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for Server in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyServerAddress, defaultServerAddress)
	dp.SetDefault(cfgKeyServerTimeoutsWrite, defaultServerTimeoutsWrite.String())
	dp.SetDefault(cfgKeyServerTimeoutsRead, defaultServerTimeoutsRead.String())
	dp.SetDefault(cfgKeyServerTimeoutsReadHeader, defaultServerTimeoutsReadHeader.String())
	dp.SetDefault(cfgKeyServerTimeoutsIdle, defaultServerTimeoutsIdle.String())
	dp.SetDefault(cfgKeyServerTimeoutsShutdown, defaultServerTimeoutsShutdown.String())
}

// Set sets Server configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Address, err = dp.GetString(cfgKeyServerAddress); err != nil {
		return err
	}
	if err = c.Timeouts.set(dp); err != nil {
		return err
	}
	if c.Log.ExcludedEndpoints, err = dp.GetStringSlice(cfgKeyServerLogExcludedEndpoints); err != nil {
		return err
	}
	return nil
}

func (t *TimeoutsConfig) set(dp config.DataProvider) error {
	for _, item := range []struct {
		key string
		dst *config.TimeDuration
	}{
		{cfgKeyServerTimeoutsWrite, &t.Write},
		{cfgKeyServerTimeoutsRead, &t.Read},
		{cfgKeyServerTimeoutsReadHeader, &t.ReadHeader},
		{cfgKeyServerTimeoutsIdle, &t.Idle},
		{cfgKeyServerTimeoutsShutdown, &t.Shutdown},
	} {
		dur, err := dp.GetDuration(item.key)
		if err != nil {
			return err
		}
		if dur < 0 {
			return dp.WrapKeyErr(item.key, fmt.Errorf("must not be negative"))
		}
		*item.dst = config.TimeDuration(dur)
	}
	return nil
}
