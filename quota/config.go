/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"fmt"
	"time"

	"github.com/acronis/go-usagekit/config"
)

const cfgDefaultKeyPrefix = "quota"

const (
	cfgKeyBudget   = "budget"
	cfgKeyDuration = "duration"
)

// Default values.
const (
	DefaultBudget   = 100
	DefaultDuration = time.Minute
)

// Config represents a set of configuration parameters for the quota tracker.
type Config struct {
	// Budget is the maximum sum of event weights within the window.
	Budget uint64 `mapstructure:"budget" yaml:"budget" json:"budget"`

	// Duration is the window length. Whole seconds are significant only.
	Duration config.TimeDuration `mapstructure:"duration" yaml:"duration" json:"duration"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
// If keyPrefix is empty, "quota" is used.
func NewConfig(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyBudget, DefaultBudget)
	dp.SetDefault(cfgKeyDuration, DefaultDuration.String())
}

// Set sets configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Budget, err = dp.GetUint64(cfgKeyBudget); err != nil {
		return err
	}
	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyDuration); err != nil {
		return err
	}
	if dur <= 0 {
		return dp.WrapKeyErr(cfgKeyDuration, fmt.Errorf("must be positive"))
	}
	c.Duration = config.TimeDuration(dur)
	return nil
}
