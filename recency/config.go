/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package recency

import (
	"fmt"

	"github.com/acronis/go-usagekit/config"
)

const cfgDefaultKeyPrefix = "recency"

const cfgKeyCapacity = "capacity"

// DefaultCapacity is a default number of tracked keys.
const DefaultCapacity = 10

// Config represents a set of configuration parameters for the recency tracker.
type Config struct {
	// Capacity is the maximum number of distinct keys retained by the tracker.
	Capacity int `mapstructure:"capacity" yaml:"capacity" json:"capacity"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
// If keyPrefix is empty, "recency" is used.
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
	dp.SetDefault(cfgKeyCapacity, DefaultCapacity)
}

// Set sets configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) (err error) {
	if c.Capacity, err = dp.GetInt(cfgKeyCapacity); err != nil {
		return err
	}
	if c.Capacity <= 0 {
		return dp.WrapKeyErr(cfgKeyCapacity, fmt.Errorf("must be positive"))
	}
	return nil
}
