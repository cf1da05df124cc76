/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"fmt"

	"github.com/acronis/go-usagekit/config"
)

// Admission algorithms.
const (
	AlgQuota         = "quota"
	AlgSlidingWindow = "sliding_window"
	AlgLeakyBucket   = "leaky_bucket"
	AlgTokenBucket   = "token_bucket"
)

const cfgDefaultKeyPrefix = "admission"

const (
	cfgKeyAlg            = "alg"
	cfgKeyRate           = "rate"
	cfgKeyBurst          = "burst"
	cfgKeyMaxKeys        = "maxKeys"
	cfgKeyBacklogLimit   = "backlog.limit"
	cfgKeyBacklogTimeout = "backlog.timeout"
)

// Default values.
const (
	DefaultAlg     = AlgQuota
	DefaultRate    = "100/m"
	DefaultMaxKeys = 10000
)

// Config represents a set of configuration parameters for keyed admission.
type Config struct {
	// Alg is an admission algorithm (quota, sliding_window, leaky_bucket or token_bucket).
	Alg string `mapstructure:"alg" yaml:"alg" json:"alg"`

	// Rate is the allowed weight per key in the N/(s|m|h|<duration>) format.
	Rate Rate `mapstructure:"rate" yaml:"rate" json:"rate"`

	// Burst is the bucket size for leaky_bucket and token_bucket algorithms.
	Burst int `mapstructure:"burst" yaml:"burst" json:"burst"`

	// MaxKeys limits the number of keys with their own limiters.
	// Least recently used keys are forgotten when the limit is reached.
	// If it's 0, all keys share a single limiter.
	MaxKeys int `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`

	// Backlog configures queuing of rejected requests.
	Backlog BacklogConfig `mapstructure:"backlog" yaml:"backlog" json:"backlog"`

	keyPrefix string
}

// BacklogConfig represents a configuration for the backlog of rejected requests.
type BacklogConfig struct {
	// Limit is the max number of queued requests per key. Backlogging is disabled if it's 0.
	Limit int `mapstructure:"limit" yaml:"limit" json:"limit"`

	// Timeout is the max time a request may spend in the backlog.
	Timeout config.TimeDuration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
// If keyPrefix is empty, "admission" is used.
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
	dp.SetDefault(cfgKeyAlg, DefaultAlg)
	dp.SetDefault(cfgKeyRate, DefaultRate)
	dp.SetDefault(cfgKeyBurst, 0)
	dp.SetDefault(cfgKeyMaxKeys, DefaultMaxKeys)
	dp.SetDefault(cfgKeyBacklogLimit, 0)
	dp.SetDefault(cfgKeyBacklogTimeout, DefaultBacklogTimeout.String())
}

// Set sets configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Alg, err = dp.GetStringFromSet(
		cfgKeyAlg, []string{AlgQuota, AlgSlidingWindow, AlgLeakyBucket, AlgTokenBucket}, true); err != nil {
		return err
	}

	var rateStr string
	if rateStr, err = dp.GetString(cfgKeyRate); err != nil {
		return err
	}
	if err = c.Rate.UnmarshalText([]byte(rateStr)); err != nil {
		return dp.WrapKeyErr(cfgKeyRate, err)
	}
	if c.Rate.Duration == 0 {
		return dp.WrapKeyErr(cfgKeyRate, fmt.Errorf("must be specified"))
	}
	if c.Alg != AlgQuota && c.Rate.Count == 0 {
		return dp.WrapKeyErr(cfgKeyRate, fmt.Errorf("count must be positive for %s algorithm", c.Alg))
	}

	if c.Burst, err = dp.GetInt(cfgKeyBurst); err != nil {
		return err
	}
	if c.Burst < 0 {
		return dp.WrapKeyErr(cfgKeyBurst, fmt.Errorf("must not be negative"))
	}

	if c.MaxKeys, err = dp.GetInt(cfgKeyMaxKeys); err != nil {
		return err
	}
	if c.MaxKeys < 0 {
		return dp.WrapKeyErr(cfgKeyMaxKeys, fmt.Errorf("must not be negative"))
	}

	if c.Backlog.Limit, err = dp.GetInt(cfgKeyBacklogLimit); err != nil {
		return err
	}
	if c.Backlog.Limit < 0 {
		return dp.WrapKeyErr(cfgKeyBacklogLimit, fmt.Errorf("must not be negative"))
	}
	backlogTimeout, err := dp.GetDuration(cfgKeyBacklogTimeout)
	if err != nil {
		return err
	}
	c.Backlog.Timeout = config.TimeDuration(backlogTimeout)

	return nil
}
