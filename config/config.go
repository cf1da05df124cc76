/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads configuration of trackers, limiters, and logging from files,
// readers, and environment variables, applying defaults first.
package config

// Config is a common interface for configuration objects that may be used by Loader.
type Config interface {
	// SetProviderDefaults registers default values for the configuration keys.
	SetProviderDefaults(dp DataProvider)

	// Set reads and validates configuration values.
	Set(dp DataProvider) error
}

// KeyPrefixProvider is an interface for providing key prefix that will be used for configuration parameters.
type KeyPrefixProvider interface {
	KeyPrefix() string
}
