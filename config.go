// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import "time"

// Config holds common configuration for loopchan channels and event loops.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
//
// Channels that must be able to reach each other must share the same
// [*Registry], hence usually the same [*Config].
type Config struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// NewChannelID returns the identity of a new channel.
	//
	// Set by [NewConfig] to [NewChannelID].
	NewChannelID func() string

	// Registry maps local addresses to bound channels.
	//
	// Set by [NewConfig] to a new, empty [*Registry].
	Registry *Registry

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		ErrClassifier: DefaultErrClassifier,
		NewChannelID:  NewChannelID,
		Registry:      NewRegistry(),
		TimeNow:       time.Now,
	}
}
