package config

import (
	"fmt"
	"time"
)

// ShareConfig holds the signing settings for public share links.
type ShareConfig struct {
	Secret          string `mapstructure:"secret"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
}

// Expiration returns the token lifetime.
func (c ShareConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *ShareConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("share.secret cannot be empty")
	}
	if len(c.Secret) < 16 {
		return fmt.Errorf("share.secret must be at least 16 bytes, got %d", len(c.Secret))
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("share.expiration_hours must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
