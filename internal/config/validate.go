package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateGroups(); err != nil {
		return err
	}
	if err := c.validateInteraction(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if !strings.Contains(c.Paths.APIBind, ":") {
		return fmt.Errorf("paths.api_bind %q must be host:port", c.Paths.APIBind)
	}
	return nil
}

func (c *Config) validateGroups() error {
	if c.Groups.MaxMembers < minGroupMembers || c.Groups.MaxMembers > maxGroupMembers {
		return fmt.Errorf("groups.max_members must be between %d and %d", minGroupMembers, maxGroupMembers)
	}
	if c.Groups.DurationDays < 28 {
		return errors.New("groups.duration_days must cover the four-week discussion schedule (>= 28)")
	}
	return nil
}

func (c *Config) validateInteraction() error {
	if c.Interaction.MaxMessageLength < 1 || c.Interaction.MaxMessageLength > maxMessageLengthCeiling {
		return fmt.Errorf("interaction.max_message_length must be between 1 and %d", maxMessageLengthCeiling)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.base_url %q must be an absolute URL", c.Notifications.BaseURL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}
