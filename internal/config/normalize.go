package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGroups()
	c.normalizeInteraction()
	c.normalizeCatalog()
	c.normalizeAPI()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("BOOKCLUB_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeGroups() {
	if c.Groups.MaxMembers == 0 {
		c.Groups.MaxMembers = defaultMaxMembers
	}
	if c.Groups.DurationDays == 0 {
		c.Groups.DurationDays = defaultGroupDurationDays
	}
}

func (c *Config) normalizeInteraction() {
	if c.Interaction.MaxMessageLength == 0 {
		c.Interaction.MaxMessageLength = defaultMaxMessageLength
	}
	if c.Interaction.MessagePageSize <= 0 {
		c.Interaction.MessagePageSize = defaultMessagePageSize
	}
}

func (c *Config) normalizeCatalog() {
	if c.Catalog.AlmostReadyMin <= 0 {
		c.Catalog.AlmostReadyMin = defaultAlmostReadyMin
	}
	if c.Catalog.AlmostReadyLimit <= 0 {
		c.Catalog.AlmostReadyLimit = defaultAlmostReadyLimit
	}
	if c.Catalog.PageSize <= 0 {
		c.Catalog.PageSize = defaultBookPageSize
	}
}

func (c *Config) normalizeAPI() {
	origins := make([]string, 0, len(c.API.CORSAllowedOrigins))
	for _, origin := range c.API.CORSAllowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.API.CORSAllowedOrigins = origins
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("BOOKCLUB_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.BaseURL = strings.TrimRight(strings.TrimSpace(c.Notifications.BaseURL), "/")
	if c.Notifications.BaseURL == "" {
		c.Notifications.BaseURL = defaultNtfyBaseURL
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.BreakerFailures <= 0 {
		c.Notifications.BreakerFailures = defaultNotifyBreakerFailures
	}
	if c.Notifications.BreakerCooldown <= 0 {
		c.Notifications.BreakerCooldown = defaultNotifyBreakerCooldown
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
