package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDaemon() error {
	switch c.Daemon.Mode {
	case ModeLoop, ModeHTTP:
	default:
		return fmt.Errorf("daemon.mode: unsupported value %q (expected %q or %q)", c.Daemon.Mode, ModeLoop, ModeHTTP)
	}
	if c.Daemon.PollIntervalSeconds <= 0 {
		return errors.New("daemon.poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if err := validateBind("server.bind", c.Server.Bind); err != nil {
		return err
	}
	if c.Server.ShutdownTimeoutSeconds < 0 {
		return errors.New("server.shutdown_timeout_seconds must be zero or positive")
	}
	if c.Metrics.Bind == "" {
		return nil
	}
	if err := validateBind("metrics.bind", c.Metrics.Bind); err != nil {
		return err
	}
	if c.Metrics.Bind == c.Server.Bind {
		return errors.New("metrics.bind must differ from server.bind")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func validateBind(key, bind string) error {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if host == "" {
		return fmt.Errorf("%s: host is required", key)
	}
	value, err := strconv.Atoi(port)
	if err != nil || value < 0 || value > 65535 {
		return fmt.Errorf("%s: invalid port %q", key, port)
	}
	return nil
}
