// Package config loads and validates the console's authentication
// configuration from environment variables. Configuration is read once at
// startup and is immutable afterwards.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Flow selects how the console authenticates against Microsoft identity.
type Flow string

const (
	// FlowDevice is the interactive device-code flow (delegated access to
	// the signed-in user's own drive).
	FlowDevice Flow = "device"

	// FlowApp is the confidential-client flow (app-only access to an
	// impersonated user's drive).
	FlowApp Flow = "app"
)

// Environment variable names.
const (
	EnvAuthFlow     = "AUTH_FLOW"
	EnvClientID     = "CLIENT_ID"
	EnvTenantID     = "TENANT_ID"
	EnvClientSecret = "CLIENT_SECRET"
	EnvTargetUser   = "TARGET_USER"
)

// Config holds the authentication configuration for one process run.
type Config struct {
	Flow         Flow
	ClientID     string
	TenantID     string
	ClientSecret string // required for FlowApp
	TargetUser   string // required for FlowApp; whose drive is operated on
}

// ConfigError reports missing or invalid configuration for the selected
// flow. It is returned before any remote call is attempted.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// Load reads the configuration from the environment. AUTH_FLOW defaults to
// "device" when unset. Load does not validate — callers must call Validate
// before using the config.
func Load() *Config {
	flow := strings.ToLower(os.Getenv(EnvAuthFlow))
	if flow == "" {
		flow = string(FlowDevice)
	}

	return &Config{
		Flow:         Flow(flow),
		ClientID:     os.Getenv(EnvClientID),
		TenantID:     os.Getenv(EnvTenantID),
		ClientSecret: os.Getenv(EnvClientSecret),
		TargetUser:   os.Getenv(EnvTargetUser),
	}
}

// Validate checks that every key required by the selected flow is present.
// Returns a *ConfigError naming the first offending key.
func (c *Config) Validate() error {
	if c.Flow != FlowDevice && c.Flow != FlowApp {
		return &ConfigError{
			Key:    EnvAuthFlow,
			Reason: fmt.Sprintf("must be %q or %q, got %q", FlowDevice, FlowApp, c.Flow),
		}
	}

	if c.ClientID == "" {
		return &ConfigError{Key: EnvClientID, Reason: "required"}
	}

	if c.TenantID == "" {
		return &ConfigError{Key: EnvTenantID, Reason: "required"}
	}

	if c.Flow == FlowApp {
		if c.ClientSecret == "" {
			return &ConfigError{Key: EnvClientSecret, Reason: "required when AUTH_FLOW=app"}
		}

		if c.TargetUser == "" {
			return &ConfigError{Key: EnvTargetUser, Reason: "required when AUTH_FLOW=app"}
		}
	}

	return nil
}

// DrivePrefix returns the Graph API path prefix of the drive root this
// configuration operates on: the signed-in user's own drive for the device
// flow, the impersonated user's drive for the app flow.
func (c *Config) DrivePrefix() string {
	if c.Flow == FlowApp {
		return "/users/" + url.PathEscape(c.TargetUser) + "/drive"
	}

	return "/me/drive"
}
