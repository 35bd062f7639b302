package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv applies a full environment for Load, clearing keys absent from the map.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()

	for _, key := range []string{EnvAuthFlow, EnvClientID, EnvTenantID, EnvClientSecret, EnvTargetUser} {
		t.Setenv(key, env[key])
	}
}

func TestLoad_DefaultsToDeviceFlow(t *testing.T) {
	setEnv(t, map[string]string{
		EnvClientID: "client-1",
		EnvTenantID: "tenant-1",
	})

	cfg := Load()
	assert.Equal(t, FlowDevice, cfg.Flow)
	assert.Equal(t, "client-1", cfg.ClientID)
	assert.Equal(t, "tenant-1", cfg.TenantID)
}

func TestLoad_FlowIsCaseInsensitive(t *testing.T) {
	setEnv(t, map[string]string{
		EnvAuthFlow: "APP",
		EnvClientID: "client-1",
		EnvTenantID: "tenant-1",
	})

	cfg := Load()
	assert.Equal(t, FlowApp, cfg.Flow)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantKey string // empty means valid
	}{
		{
			name: "valid device flow",
			cfg:  Config{Flow: FlowDevice, ClientID: "c", TenantID: "t"},
		},
		{
			name: "valid app flow",
			cfg: Config{
				Flow: FlowApp, ClientID: "c", TenantID: "t",
				ClientSecret: "s", TargetUser: "admin@example.com",
			},
		},
		{
			name:    "unknown flow",
			cfg:     Config{Flow: "magic", ClientID: "c", TenantID: "t"},
			wantKey: EnvAuthFlow,
		},
		{
			name:    "missing client id",
			cfg:     Config{Flow: FlowDevice, TenantID: "t"},
			wantKey: EnvClientID,
		},
		{
			name:    "missing tenant id",
			cfg:     Config{Flow: FlowDevice, ClientID: "c"},
			wantKey: EnvTenantID,
		},
		{
			name:    "app flow without secret",
			cfg:     Config{Flow: FlowApp, ClientID: "c", TenantID: "t", TargetUser: "u"},
			wantKey: EnvClientSecret,
		},
		{
			name:    "app flow without target user",
			cfg:     Config{Flow: FlowApp, ClientID: "c", TenantID: "t", ClientSecret: "s"},
			wantKey: EnvTargetUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()

			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "want *ConfigError, got %v", err)
			assert.Equal(t, tt.wantKey, cfgErr.Key)
		})
	}
}

func TestDrivePrefix(t *testing.T) {
	device := Config{Flow: FlowDevice}
	assert.Equal(t, "/me/drive", device.DrivePrefix())

	app := Config{Flow: FlowApp, TargetUser: "admin@example.com"}
	assert.Equal(t, "/users/admin@example.com/drive", app.DrivePrefix())
}

func TestDrivePrefix_EscapesTargetUser(t *testing.T) {
	app := Config{Flow: FlowApp, TargetUser: "a b/c"}
	assert.Equal(t, "/users/a%20b%2Fc/drive", app.DrivePrefix())
}
