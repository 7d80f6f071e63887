package flags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Settings, error) {
	t.Helper()
	// Очищаем флаги и Viper перед каждым тестом
	viper.Reset()
	t.Cleanup(viper.Reset)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))

	settings := NewSettings()
	err := settings.LoadConfig(fs)
	return settings, err
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		envVars  map[string]string
		expected Settings
	}{
		{
			name: "defaults",
			expected: Settings{
				LogLevel: "info", Format: "text", QRSize: 256,
				VaultDriver: "sqlite3", VaultDSN: "otpexport.db", Listen: ":8080",
			},
		},
		{
			name: "environment",
			envVars: map[string]string{
				"OTPEXPORT_LOG_LEVEL":    "debug",
				"OTPEXPORT_FORMAT":       "json",
				"OTPEXPORT_QR_SIZE":      "512",
				"OTPEXPORT_VAULT_DRIVER": "postgres",
				"OTPEXPORT_VAULT_DSN":    "host=db user=postgres sslmode=disable",
			},
			expected: Settings{
				LogLevel: "debug", Format: "json", QRSize: 512,
				VaultDriver: "postgres", VaultDSN: "host=db user=postgres sslmode=disable", Listen: ":8080",
			},
		},
		{
			name:    "flags win over environment",
			args:    []string{"--format", "yaml", "-L", "error", "--qr_dir", "codes", "--listen", ":9000"},
			envVars: map[string]string{"OTPEXPORT_FORMAT": "json"},
			expected: Settings{
				LogLevel: "error", Format: "yaml", QRDir: "codes", QRSize: 256,
				VaultDriver: "sqlite3", VaultDSN: "otpexport.db", Listen: ":9000",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := load(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, *settings)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: json\nqr_size: 128\nmaster_password: hunter2\n"), 0o600))

	settings, err := load(t, "--config", path, "--qr_size", "64")
	require.NoError(t, err)
	assert.Equal(t, "json", settings.GetFormat())
	assert.Equal(t, 64, settings.GetQRSize())
	assert.Equal(t, "hunter2", settings.GetMasterPassword())
	assert.Equal(t, path, settings.ConfigFile)

	_, err = load(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "format", args: []string{"--format", "xml"}},
		{name: "driver", args: []string{"--vault_driver", "mysql"}},
		{name: "qr size", args: []string{"--qr_size=-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args...)
			assert.ErrorIs(t, err, ErrInvalidSetting)
		})
	}
}

func TestGetters(t *testing.T) {
	settings := &Settings{
		LogLevel:       "debug",
		Format:         "yaml",
		QRDir:          "out",
		QRSize:         300,
		VaultDriver:    "postgres",
		VaultDSN:       "testdsn",
		MasterPassword: "pw",
		Listen:         ":1",
	}

	tests := []struct {
		name     string
		getter   func() interface{}
		expected interface{}
	}{
		{name: "GetLogLevel", getter: func() interface{} { return settings.GetLogLevel() }, expected: "debug"},
		{name: "GetFormat", getter: func() interface{} { return settings.GetFormat() }, expected: "yaml"},
		{name: "GetQRDir", getter: func() interface{} { return settings.GetQRDir() }, expected: "out"},
		{name: "GetQRSize", getter: func() interface{} { return settings.GetQRSize() }, expected: 300},
		{name: "GetVaultDriver", getter: func() interface{} { return settings.GetVaultDriver() }, expected: "postgres"},
		{name: "GetVaultDSN", getter: func() interface{} { return settings.GetVaultDSN() }, expected: "testdsn"},
		{name: "GetMasterPassword", getter: func() interface{} { return settings.GetMasterPassword() }, expected: "pw"},
		{name: "GetListen", getter: func() interface{} { return settings.GetListen() }, expected: ":1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.getter())
		})
	}
}
