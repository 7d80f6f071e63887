package flags

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, OTPEXPORT_LOG_LEVEL and so on
const EnvPrefix = "OTPEXPORT"

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrInvalidSetting is returned for a setting outside its allowed values
var ErrInvalidSetting = errors.New("invalid setting")

// Settings struct
type Settings struct {
	LogLevel       string
	Format         string
	QRDir          string
	QRSize         int
	VaultDriver    string
	VaultDSN       string
	MasterPassword string
	Listen         string
	ConfigFile     string
}

// NewSettings creates a new settings instance
func NewSettings() *Settings {
	return &Settings{}
}

// AddFlags defines the configuration flags on fs. Defaults live in viper so
// that environment and config file values are not shadowed by flag zero values.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringP("log_level", "L", "", "Log level (info, warning, debug, error)")
	fs.StringP("format", "f", "", "Output format (text, json, yaml)")
	fs.String("qr_dir", "", "Directory for per-account QR code images")
	fs.Int("qr_size", 0, "QR code image size in pixels")
	fs.String("vault_driver", "", "Vault database driver (sqlite3, postgres)")
	fs.StringP("vault_dsn", "D", "", "Vault data source name")
	fs.String("master_password", "", "Vault master password")
	fs.String("listen", "", "HTTP listen address")
	fs.StringP("config", "c", "", "Config file (default ./otpexport.yaml if present)")
}

// LoadConfig loads the configuration from flags, environment variables, the
// config file and default values, in that order of precedence
func (s *Settings) LoadConfig(fs *pflag.FlagSet) error {
	// Установка значений по умолчанию
	viper.SetDefault("log_level", "info")
	viper.SetDefault("format", FormatText)
	viper.SetDefault("qr_dir", "")
	viper.SetDefault("qr_size", 256)
	viper.SetDefault("vault_driver", "sqlite3")
	viper.SetDefault("vault_dsn", "otpexport.db")
	viper.SetDefault("master_password", "")
	viper.SetDefault("listen", ":8080")

	// Связывание флагов с viper
	if err := viper.BindPFlags(fs); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	if err := readConfigFile(viper.GetString("config")); err != nil {
		return err
	}

	// Загрузка конфигурации
	s.LogLevel = viper.GetString("log_level")
	s.Format = viper.GetString("format")
	s.QRDir = viper.GetString("qr_dir")
	s.QRSize = viper.GetInt("qr_size")
	s.VaultDriver = viper.GetString("vault_driver")
	s.VaultDSN = viper.GetString("vault_dsn")
	s.MasterPassword = viper.GetString("master_password")
	s.Listen = viper.GetString("listen")
	s.ConfigFile = viper.ConfigFileUsed()

	return s.Validate()
}

func readConfigFile(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return nil
	}

	viper.SetConfigName("otpexport")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Validate checks the enumerated settings
func (s *Settings) Validate() error {
	switch s.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: format %q", ErrInvalidSetting, s.Format)
	}
	switch s.VaultDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: vault_driver %q", ErrInvalidSetting, s.VaultDriver)
	}
	if s.QRSize <= 0 {
		return fmt.Errorf("%w: qr_size %d", ErrInvalidSetting, s.QRSize)
	}
	return nil
}

// GetLogLevel returns the log level
func (s *Settings) GetLogLevel() string {
	return s.LogLevel
}

// GetFormat returns the output format
func (s *Settings) GetFormat() string {
	return s.Format
}

// GetQRDir returns the QR output directory, empty when disabled
func (s *Settings) GetQRDir() string {
	return s.QRDir
}

// GetQRSize returns the QR image size
func (s *Settings) GetQRSize() int {
	return s.QRSize
}

// GetVaultDriver returns the vault database driver
func (s *Settings) GetVaultDriver() string {
	return s.VaultDriver
}

// GetVaultDSN returns the vault data source name
func (s *Settings) GetVaultDSN() string {
	return s.VaultDSN
}

// GetMasterPassword returns the vault master password
func (s *Settings) GetMasterPassword() string {
	return s.MasterPassword
}

// GetListen returns the HTTP listen address
func (s *Settings) GetListen() string {
	return s.Listen
}
