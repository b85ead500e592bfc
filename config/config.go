// Package config loads client and server configuration from defaults, an optional
// YAML file, EDUCHAIN_ env vars and command line flags (in increasing priority).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/itiky/educhain-dao/logging"
)

const (
	EnvPrefix     = "EDUCHAIN"
	EnvConfigPath = "EDUCHAIN_CONFIG"

	NetworkLocal = "local"
	NetworkIC    = "ic"

	DefaultAddress = "127.0.0.1:2412"
)

type (
	// ClientConfig holds the dashboard configuration.
	ClientConfig struct {
		Service     ServiceConfig  `mapstructure:"service"`
		Identity    IdentityConfig `mapstructure:"identity"`
		Network     string         `mapstructure:"network"`
		CallTimeout time.Duration  `mapstructure:"call_timeout"`
		// Pinned root key: inline PEM or a file path
		RootKey string    `mapstructure:"root_key"`
		Log     LogConfig `mapstructure:"log"`
	}

	ServiceConfig struct {
		Address string `mapstructure:"address"`
	}

	IdentityConfig struct {
		Address string        `mapstructure:"address"`
		MaxTTL  time.Duration `mapstructure:"max_ttl"`
	}

	// ServerConfig holds the governance service configuration.
	ServerConfig struct {
		Listen  string        `mapstructure:"listen"`
		Storage StorageConfig `mapstructure:"storage"`
		Seed    SeedConfig    `mapstructure:"seed"`
		Issuer  IssuerConfig  `mapstructure:"identity"`
		Keys    KeysConfig    `mapstructure:"keys"`
		Log     LogConfig     `mapstructure:"log"`
	}

	StorageConfig struct {
		// SQLite journal path, in-memory ledger if empty
		Path string `mapstructure:"path"`
	}

	SeedConfig struct {
		// YAML seed file applied to an empty ledger
		Path string `mapstructure:"path"`
	}

	IssuerConfig struct {
		TTL time.Duration `mapstructure:"ttl"`
	}

	KeysConfig struct {
		// Delegation signing key (inline PEM or a file path), generated if empty
		Identity string `mapstructure:"identity"`
		// Read certification key (inline PEM or a file path), generated if empty
		Root string `mapstructure:"root"`
	}

	LogConfig struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}
)

// LoggingOptions converts the config to logging.Options.
func (c LogConfig) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Level, Format: c.Format}
}

// Validate validates the client config.
func (c ClientConfig) Validate() error {
	if c.Service.Address == "" {
		return fmt.Errorf("%s: empty", "service.address")
	}
	if c.Identity.Address == "" {
		return fmt.Errorf("%s: empty", "identity.address")
	}
	switch c.Network {
	case NetworkLocal, NetworkIC, "":
	default:
		return fmt.Errorf("%s: unknown %q (valid: %s, %s)", "network", c.Network, NetworkLocal, NetworkIC)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%s: must be GT 0", "call_timeout")
	}
	if c.Identity.MaxTTL <= 0 {
		return fmt.Errorf("%s: must be GT 0", "identity.max_ttl")
	}
	if c.Network == NetworkIC && c.RootKey == "" {
		return fmt.Errorf("%s: required for the %q network", "root_key", NetworkIC)
	}

	return logging.Validate(c.Log.LoggingOptions())
}

// Validate validates the server config.
func (c ServerConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%s: empty", "listen")
	}
	if c.Issuer.TTL <= 0 {
		return fmt.Errorf("%s: must be GT 0", "identity.ttl")
	}

	return logging.Validate(c.Log.LoggingOptions())
}

// LoadClient reads the client config, flags might be nil.
func LoadClient(flags *pflag.FlagSet) (ClientConfig, error) {
	v := newViper()
	v.SetDefault("service.address", DefaultAddress)
	v.SetDefault("identity.address", DefaultAddress)
	v.SetDefault("identity.max_ttl", 8*time.Hour)
	v.SetDefault("network", NetworkLocal)
	v.SetDefault("call_timeout", 10*time.Second)
	v.SetDefault("root_key", "")

	if err := load(v, flags, map[string]string{
		"service.address":  FlagServiceAddress,
		"identity.address": FlagIdentityAddress,
		"network":          FlagNetwork,
		"call_timeout":     FlagCallTimeout,
		"root_key":         FlagRootKey,
	}); err != nil {
		return ClientConfig{}, err
	}

	var c ClientConfig
	if err := v.Unmarshal(&c); err != nil {
		return ClientConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return ClientConfig{}, fmt.Errorf("config validation: %w", err)
	}

	return c, nil
}

// LoadServer reads the server config, flags might be nil.
func LoadServer(flags *pflag.FlagSet) (ServerConfig, error) {
	v := newViper()
	v.SetDefault("listen", ":2412")
	v.SetDefault("storage.path", "")
	v.SetDefault("seed.path", "")
	v.SetDefault("identity.ttl", 8*time.Hour)
	v.SetDefault("keys.identity", "")
	v.SetDefault("keys.root", "")

	if err := load(v, flags, map[string]string{
		"listen":       FlagListen,
		"storage.path": FlagStoragePath,
		"seed.path":    FlagSeedPath,
	}); err != nil {
		return ServerConfig{}, err
	}

	var c ServerConfig
	if err := v.Unmarshal(&c); err != nil {
		return ServerConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return ServerConfig{}, fmt.Errorf("config validation: %w", err)
	}

	return c, nil
}

// Flag names bound to config keys.
const (
	FlagServiceAddress  = "service-address"
	FlagIdentityAddress = "identity-address"
	FlagNetwork         = "network"
	FlagCallTimeout     = "call-timeout"
	FlagRootKey         = "root-key"
	FlagListen          = "listen"
	FlagStoragePath     = "storage-path"
	FlagSeedPath        = "seed-path"
	FlagLogLevel        = "log-level"
	FlagLogFormat       = "log-format"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigType("yaml")
	if cfgPath := os.Getenv(EnvConfigPath); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "educhain"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// load reads the config file (if present) and binds the flags.
func load(v *viper.Viper, flags *pflag.FlagSet, flagKeys map[string]string) error {
	if err := v.ReadInConfig(); err != nil {
		// The default config file is optional, an explicit one is not
		var notFound viper.ConfigFileNotFoundError
		if os.Getenv(EnvConfigPath) != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if flags == nil {
		return nil
	}

	flagKeys["log.level"] = FlagLogLevel
	flagKeys["log.format"] = FlagLogFormat
	for key, name := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}
