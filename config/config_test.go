package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfigPath, "")
}

func Test_LoadClient_Defaults(t *testing.T) {
	isolateEnv(t)

	c, err := LoadClient(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultAddress, c.Service.Address)
	require.Equal(t, DefaultAddress, c.Identity.Address)
	require.Equal(t, NetworkLocal, c.Network)
	require.Equal(t, 10*time.Second, c.CallTimeout)
	require.Equal(t, 8*time.Hour, c.Identity.MaxTTL)
	require.Equal(t, "info", c.Log.Level)
}

func Test_LoadClient_Sources(t *testing.T) {
	isolateEnv(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
service:
  address: "edu.example.com:2412"
network: ic
root_key: /etc/educhain/root.pem
call_timeout: 3s
log:
  level: debug
`), 0o600))
	t.Setenv(EnvConfigPath, cfgPath)
	t.Setenv("EDUCHAIN_CALL_TIMEOUT", "4s")
	t.Setenv("EDUCHAIN_LOG_FORMAT", "json")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(FlagServiceAddress, "", "")
	flags.String(FlagLogLevel, "", "")
	require.NoError(t, flags.Parse([]string{"--" + FlagLogLevel, "warn"}))

	c, err := LoadClient(flags)
	require.NoError(t, err)
	// File
	require.Equal(t, "edu.example.com:2412", c.Service.Address)
	require.Equal(t, NetworkIC, c.Network)
	require.Equal(t, "/etc/educhain/root.pem", c.RootKey)
	// Env overrides file
	require.Equal(t, 4*time.Second, c.CallTimeout)
	require.Equal(t, "json", c.Log.Format)
	// Flag overrides file
	require.Equal(t, "warn", c.Log.Level)
}

func Test_LoadClient_Validation(t *testing.T) {
	isolateEnv(t)

	for name, env := range map[string][2]string{
		"Unknown network":       {"EDUCHAIN_NETWORK", "mainnet"},
		"Zero timeout":          {"EDUCHAIN_CALL_TIMEOUT", "0s"},
		"IC without a root key": {"EDUCHAIN_NETWORK", "ic"},
		"Unknown log level":     {"EDUCHAIN_LOG_LEVEL", "verbose"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := LoadClient(nil)
			require.Error(t, err)
		})
	}
}

func Test_LoadServer(t *testing.T) {
	isolateEnv(t)

	t.Run("Missing explicit config file", func(t *testing.T) {
		t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := LoadServer(nil)
		require.Error(t, err)
	})

	t.Run("Defaults and flags", func(t *testing.T) {
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String(FlagListen, ":2412", "")
		flags.String(FlagStoragePath, "", "")
		require.NoError(t, flags.Parse([]string{"--" + FlagStoragePath, "/tmp/educhain.db"}))

		c, err := LoadServer(flags)
		require.NoError(t, err)
		require.Equal(t, ":2412", c.Listen)
		require.Equal(t, "/tmp/educhain.db", c.Storage.Path)
		require.Empty(t, c.Seed.Path)
		require.Equal(t, 8*time.Hour, c.Issuer.TTL)
	})
}
