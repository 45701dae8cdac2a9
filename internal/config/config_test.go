package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults are applied", func(t *testing.T) {
		// Given: an almost empty config file
		path := writeConfig(t, "player-name: Alice\n")

		// When: it is loaded
		conf, err := Load(path)

		// Then: the documented defaults are used
		require.NoError(t, err)
		assert.Equal(t, "info", conf.LogLevel)
		assert.Equal(t, ModeHost, conf.Mode)
		assert.Equal(t, "Alice", conf.PlayerName)
		assert.Equal(t, 15, conf.GridSize)
		assert.Equal(t, "6789", conf.GamePort)
		assert.Equal(t, "127.0.0.1", conf.ServerAddr)
		assert.Equal(t, time.Duration(0), conf.ReadTimeout)
		assert.Equal(t, "9090", conf.HTTPPort)
		assert.False(t, conf.Redis.Enabled)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
	})

	t.Run("File values are read", func(t *testing.T) {
		path := writeConfig(t, `
log-level: debug
mode: join
player-name: Bob
grid-size: 9
game-port: "7000"
server-addr: 192.168.1.20
read-timeout: 30s
http-port: "0"
redis:
  enabled: true
  host: cache
  port: "6380"
`)

		conf, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, ModeJoin, conf.Mode)
		assert.Equal(t, 9, conf.GridSize)
		assert.Equal(t, 30*time.Second, conf.ReadTimeout)
		assert.Equal(t, "192.168.1.20:7000", conf.GameAddr())
		assert.False(t, conf.HTTPEnabled())
		assert.Equal(t, "cache:6380", conf.Redis.GetRedisAddr())
	})

	t.Run("Environment overrides the file", func(t *testing.T) {
		path := writeConfig(t, "grid-size: 9\n")
		t.Setenv("GRID_SIZE", "19")
		t.Setenv("MODE", "join")

		conf, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 19, conf.GridSize)
		assert.Equal(t, ModeJoin, conf.Mode)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))

		require.Error(t, err)
	})

	t.Run("MustLoad panics on invalid values", func(t *testing.T) {
		path := writeConfig(t, "grid-size: 30\n")

		assert.Panics(t, func() {
			MustLoad(path)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{LogLevel: "info", Mode: ModeHost, GridSize: 15, GamePort: "6789", ServerAddr: "127.0.0.1"}
	}

	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	cases := map[string]func(c *Config){
		"bad mode":          func(c *Config) { c.Mode = "spectate" },
		"bad log level":     func(c *Config) { c.LogLevel = "loud" },
		"grid too small":    func(c *Config) { c.GridSize = 4 },
		"grid too large":    func(c *Config) { c.GridSize = 26 },
		"bad port":          func(c *Config) { c.GamePort = "http" },
		"port out of range": func(c *Config) { c.GamePort = "70000" },
		"negative timeout":  func(c *Config) { c.ReadTimeout = -time.Second },
		"join without addr": func(c *Config) { c.Mode = ModeJoin; c.ServerAddr = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			conf := valid()
			mutate(&conf)

			require.ErrorIs(t, conf.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_GameAddr(t *testing.T) {
	conf := Config{Mode: ModeHost, GamePort: "6789", ServerAddr: "10.0.0.1"}
	assert.Equal(t, ":6789", conf.GameAddr())

	conf.Mode = ModeJoin
	assert.Equal(t, "10.0.0.1:6789", conf.GameAddr())
}
