package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
store:
  driver: database
database:
  driver: sqlite
  dsn: ":memory:"
game:
  id: botc-test
  max_phases: 7
  phase_timeout: 90s
  players:
    - name: Alice
      contact: alice@example.com
      role_class: demon
      role_name: Imp
    - name: Bob
      contact: bob@example.com
log:
  level: debug
`

func TestInit_LoadsFileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	require.NoError(t, Init(path))
	cfg := Get()
	require.NotNil(t, cfg)

	assert.Equal(t, "database", cfg.Store.Driver)
	assert.Equal(t, "botc-test", cfg.Game.ID)
	assert.Equal(t, 7, cfg.Game.MaxPhases)
	assert.Equal(t, 90*time.Second, cfg.Game.PhaseTimeout)
	require.Len(t, cfg.Game.Players, 2)
	assert.Equal(t, "Imp", cfg.Game.Players[0].RoleName)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未在文件中出现的字段使用默认值
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 256, cfg.Game.InboxSize)
	assert.Equal(t, path, ConfigFile())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store: StoreConfig{Driver: "file", Path: "./data/gamestate.json"},
			Game:  GameConfig{MaxPhases: 10, PhaseTimeout: time.Minute},
		}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.Store.Driver = "redis"
	assert.Error(t, c.Validate())

	c = base()
	c.Store.Path = ""
	assert.Error(t, c.Validate())

	c = base()
	c.Game.MaxPhases = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Game.Players = []PlayerConfig{{Name: "NoContact"}}
	assert.Error(t, c.Validate())
}

func TestValidate_DatabaseStoreRequiresGameID(t *testing.T) {
	c := &Config{
		Store: StoreConfig{Driver: "database"},
		Game:  GameConfig{MaxPhases: 10, PhaseTimeout: time.Minute},
	}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game.id")

	c.Game.ID = "  "
	assert.Error(t, c.Validate())

	c.Game.ID = "table-1"
	assert.NoError(t, c.Validate())
}
