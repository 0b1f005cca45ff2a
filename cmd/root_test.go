package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Daskott/snapcron/server/models"
	"github.com/Daskott/snapcron/server/snapscheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := createRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--dev"}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func useDevConfig(t *testing.T) {
	t.Cleanup(func() {
		isDevEnv = false
		cfgFile = ""
	})
	isDevEnv = true
}

func TestLoadDevConfig(t *testing.T) {
	useDevConfig(t)

	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "America/Toronto", config.Snapcron.Cron.TimeZone)
	assert.Equal(t, 10*time.Minute, config.Snapcron.Scheduler.ScanInterval)
	assert.Equal(t, 11*time.Minute, config.Snapcron.Scheduler.LeaseTTL)
	assert.Equal(t, "sqlite", config.Database.Driver)
	assert.Equal(t, "database", config.Lock.Backend)
	assert.Equal(t, 5.0, config.Snapshot.RequestsPerSecond)
	assert.Equal(t, 10*time.Second, config.Snapshot.Timeout)
	assert.False(t, config.Google.Storage.EnableSqliteBackupAndSync)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	useDevConfig(t)
	t.Setenv("SNAPCRON_LOCK_BACKEND", "memory")
	t.Setenv("SNAPCRON_SNAPCRON_SCHEDULER_LOOKAHEAD", "5m")

	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "memory", config.Lock.Backend)
	assert.Equal(t, 5*time.Minute, config.Snapcron.Scheduler.Lookahead)
}

func TestLoadConfigRejectsInvalidConfig(t *testing.T) {
	useDevConfig(t)

	t.Run("unknown lock backend", func(t *testing.T) {
		t.Setenv("SNAPCRON_LOCK_BACKEND", "etcd")

		_, err := loadConfig()
		assert.ErrorContains(t, err, "invalid config")
	})

	t.Run("lease shorter than scan interval", func(t *testing.T) {
		t.Setenv("SNAPCRON_SNAPCRON_SCHEDULER_LEASETTL", "5m")

		_, err := loadConfig()
		assert.ErrorContains(t, err, "LeaseTTL")
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("SNAPCRON_DATABASE_DRIVER", "postgres")

		_, err := loadConfig()
		assert.ErrorContains(t, err, "DSN")
	})
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapcron.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
snapcron:
  cron:
    timeZone: "UTC"
  listener:
    port: 8080
lock:
  backend: memory
`), 0600))

	t.Cleanup(func() { cfgFile = "" })
	cfgFile = path

	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Snapcron.Listener.Port)
	assert.Equal(t, "memory", config.Lock.Backend)
	assert.Equal(t, 10*time.Minute, config.Snapcron.Scheduler.Lookahead, "unset keys fall back to defaults")
	assert.Equal(t, "sqlite", config.Database.Driver)
}

func TestEntityAndTimerCommands(t *testing.T) {
	t.Cleanup(func() { isDevEnv = false })
	t.Setenv("SNAPCRON_DATABASE_DIR", t.TempDir())

	out, err := execute(t, "entity", "add", "--kind", "page", "--project", "42", "--external-id", "home", "--name", "Home")
	require.NoError(t, err)
	assert.Contains(t, out, `page "home" added with id 1`)

	_, err = execute(t, "entity", "add", "--kind", "profile", "--project", "42", "--external-id", "desktop")
	require.NoError(t, err)
	_, err = execute(t, "entity", "add", "--kind", "environment", "--project", "42", "--external-id", "production")
	require.NoError(t, err)

	out, err = execute(t, "timer", "set",
		"--project", "42",
		"--schedule", "every_x_hour",
		"--hour", "6",
		"--monitor", "custom",
		"--pages", "home",
		"--profiles", "desktop",
		"--envs", "production",
	)
	require.NoError(t, err)

	view := snapscheduler.TimerView{}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.True(t, view.Active)
	assert.Equal(t, models.MONITOR_CUSTOM, view.MonitorType)
	assert.Equal(t, []string{"home"}, view.PageIDs)
	assert.WithinDuration(t, time.Now().Add(6*time.Hour), view.NextTriggerTime, time.Minute)

	out, err = execute(t, "timer", "show", "--project", "42")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 6, view.Hour)
	assert.Equal(t, []string{"production"}, view.EnvIDs)

	out, err = execute(t, "timer", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "every 6h")
	assert.Contains(t, out, "page 1 of 1 (1 timers)")

	out, err = execute(t, "entity", "disable", "--kind", "page", "--id", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "page 1 disabled")

	_, err = execute(t, "timer", "show", "--project", "7")
	assert.ErrorIs(t, err, models.ErrTimerNotFound)
}

func TestTimerSetRejectsUnknownEntity(t *testing.T) {
	t.Cleanup(func() { isDevEnv = false })
	t.Setenv("SNAPCRON_DATABASE_DIR", t.TempDir())

	_, err := execute(t, "timer", "set",
		"--project", "42",
		"--schedule", "daily",
		"--monitor", "custom",
		"--pages", "missing",
		"--profiles", "desktop",
		"--envs", "production",
	)
	assert.ErrorIs(t, err, snapscheduler.ErrInvalidTimerConfig)
}

func TestEntityUnknownKind(t *testing.T) {
	t.Cleanup(func() { isDevEnv = false })

	_, err := execute(t, "entity", "add", "--kind", "widget", "--project", "1", "--external-id", "w")
	assert.ErrorContains(t, err, `unknown entity kind "widget"`)
}

func TestScanCommandWithNothingDue(t *testing.T) {
	t.Cleanup(func() { isDevEnv = false })
	t.Setenv("SNAPCRON_DATABASE_DIR", t.TempDir())
	t.Setenv("SNAPCRON_LOCK_BACKEND", "memory")

	out, err := execute(t, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "0 due, 0 dispatched now, 0 deferred")
}
