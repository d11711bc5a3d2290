package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/giannitedesco/minotaur/internal/errors"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// isolate points the .env lookup at a file that does not exist so the
// developer's environment cannot leak into a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(EnvFileVar, filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig([]string{"/tmp"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/tmp"}, cfg.Paths)
	assert.Equal(t, DefaultMask, cfg.Mask)
	assert.False(t, cfg.Sync)
	assert.False(t, cfg.Fancy)
	assert.False(t, cfg.Server.Advertise)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "pretty", cfg.Logger.Format)
	assert.Empty(t, cfg.Server.Listen)
	assert.InDelta(t, 5.0, cfg.Server.RateLimit, 0)
	assert.Equal(t, 10, cfg.Server.RateBurst)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)

	assert.Equal(t, inotify.SessionFlags{NonBlock: true, CloseOnExec: true}, cfg.SessionFlags())

	m, err := cfg.WatchMask()
	require.NoError(t, err)
	assert.Equal(t, inotify.OpCreate|inotify.OpDelete|inotify.OpDeleteSelf|inotify.OpMove, m.Events)
}

func TestLoadConfig_Flags(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig([]string{
		"--mask", "close_write,onlydir",
		"--sync", "--fancy", "--no-cloexec",
		"--ignore", "*.swp,*~",
		"--log-level", "debug",
		"--log-format", "json",
		"--http-listen", "127.0.0.1:9101",
		"--http-advertise",
		"--http-cors-origin", "http://localhost:3000",
		"/a", "/b",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/a", "/b"}, cfg.Paths)
	assert.Equal(t, inotify.SessionFlags{}, cfg.SessionFlags())
	assert.True(t, cfg.Fancy)
	assert.Equal(t, []string{"*.swp", "*~"}, cfg.Ignore)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "127.0.0.1:9101", cfg.Server.Listen)
	assert.True(t, cfg.Server.Advertise)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)

	m, err := cfg.WatchMask()
	require.NoError(t, err)
	assert.Equal(t, inotify.Compose(inotify.OpCloseWrite, inotify.OnlyDir), m)
}

func TestLoadConfig_RelativePathsMadeAbsolute(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig([]string{"some/dir"})
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(wd, "some/dir")}, cfg.Paths)
}

func TestLoadConfig_EnvOverridesDefault(t *testing.T) {
	isolate(t)
	t.Setenv("MINOTAUR_MASK", "modify")
	t.Setenv("MINOTAUR_LOG_LEVEL", "warn")

	cfg, err := LoadConfig([]string{"/tmp"})
	require.NoError(t, err)
	assert.Equal(t, "modify", cfg.Mask)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoadConfig_FlagOverridesEnv(t *testing.T) {
	isolate(t)
	t.Setenv("MINOTAUR_MASK", "modify")

	cfg, err := LoadConfig([]string{"--mask", "attrib", "/tmp"})
	require.NoError(t, err)
	assert.Equal(t, "attrib", cfg.Mask)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "minotaur.env")
	content := `# minotaur settings
MINOTAUR_LOG_FORMAT=json
export MINOTAUR_FANCY="true"
MINOTAUR_LOG_LEVEL='error'
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Setenv(EnvFileVar, envFile)
	// Already set in the environment, so the file must not override it.
	t.Setenv("MINOTAUR_LOG_LEVEL", "debug")
	// Registered for cleanup so values loaded from the file are unset again.
	t.Setenv("MINOTAUR_LOG_FORMAT", "")
	t.Setenv("MINOTAUR_FANCY", "")
	require.NoError(t, os.Unsetenv("MINOTAUR_LOG_FORMAT"))
	require.NoError(t, os.Unsetenv("MINOTAUR_FANCY"))

	cfg, err := LoadConfig([]string{"/tmp"})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.True(t, cfg.Fancy)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadConfig_BadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(envFile, []byte("NOT A PAIR\n"), 0o600))
	t.Setenv(EnvFileVar, envFile)

	_, err := LoadConfig([]string{"/tmp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format at line 1")
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"nothing to watch", nil},
		{"bad mask", []string{"--mask", "create,bogus", "/tmp"}},
		{"bad level", []string{"--log-level", "loud", "/tmp"}},
		{"bad format", []string{"--log-format", "xml", "/tmp"}},
		{"bad listen", []string{"--http-listen", "nowhere", "/tmp"}},
		{"advertise without listen", []string{"--http-advertise", "/tmp"}},
		{"unknown flag", []string{"--frobnicate", "/tmp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := LoadConfig(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_ListFlagsNeedsNoPath(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig([]string{"--list-flags"})
	require.NoError(t, err)
	assert.True(t, cfg.ListFlags)
}

func TestLoadConfig_ProfileOnly(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig([]string{"--profile", "/etc/minotaur.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/minotaur.yaml", cfg.Profile)
	assert.Empty(t, cfg.Paths)
}

func TestValidate_NothingToWatch(t *testing.T) {
	cfg := &Config{
		Mask:   DefaultMask,
		Logger: LoggerConfig{Level: "info", Format: "pretty"},
		Server: ServerConfig{RateLimit: 1, RateBurst: 1},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	cfg.Paths = []string{"/tmp"}
	assert.NoError(t, cfg.Validate())
}
