//go:build linux

package di

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giannitedesco/minotaur/internal/config"
	"github.com/giannitedesco/minotaur/internal/di/providers"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

func testConfig(paths ...string) *config.Config {
	return &config.Config{
		Paths:  paths,
		Mask:   config.DefaultMask,
		Logger: config.LoggerConfig{Level: "error", Format: "text"},
		Server: config.ServerConfig{RateLimit: 5, RateBurst: 10},
	}
}

func TestBootstrap(t *testing.T) {
	dir := t.TempDir()
	injector := NewContainer(testConfig(dir))
	require.NoError(t, Bootstrap(injector))

	w := do.MustInvoke[*providers.WatcherHandle](injector)
	require.Len(t, w.Registered, 1)
	assert.Equal(t, dir, w.Registered[0].Path)

	info, ok := w.Session().Lookup(w.Registered[0].Descriptor.WD())
	require.True(t, ok)
	assert.Equal(t, inotify.OpCreate|inotify.OpDelete|inotify.OpDeleteSelf|inotify.OpMove, info.Events)

	srv := do.MustInvoke[*providers.HTTPServerHandle](injector)
	assert.Nil(t, srv.Server)
	adv := do.MustInvoke[*providers.AdvertiserHandle](injector)
	assert.Nil(t, adv.Service)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "target"), nil, 0o600))
	select {
	case ev := <-w.Events():
		assert.True(t, ev.Has(inotify.OpCreate))
		assert.Equal(t, "target", ev.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}

	report := injector.Shutdown()
	assert.True(t, report.Succeed, report.Error())
	assert.True(t, w.Session().Closed())
}

func TestBootstrap_Profile(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o750))

	profilePath := filepath.Join(dir, "watches.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte("ignore: [\"*.swp\"]\nwatches:\n  - path: sub\n    mask: close_write\n"), 0o600))

	cfg := testConfig()
	cfg.Profile = profilePath
	cfg.Ignore = []string{"*~"}

	injector := NewContainer(cfg)
	t.Cleanup(func() { injector.Shutdown() })
	require.NoError(t, Bootstrap(injector))

	list := do.MustInvoke[*providers.WatchList](injector)
	assert.Equal(t, []string{"*~", "*.swp"}, list.Ignore)

	w := do.MustInvoke[*providers.WatcherHandle](injector)
	require.Len(t, w.Registered, 1)
	assert.Equal(t, sub, w.Registered[0].Path)
}

func TestBootstrap_MissingPath(t *testing.T) {
	injector := NewContainer(testConfig(filepath.Join(t.TempDir(), "missing")))
	t.Cleanup(func() { injector.Shutdown() })

	err := Bootstrap(injector)
	require.Error(t, err)
	assert.ErrorIs(t, err, inotify.ErrNotFound)
}

func TestBootstrap_HTTPServer(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 5 * time.Second

	injector := NewContainer(cfg)
	require.NoError(t, Bootstrap(injector))

	srv := do.MustInvoke[*providers.HTTPServerHandle](injector)
	require.NotNil(t, srv.Server)

	resp, err := http.Get("http://" + srv.ListenAddr + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + srv.ListenAddr + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// An open event stream must not hold up shutdown.
	stream, err := http.Get("http://" + srv.ListenAddr + "/api/v1/events")
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	start := time.Now()
	report := injector.Shutdown()
	assert.True(t, report.Succeed, report.Error())
	assert.Less(t, time.Since(start), 5*time.Second)

	_, err = io.ReadAll(stream.Body)
	assert.NoError(t, err)
}

func TestBootstrap_Advertise(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Server.Advertise = true

	injector := NewContainer(cfg)
	require.NoError(t, Bootstrap(injector))

	// Without multicast the responder is skipped rather than failing startup.
	adv := do.MustInvoke[*providers.AdvertiserHandle](injector)
	if adv.Service != nil {
		assert.True(t, adv.Running())
	}

	report := injector.Shutdown()
	assert.True(t, report.Succeed, report.Error())
	if adv.Service != nil {
		assert.False(t, adv.Running())
	}
}
