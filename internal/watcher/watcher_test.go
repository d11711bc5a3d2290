//go:build linux

package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giannitedesco/minotaur/pkg/inotify"
)

func newWatcher(t *testing.T, opts Options) *Watcher {
	t.Helper()
	return newWatcherFlags(t, inotify.SessionFlags{NonBlock: true, CloseOnExec: true}, opts)
}

func newWatcherFlags(t *testing.T, flags inotify.SessionFlags, opts Options) *Watcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	s, err := inotify.Open(flags)
	require.NoError(t, err)

	w, err := New(s, logger, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func start(t *testing.T, w *Watcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx) //nolint:errcheck // Test goroutine
	t.Cleanup(cancel)
	return cancel
}

func nextEvent(t *testing.T, w *Watcher) inotify.Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return inotify.Event{}
}

func TestNew_ClosedSession(t *testing.T) {
	s, err := inotify.Open(inotify.SessionFlags{NonBlock: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = New(s, slog.Default(), Options{})
	assert.ErrorIs(t, err, inotify.ErrSessionClosed)
}

func TestWatcher_FileCreation(t *testing.T) {
	w := newWatcher(t, Options{Resolve: true})
	tmpDir := t.TempDir()

	_, err := w.Watch(tmpDir, inotify.Compose(inotify.OpCloseWrite, 0))
	require.NoError(t, err)
	start(t, w)

	testFile := filepath.Join(tmpDir, "notes.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("content"), 0o600))

	ev := nextEvent(t, w)
	assert.Equal(t, inotify.OpCloseWrite, ev.Op)
	assert.Equal(t, "notes.txt", ev.Name)
	assert.Equal(t, testFile, ev.Path)
}

func TestWatcher_IgnorePatterns(t *testing.T) {
	w := newWatcher(t, Options{IgnorePatterns: []string{"*.swp"}, IgnoreHidden: true})
	tmpDir := t.TempDir()

	_, err := w.Watch(tmpDir, inotify.Compose(inotify.OpCreate, 0))
	require.NoError(t, err)
	start(t, w)

	for _, name := range []string{"a.swp", ".hidden", "kept"} {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, name), nil, 0o600))
	}

	ev := nextEvent(t, w)
	assert.Equal(t, "kept", ev.Name, "ignored names are dropped")
}

func TestWatcher_Unwatch(t *testing.T) {
	w := newWatcher(t, Options{})
	tmpDir := t.TempDir()

	wd, err := w.Watch(tmpDir, inotify.Compose(inotify.OpCreate, 0))
	require.NoError(t, err)
	start(t, w)

	require.NoError(t, w.Unwatch(wd))

	ev := nextEvent(t, w)
	assert.True(t, ev.Info.Has(inotify.Ignored), "cancelled watch reports IN_IGNORED")
	assert.ErrorIs(t, w.Unwatch(wd), inotify.ErrInvalidDescriptor)
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	tests := []struct {
		name  string
		flags inotify.SessionFlags
	}{
		{"async", inotify.SessionFlags{NonBlock: true, CloseOnExec: true}},
		{"sync", inotify.SessionFlags{CloseOnExec: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWatcherFlags(t, tt.flags, Options{})
			_, err := w.Watch(t.TempDir(), inotify.Compose(inotify.OpCreate, 0))
			require.NoError(t, err)

			done := make(chan error, 1)
			go func() { done <- w.Start(context.Background()) }()

			time.Sleep(50 * time.Millisecond)
			require.NoError(t, w.Stop())
			assert.NoError(t, w.Stop(), "second stop is a no-op")

			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("Start did not return after Stop")
			}

			select {
			case _, ok := <-w.Events():
				assert.False(t, ok)
			case <-time.After(2 * time.Second):
				t.Fatal("events channel not closed")
			}
			assert.True(t, w.Session().Closed())
		})
	}
}

func TestWatcher_ContextCancel(t *testing.T) {
	w := newWatcher(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	assert.Error(t, w.Start(context.Background()), "start only runs once")
}
