package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/giannitedesco/minotaur/internal/errors"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watches.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeProfile(t, `
mask: create,delete
ignore: ["*.swp"]
watches:
  - path: /etc
    mask: close_write|moved_to
  - path: logs
  - path: /var/../srv
`)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "create,delete", p.Mask)
	assert.Equal(t, []string{"*.swp"}, p.Ignore)
	require.Len(t, p.Watches, 3)
	assert.Equal(t, "/etc", p.Watches[0].Path)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "logs"), p.Watches[1].Path)
	assert.Equal(t, "/srv", p.Watches[2].Path)

	watches, err := p.Resolve(inotify.Compose(inotify.OpModify, 0))
	require.NoError(t, err)
	assert.Equal(t, []Watch{
		{Path: "/etc", Mask: inotify.Compose(inotify.OpCloseWrite|inotify.OpMovedTo, 0)},
		{Path: p.Watches[1].Path, Mask: inotify.Compose(inotify.OpCreate|inotify.OpDelete, 0)},
		{Path: "/srv", Mask: inotify.Compose(inotify.OpCreate|inotify.OpDelete, 0)},
	}, watches)
}

func TestLoad_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeProfile(t, "watches:\n  - path: ~/src\n")

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "src"), p.Watches[0].Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolve_Fallback(t *testing.T) {
	p := &Profile{Watches: []Entry{{Path: "/etc"}}}
	fallback := inotify.Compose(inotify.OpAttrib, inotify.DontFollow)

	watches, err := p.Resolve(fallback)
	require.NoError(t, err)
	assert.Equal(t, []Watch{{Path: "/etc", Mask: fallback}}, watches)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", "profile is empty"},
		{"unknown key", "watches:\n  - path: /etc\n    recursive: true\n", "malformed profile"},
		{"not yaml", "watches: [", "malformed profile"},
		{"no watches", "mask: create\n", "validation failed"},
		{"missing path", "watches:\n  - mask: create\n", "validation failed"},
		{"bad mask", "watches:\n  - path: /etc\n    mask: create,explode\n", "validation failed"},
		{"bad default mask", "mask: nothing\nwatches:\n  - path: /etc\n", "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecode_ValidationDetails(t *testing.T) {
	_, err := Decode(strings.NewReader("watches:\n  - path: /etc\n  - mask: create\n"))
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, map[string]string{"watches[1].path": "is required"}, domainErr.Details)
}
