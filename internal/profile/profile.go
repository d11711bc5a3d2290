// Package profile loads watch profiles: YAML files listing the paths to
// watch and the mask for each.
//
//	mask: create,delete        # default for entries without a mask
//	ignore: ["*.swp", "*~"]
//	watches:
//	  - path: /etc
//	    mask: close_write,moved_to
//	  - path: ~/src
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	domainerrors "github.com/giannitedesco/minotaur/internal/errors"
	"github.com/giannitedesco/minotaur/internal/validation"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// Profile is the decoded file.
type Profile struct {
	Mask    string   `yaml:"mask,omitempty" validate:"omitempty,inotifymask"`
	Ignore  []string `yaml:"ignore,omitempty" validate:"dive,required"`
	Watches []Entry  `yaml:"watches" validate:"min=1,dive"`
}

// Entry is one watched path.
type Entry struct {
	Path string `yaml:"path" validate:"required"`
	Mask string `yaml:"mask,omitempty" validate:"omitempty,inotifymask"`
}

// Watch is an entry with its path expanded and mask parsed.
type Watch struct {
	Path string
	Mask inotify.Mask
}

// Load reads and validates the profile at path. Relative watch paths are
// taken relative to the profile's directory.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- profile path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	p, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving profile directory: %w", err)
	}
	for i := range p.Watches {
		expanded, err := expandPath(p.Watches[i].Path, base)
		if err != nil {
			return nil, fmt.Errorf("profile %s: watch %d: %w", path, i, err)
		}
		p.Watches[i].Path = expanded
	}

	return p, nil
}

// Decode reads a profile from r. Unknown keys are rejected.
func Decode(r io.Reader) (*Profile, error) {
	var p Profile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domainerrors.Validation("profile is empty")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "malformed profile")
	}

	if err := validation.New().Validate(p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Resolve parses every entry's mask. Entries without a mask use the
// profile's mask, or fallback when the profile has none.
func (p *Profile) Resolve(fallback inotify.Mask) ([]Watch, error) {
	def := fallback
	if p.Mask != "" {
		m, err := inotify.ParseMask(p.Mask)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "profile mask")
		}
		def = m
	}

	watches := make([]Watch, 0, len(p.Watches))
	for _, e := range p.Watches {
		m := def
		if e.Mask != "" {
			parsed, err := inotify.ParseMask(e.Mask)
			if err != nil {
				return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "mask for %s", e.Path)
			}
			m = parsed
		}
		watches = append(watches, Watch{Path: e.Path, Mask: m})
	}
	return watches, nil
}

// expandPath expands ~ and makes path absolute against base.
func expandPath(path, base string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}

	return filepath.Clean(path), nil
}
