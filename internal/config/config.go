// Package config provides minotaur's configuration, read from command-line
// flags, environment variables and a .env file.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	domainerrors "github.com/giannitedesco/minotaur/internal/errors"
	"github.com/giannitedesco/minotaur/internal/validation"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// DefaultMask is used when no mask is given.
const DefaultMask = "create,delete,delete_self,moved_from,moved_to"

// EnvFileVar names the environment variable that points at the .env file.
const EnvFileVar = "MINOTAUR_ENV_FILE"

// Config holds the application configuration.
type Config struct {
	Paths     []string `arg:"" optional:"" name:"path" help:"Paths to watch." type:"path"`
	Mask      string   `short:"m" default:"${default_mask}" env:"MINOTAUR_MASK" help:"Events and flags to watch for, e.g. create,delete,onlydir." validate:"inotifymask"`
	Sync      bool     `short:"s" env:"MINOTAUR_SYNC" help:"Use a blocking descriptor and plain reads."`
	Fancy     bool     `short:"f" env:"MINOTAUR_FANCY" help:"Print full paths instead of names."`
	NoCloexec bool     `name:"no-cloexec" help:"Leave the inotify descriptor open across exec."`
	Profile   string   `short:"p" type:"path" env:"MINOTAUR_PROFILE" help:"YAML file listing further watches."`
	Ignore    []string `env:"MINOTAUR_IGNORE" help:"Glob patterns of entry names whose events are dropped." validate:"dive,required"`
	ListFlags bool     `short:"l" name:"list-flags" help:"List the supported flags and exit."`

	Logger LoggerConfig `embed:"" prefix:"log-"`
	Server ServerConfig `embed:"" prefix:"http-"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `default:"info" env:"MINOTAUR_LOG_LEVEL" help:"Log level (debug, info, warn, error)." validate:"oneof=debug info warn error"`
	Format string `default:"pretty" env:"MINOTAUR_LOG_FORMAT" help:"Log format (pretty, text, json)." validate:"oneof=pretty text json"`
}

// ServerConfig holds the optional control and metrics HTTP server.
type ServerConfig struct {
	Listen       string        `env:"MINOTAUR_HTTP_LISTEN" help:"Serve /metrics and the watch API on this address." validate:"omitempty,hostname_port"`
	Advertise    bool          `env:"MINOTAUR_HTTP_ADVERTISE" help:"Announce the watch API over mDNS."`
	CORSOrigins  []string      `name:"cors-origin" env:"MINOTAUR_HTTP_CORS_ORIGINS" help:"Origins allowed to call the watch API."`
	RateLimit    float64       `default:"5" env:"MINOTAUR_HTTP_RATE_LIMIT" help:"Watch changes allowed per second per client." validate:"gt=0"`
	RateBurst    int           `default:"10" env:"MINOTAUR_HTTP_RATE_BURST" help:"Burst of watch changes allowed per client." validate:"gte=1"`
	ReadTimeout  time.Duration `default:"15s" env:"MINOTAUR_HTTP_READ_TIMEOUT" help:"HTTP read timeout."`
	WriteTimeout time.Duration `default:"15s" env:"MINOTAUR_HTTP_WRITE_TIMEOUT" help:"HTTP write timeout."`
	IdleTimeout  time.Duration `default:"60s" env:"MINOTAUR_HTTP_IDLE_TIMEOUT" help:"HTTP idle timeout."`
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file (MINOTAUR_ENV_FILE, default ".env").
// 4. Default values (lowest priority).
func LoadConfig(args []string, opts ...kong.Option) (*Config, error) {
	envFile := os.Getenv(EnvFileVar)
	if envFile == "" {
		envFile = ".env"
	}
	if err := loadEnvFile(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg := &Config{}
	opts = append([]kong.Option{
		kong.Name("minotaur"),
		kong.Description("Watch paths with inotify and print the events."),
		kong.Vars{"default_mask": DefaultMask},
		kong.UsageOnError(),
	}, opts...)

	parser, err := kong.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("building parser: %w", err)
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	if err := validation.New().Validate(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if !c.ListFlags && len(c.Paths) == 0 && c.Profile == "" {
		return domainerrors.Validation("nothing to watch: give at least one path or --profile")
	}
	if c.Server.Advertise && c.Server.Listen == "" {
		return domainerrors.Validation("--http-advertise needs --http-listen")
	}
	return nil
}

// WatchMask parses Mask.
func (c *Config) WatchMask() (inotify.Mask, error) {
	return inotify.ParseMask(c.Mask)
}

// SessionFlags returns the inotify flags selected by Sync and NoCloexec.
func (c *Config) SessionFlags() inotify.SessionFlags {
	return inotify.SessionFlags{
		NonBlock:    !c.Sync,
		CloseOnExec: !c.NoCloexec,
	}
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Variables already in the environment win over the file.
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}
