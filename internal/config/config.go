// Package config resolves the server's process settings.
//
// Precedence, lowest to highest: built-in defaults, an optional TOML file,
// a .env file, the process environment. CLI flags are applied on top by the
// caller. None of these settings change backlog semantics; the core only
// sees the tasks file path and the lock timeout.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "backlog.toml"
	// EnvFileName is the dotenv file looked up in the working directory.
	EnvFileName = ".env"

	TransportSSE   = "sse"
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Environment variable names.
const (
	EnvConfig      = "BACKLOG_CONFIG"
	EnvHost        = "HOST"
	EnvPort        = "PORT"
	EnvTransport   = "TRANSPORT"
	EnvTasksFile   = "TASKS_FILE"
	EnvLockTimeout = "LOCK_TIMEOUT"
	EnvSessionDB   = "SESSION_DB"
	EnvSessionTTL  = "SESSION_TTL"
	EnvLogLevel    = "LOG_LEVEL"
)

// Config holds the resolved settings.
type Config struct {
	Host        string
	Port        int
	Transport   string
	TasksFile   string
	LockTimeout time.Duration
	LogLevel    string

	SessionDB  string        // enables the SQLite session registry when non-empty
	SessionTTL time.Duration // how long a persisted selection is kept
}

// fileConfig mirrors backlog.toml. Durations are strings ("5s").
type fileConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Transport   string `toml:"transport"`
	TasksFile   string `toml:"tasks_file"`
	LockTimeout string `toml:"lock_timeout"`
	SessionDB   string `toml:"session_db"`
	SessionTTL  string `toml:"session_ttl"`
	LogLevel    string `toml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        8050,
		Transport:   TransportSSE,
		TasksFile:   "tasks.json",
		LockTimeout: 5 * time.Second,
		SessionTTL:  30 * 24 * time.Hour,
		LogLevel:    "info",
	}
}

// Addr returns host:port for the network transports.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Loader reads configuration sources. Zero values mean the defaults: the
// config path comes from BACKLOG_CONFIG or ./backlog.toml, the env file is
// ./.env and the environment is the process environment.
type Loader struct {
	ConfigPath string
	EnvFile    string
	LookupEnv  func(string) (string, bool)
}

// Load resolves configuration with the default Loader.
func Load(configPath string) (Config, error) {
	return Loader{ConfigPath: configPath}.Load()
}

// Load merges all sources and validates the result.
func (l Loader) Load() (Config, error) {
	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	envFile := l.EnvFile
	if envFile == "" {
		envFile = EnvFileName
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("reading %s: %w", envFile, err)
	}

	// Real environment wins over .env.
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	cfg := Default()

	path := l.ConfigPath
	explicit := path != ""
	if !explicit {
		if v, ok := get(EnvConfig); ok && strings.TrimSpace(v) != "" {
			path, explicit = v, true
		} else {
			path = FileName
		}
	}
	if err := cfg.mergeFile(path, explicit); err != nil {
		return Config{}, err
	}

	if err := cfg.mergeEnv(get); err != nil {
		return Config{}, err
	}

	if err := cfg.Resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays a TOML file. A missing file is only an error when the
// path was given explicitly.
func (c *Config) mergeFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if fc.Host != "" {
		c.Host = fc.Host
	}
	if fc.Port != 0 {
		c.Port = fc.Port
	}
	if fc.Transport != "" {
		c.Transport = fc.Transport
	}
	if fc.TasksFile != "" {
		c.TasksFile = fc.TasksFile
	}
	if fc.LockTimeout != "" {
		d, err := time.ParseDuration(fc.LockTimeout)
		if err != nil {
			return fmt.Errorf("parsing lock_timeout in %s: %w", path, err)
		}
		c.LockTimeout = d
	}
	if fc.SessionDB != "" {
		c.SessionDB = fc.SessionDB
	}
	if fc.SessionTTL != "" {
		d, err := time.ParseDuration(fc.SessionTTL)
		if err != nil {
			return fmt.Errorf("parsing session_ttl in %s: %w", path, err)
		}
		c.SessionTTL = d
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	return nil
}

// mergeEnv overlays environment variables. Empty values are ignored, the
// same way an empty PORT falls back to the default.
func (c *Config) mergeEnv(get func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := get(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvHost, &c.Host)
	str(EnvTransport, &c.Transport)
	str(EnvTasksFile, &c.TasksFile)
	str(EnvSessionDB, &c.SessionDB)
	str(EnvLogLevel, &c.LogLevel)

	if v, ok := get(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Port = port
	}
	if v, ok := get(EnvLockTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvLockTimeout, v, err)
		}
		c.LockTimeout = d
	}
	if v, ok := get(EnvSessionTTL); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSessionTTL, v, err)
		}
		c.SessionTTL = d
	}
	return nil
}

// Resolve validates the settings and makes file paths absolute. Callers
// that apply flag overrides after Load call it again.
func (c *Config) Resolve() error {
	c.Transport = strings.ToLower(c.Transport)
	switch c.Transport {
	case TransportSSE, TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid transport %q: must be one of: sse, stdio, http", c.Transport)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("invalid lock timeout %s: must be positive", c.LockTimeout)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid session ttl %s: must be positive", c.SessionTTL)
	}
	if strings.TrimSpace(c.TasksFile) == "" {
		return errors.New("tasks file path must not be empty")
	}

	abs, err := filepath.Abs(c.TasksFile)
	if err != nil {
		return fmt.Errorf("resolving tasks file path: %w", err)
	}
	c.TasksFile = abs

	if c.SessionDB != "" {
		abs, err := filepath.Abs(c.SessionDB)
		if err != nil {
			return fmt.Errorf("resolving session db path: %w", err)
		}
		c.SessionDB = abs
	}
	return nil
}
