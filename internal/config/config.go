package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for dmarchive.
type Config struct {
	General GeneralConfig `yaml:"general"`
	Account AccountConfig `yaml:"account"`
	Friend  FriendConfig  `yaml:"friend"`
	Archive ArchiveConfig `yaml:"archive"`
	Sync    SyncConfig    `yaml:"sync"`
	RunLog  RunLogConfig  `yaml:"runLog"`
	Notify  NotifyConfig  `yaml:"notify"`
}

type GeneralConfig struct {
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile,omitempty"` // optional log file path
}

// AccountConfig holds the credentials for the archiving account. Values
// support ${VAR} substitution so secrets can live in the environment.
type AccountConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	APIBase  string `yaml:"apiBase,omitempty"` // override for tests/proxies
}

type FriendConfig struct {
	Username string `yaml:"username"`
}

type ArchiveConfig struct {
	DataDir string `yaml:"dataDir"`
}

type SyncConfig struct {
	// ReelPolicy decides what happens to reel shares: "skip" records a
	// placeholder, "archive" downloads the clip video.
	ReelPolicy string `yaml:"reelPolicy"`
	// MaxItemsFirstRun caps how many items a full (first) run may fetch.
	MaxItemsFirstRun int `yaml:"maxItemsFirstRun"`
}

type RunLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"dbPath"`
}

type NotifyConfig struct {
	Telegram TelegramNotifyConfig `yaml:"telegram"`
}

type TelegramNotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chatId"`
}

// DefaultConfigDir returns the default config directory (~/.dmarchive).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dmarchive"
	}
	return filepath.Join(home, ".dmarchive")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Archive.DataDir = ExpandPath(cfg.Archive.DataDir)
	cfg.RunLog.DBPath = ExpandPath(cfg.RunLog.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	switch cfg.Sync.ReelPolicy {
	case "skip", "archive":
		// valid
	default:
		errs = append(errs, "sync.reelPolicy must be one of: skip, archive")
	}

	if cfg.Sync.MaxItemsFirstRun < 1 {
		errs = append(errs, "sync.maxItemsFirstRun must be >= 1")
	}
	if cfg.Archive.DataDir == "" {
		errs = append(errs, "archive.dataDir must not be empty")
	}
	if cfg.RunLog.Enabled && cfg.RunLog.DBPath == "" {
		errs = append(errs, "runLog.dbPath must not be empty when runLog is enabled")
	}
	if cfg.Notify.Telegram.Enabled {
		if cfg.Notify.Telegram.Token == "" {
			errs = append(errs, "notify.telegram.token must not be empty when enabled")
		}
		if cfg.Notify.Telegram.ChatID == "" {
			errs = append(errs, "notify.telegram.chatId must not be empty when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
