package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix  = "PARXE"
	envConfig  = "PARXE_CONFIG"
	configName = "parxe"

	keyListenAddr   = "listen_addr"
	keyDBPath       = "db_path"
	keyLogLevel     = "log_level"
	keyEngine       = "engine"
	keyMaxWorkers   = "max_workers"
	keyLocalWorkers = "local_workers"
	keyOutputDir    = "output_dir"
	keyWorkDir      = "work_dir"
	keyFSTimeout    = "fs_timeout"
	keyFSWaitStep   = "fs_wait_step"

	defaultListenAddr = ":8080"
	defaultDBPath     = "parxe.db"
	defaultEngine     = "seq"
	defaultWorkDir    = "."
	defaultFSTimeout  = 60 * time.Second
	defaultFSWaitStep = time.Second
)

// Config holds application configuration.
type Config struct {
	ListenAddr   string
	DBPath       string
	LogLevel     slog.Level
	Engine       string
	MaxWorkers   int
	LocalWorkers int
	OutputDir    string
	WorkDir      string
	FSTimeout    time.Duration
	FSWaitStep   time.Duration
}

func defaultOutputDir() string {
	return filepath.Join(os.TempDir(), "parxe")
}

// Load reads configuration from an optional YAML file and PARXE_*
// environment variables, falling back to defaults. With an empty path the
// file named by PARXE_CONFIG is used, or parxe.yaml is searched for in the
// current directory and ~/.parxe. A missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyListenAddr, defaultListenAddr)
	v.SetDefault(keyDBPath, defaultDBPath)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyEngine, defaultEngine)
	v.SetDefault(keyMaxWorkers, runtime.NumCPU())
	v.SetDefault(keyLocalWorkers, runtime.NumCPU())
	v.SetDefault(keyOutputDir, defaultOutputDir())
	v.SetDefault(keyWorkDir, defaultWorkDir)
	v.SetDefault(keyFSTimeout, defaultFSTimeout)
	v.SetDefault(keyFSWaitStep, defaultFSWaitStep)

	if path == "" {
		path = os.Getenv(envConfig)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".parxe"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		ListenAddr:   v.GetString(keyListenAddr),
		DBPath:       v.GetString(keyDBPath),
		LogLevel:     parseLogLevel(v.GetString(keyLogLevel)),
		Engine:       strings.ToLower(strings.TrimSpace(v.GetString(keyEngine))),
		MaxWorkers:   v.GetInt(keyMaxWorkers),
		LocalWorkers: v.GetInt(keyLocalWorkers),
		OutputDir:    v.GetString(keyOutputDir),
		WorkDir:      v.GetString(keyWorkDir),
		FSTimeout:    v.GetDuration(keyFSTimeout),
		FSWaitStep:   v.GetDuration(keyFSWaitStep),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Engine == "" {
		c.Engine = defaultEngine
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = runtime.NumCPU()
	}
	if c.LocalWorkers <= 0 {
		c.LocalWorkers = runtime.NumCPU()
	}
	if c.FSTimeout <= 0 {
		return fmt.Errorf("invalid %s: %s", keyFSTimeout, c.FSTimeout)
	}
	if c.FSWaitStep <= 0 {
		return fmt.Errorf("invalid %s: %s", keyFSWaitStep, c.FSWaitStep)
	}
	if c.OutputDir != "" {
		abs, err := filepath.Abs(c.OutputDir)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", keyOutputDir, err)
		}
		c.OutputDir = abs
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
