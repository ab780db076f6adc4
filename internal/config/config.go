package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/history"
	"github.com/lonitor/lonitor/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "LONITOR"
	configName = "lonitor"
)

// Config carries runtime options for lonitor.
type Config struct {
	Interval       time.Duration      `mapstructure:"interval"`
	HistorySize    int                `mapstructure:"history-size"`
	TopN           int                `mapstructure:"top-n"`
	SourceTimeout  time.Duration      `mapstructure:"source-timeout"`
	ProcessTimeout time.Duration      `mapstructure:"process-timeout"`
	ActionTimeout  time.Duration      `mapstructure:"action-timeout"`
	Thresholds     history.Thresholds `mapstructure:"thresholds"`

	DiskPath    string `mapstructure:"disk-path"`
	Battery     bool   `mapstructure:"battery"`
	Temperature bool   `mapstructure:"temperature"`

	PowerTool        string   `mapstructure:"power-tool"`
	DropCachesPath   string   `mapstructure:"drop-caches-path"`
	StorageCacheDirs []string `mapstructure:"storage-cache-dirs"`

	LogLevel string `mapstructure:"log-level"`
	LogFile  string `mapstructure:"log-file"`
}

func Default() *Config {
	var cacheDirs []string
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDirs = []string{dir}
	}
	return &Config{
		Interval:         time.Second,
		HistorySize:      history.DefaultCapacity,
		TopN:             10,
		SourceTimeout:    500 * time.Millisecond,
		ProcessTimeout:   2 * time.Second,
		ActionTimeout:    15 * time.Second,
		Thresholds:       history.DefaultThresholds(),
		DiskPath:         "/",
		Battery:          true,
		Temperature:      true,
		PowerTool:        "powerprofilesctl",
		DropCachesPath:   "/proc/sys/vm/drop_caches",
		StorageCacheDirs: cacheDirs,
		LogLevel:         "info",
	}
}

// RegisterFlags adds every option to fs with its default value.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "config file (default $XDG_CONFIG_HOME/lonitor/lonitor.yaml)")
	fs.Duration("interval", d.Interval, "sampling interval")
	fs.Int("history-size", d.HistorySize, "points kept per metric")
	fs.Int("top-n", d.TopN, "processes shown in the top view")
	fs.Duration("source-timeout", d.SourceTimeout, "deadline for a single metric source")
	fs.Duration("process-timeout", d.ProcessTimeout, "deadline for process enumeration")
	fs.Duration("action-timeout", d.ActionTimeout, "deadline for a privileged action")
	fs.Float64("warning", d.Thresholds.Warning, "percent at which a metric turns warning")
	fs.Float64("critical", d.Thresholds.Critical, "percent at which a metric turns critical")
	fs.String("disk-path", d.DiskPath, "mount point reported as disk usage")
	fs.Bool("battery", d.Battery, "sample the battery")
	fs.Bool("temperature", d.Temperature, "sample the CPU temperature")
	fs.String("power-tool", d.PowerTool, "power-profiles-daemon CLI")
	fs.String("drop-caches-path", d.DropCachesPath, "kernel drop_caches control file")
	fs.StringSlice("storage-cache-dirs", d.StorageCacheDirs, "directories emptied by clear-storage")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
	fs.String("log-file", d.LogFile, "log file (TUI mode logs nowhere without it)")
}

// Load merges defaults, the config file, LONITOR_* environment variables and
// flags in fs, in increasing precedence. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
		for key, name := range map[string]string{
			"thresholds.warning":  "warning",
			"thresholds.critical": "critical",
		} {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errFactory.Wrap(errors.ErrBindFlags, err)
				}
			}
		}
	}

	path := v.GetString("config")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		logger.Debug().Str("file", v.ConfigFileUsed()).Msg("config file loaded")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("interval", d.Interval)
	v.SetDefault("history-size", d.HistorySize)
	v.SetDefault("top-n", d.TopN)
	v.SetDefault("source-timeout", d.SourceTimeout)
	v.SetDefault("process-timeout", d.ProcessTimeout)
	v.SetDefault("action-timeout", d.ActionTimeout)
	v.SetDefault("thresholds.warning", d.Thresholds.Warning)
	v.SetDefault("thresholds.critical", d.Thresholds.Critical)
	v.SetDefault("disk-path", d.DiskPath)
	v.SetDefault("battery", d.Battery)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("power-tool", d.PowerTool)
	v.SetDefault("drop-caches-path", d.DropCachesPath)
	v.SetDefault("storage-cache-dirs", d.StorageCacheDirs)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-file", d.LogFile)
	v.SetDefault("config", "")
}

func searchPaths() []string {
	var dirs []string
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, configName))
	}
	return append(dirs, filepath.Join("/etc", configName))
}

// Validate reports the first invalid option as a coded error.
func (c *Config) Validate() error {
	errFactory := errors.New()

	switch {
	case c.Interval < 100*time.Millisecond:
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval.String())
	case c.HistorySize < 1:
		return errFactory.WithData(errors.ErrInvalidConfig, "history-size must be at least 1")
	case c.TopN < 1:
		return errFactory.WithData(errors.ErrInvalidConfig, "top-n must be at least 1")
	case c.SourceTimeout <= 0, c.ProcessTimeout <= 0, c.ActionTimeout <= 0:
		return errFactory.WithData(errors.ErrInvalidConfig, "timeouts must be positive")
	case c.DiskPath == "":
		return errFactory.WithData(errors.ErrInvalidConfig, "disk-path is empty")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	for _, dir := range c.StorageCacheDirs {
		if !filepath.IsAbs(dir) || filepath.Clean(dir) == "/" {
			return errFactory.WithData(errors.ErrInvalidConfig, "storage cache dir must be an absolute path below /: "+dir)
		}
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
