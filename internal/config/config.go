// Package config loads hub settings from defaults, an optional debutade.yaml,
// the environment and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the settings file looked up in the base directory.
const FileName = "debutade.yaml"

// Config holds the hub configuration
type Config struct {
	BaseDir string `mapstructure:"base_dir"`
	// AppsFile is the apps catalog; relative paths are taken from BaseDir.
	AppsFile string `mapstructure:"apps_file"`
	// SharedConfig is the settings file the subapps read, passed to them as
	// DEBUTADE_CONFIG.
	SharedConfig string `mapstructure:"shared_config"`

	Hub     HubConfig     `mapstructure:"hub"`
	Subapp  SubappConfig  `mapstructure:"subapp"`
	Launch  LaunchConfig  `mapstructure:"launch"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// File is the settings file that was read, if any.
	File string `mapstructure:"-"`
}

// HubConfig is where the hub itself listens.
type HubConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// SubappConfig holds the shared subapp port.
type SubappConfig struct {
	Port int `mapstructure:"port"`
}

// LaunchConfig tunes the launch and stop sequences.
type LaunchConfig struct {
	// StartTimeout is in whole seconds, as in SUBAPP_START_TIMEOUT.
	StartTimeout    int           `mapstructure:"start_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	GracePeriod     time.Duration `mapstructure:"grace_period"`
	KillGracePeriod time.Duration `mapstructure:"kill_grace_period"`
	KillOnTimeout   bool          `mapstructure:"kill_on_timeout"`
	// Python is the fallback interpreter for apps without a virtualenv.
	Python string `mapstructure:"python"`
}

// LogConfig selects the log sink.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
	File   string `mapstructure:"file"`   // empty logs to stderr
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Options control where Load looks.
type Options struct {
	// File is an explicit settings file; it must exist when set.
	File string
	// BaseDir overrides the base directory; defaults to the working directory.
	BaseDir string
	// Flags are bound by name, see flagKeys.
	Flags *pflag.FlagSet
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"host":          "hub.host",
	"port":          "hub.port",
	"subapp-port":   "subapp.port",
	"apps":          "apps_file",
	"start-timeout": "launch.start_timeout",
	"python":        "launch.python",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"log-file":      "log.file",
	"metrics":       "metrics.enabled",
}

// envNames binds keys to the environment names the hub has always honoured.
// Every key is also reachable as DEBUTADE_<KEY>.
var envNames = map[string]string{
	"hub.host":             "MAIN_APP_HOST",
	"hub.port":             "MAIN_APP_PORT",
	"subapp.port":          "SUBAPP_PORT",
	"launch.start_timeout": "SUBAPP_START_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("apps_file", "apps.yaml")
	v.SetDefault("shared_config", "config.json")
	v.SetDefault("hub.host", "127.0.0.1")
	v.SetDefault("hub.port", 5003)
	v.SetDefault("subapp.port", 5004)
	v.SetDefault("launch.start_timeout", 60)
	v.SetDefault("launch.poll_interval", 400*time.Millisecond)
	v.SetDefault("launch.settle_delay", 600*time.Millisecond)
	v.SetDefault("launch.grace_period", 4*time.Second)
	v.SetDefault("launch.kill_grace_period", 2*time.Second)
	v.SetDefault("launch.kill_on_timeout", true)
	v.SetDefault("launch.python", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "debutade.log")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "debutade")
}

// Load builds the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	baseDir := opts.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine base directory: %w", err)
		}
		baseDir = wd
	}
	v.SetDefault("base_dir", baseDir)

	v.SetEnvPrefix("DEBUTADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range envNames {
		prefixed := "DEBUTADE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag --%s: %w", name, err)
				}
			}
		}
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(baseDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	cfg.BaseDir = abs
	cfg.AppsFile = cfg.Path(cfg.AppsFile)
	cfg.SharedConfig = cfg.Path(cfg.SharedConfig)
	if cfg.Log.File != "" {
		cfg.Log.File = cfg.Path(cfg.Log.File)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ports and timeouts.
func (c *Config) Validate() error {
	if err := validPort("hub.port", c.Hub.Port); err != nil {
		return err
	}
	if err := validPort("subapp.port", c.Subapp.Port); err != nil {
		return err
	}
	if c.Hub.Port == c.Subapp.Port {
		return fmt.Errorf("hub.port and subapp.port must differ (both %d)", c.Hub.Port)
	}
	if c.Launch.StartTimeout <= 0 {
		return fmt.Errorf("launch.start_timeout must be positive, got %d", c.Launch.StartTimeout)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func validPort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s out of range: %d", key, port)
	}
	return nil
}

// Path resolves p against the base directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// ListenAddr is the address the hub binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Hub.Host, strconv.Itoa(c.Hub.Port))
}

// HubURL is the address subapps use to link back to the hub. Wildcard hosts
// are not dialable, so they become loopback.
func (c *Config) HubURL() string {
	host := c.Hub.Host
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	host = strings.Trim(host, "[]")
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Hub.Port))
}

// ReadyTimeout is the launch readiness deadline.
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Launch.StartTimeout) * time.Second
}
